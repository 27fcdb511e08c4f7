package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/logging"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// ProductInput carries create and update fields. Nil pointers leave a field untouched on update.
type ProductInput struct {
	ServerID    string
	OwnerID     string
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Currency    *string
	Type        model.ProductType
	Stock       *int64
	ClearStock  bool // switch to unlimited stock
	Active      *bool
	File        *model.FileAsset
	Role        *model.RolePolicy
}

type CatalogUseCase interface {
	CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error)
	// UpdateProduct edits a product; only its owner may do so and the type is immutable.
	UpdateProduct(ctx context.Context, id, actorID string, in ProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, serverID string, activeOnly bool) ([]*model.Product, error)
	// DeleteProduct removes a product when ownerID matches its owner.
	DeleteProduct(ctx context.Context, id, ownerID string) error
	// AddSerials extends the pool of a SERIAL_POOL product and, when stock is
	// tracked, raises stock by the number of new serials.
	AddSerials(ctx context.Context, id, ownerID string, serials []string) (int, error)
}

type catalogUC struct {
	products        repository.ProductRepository
	serials         repository.SerialRepository
	servers         repository.ServerRepository
	tm              repository.TransactionManager
	defaultCurrency string
	log             *zerolog.Logger
}

func NewCatalogUseCase(
	products repository.ProductRepository,
	serials repository.SerialRepository,
	servers repository.ServerRepository,
	tm repository.TransactionManager,
	defaultCurrency string,
	logger *zerolog.Logger,
) *catalogUC {
	l := logger.With().Str("component", "CatalogUC").Logger()
	return &catalogUC{products: products, serials: serials, servers: servers, tm: tm, defaultCurrency: defaultCurrency, log: &l}
}

func (u *catalogUC) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.CreateProduct")()
	if in.Name == nil || in.Price == nil {
		return nil, domain.ErrInvalidArgument
	}
	cur := u.currencyFor(ctx, in.ServerID, in.Currency)
	p, err := model.NewProduct(in.ServerID, in.OwnerID, *in.Name, *in.Price, cur, in.Type)
	if err != nil {
		return nil, err
	}
	p.Description = lo.FromPtr(in.Description)
	p.Stock = in.Stock
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.File = in.File
	p.Role = in.Role
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := u.products.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("product_id", p.ID).Str("server_id", p.ServerID).Str("type", string(p.Type)).Msg("product created")
	return p, nil
}

func (u *catalogUC) currencyFor(ctx context.Context, serverID string, requested *string) string {
	if c := strings.TrimSpace(lo.FromPtr(requested)); c != "" {
		return c
	}
	if s, err := u.servers.FindByID(ctx, repository.NoTX, serverID); err == nil && s.Currency != "" {
		return s.Currency
	}
	return u.defaultCurrency
}

func (u *catalogUC) UpdateProduct(ctx context.Context, id, actorID string, in ProductInput) (*model.Product, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.UpdateProduct")()
	p, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actorID {
		return nil, domain.ErrForbidden
	}
	if in.Type != "" && in.Type != p.Type {
		return nil, domain.ErrInvalidArgument
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.ErrInvalidArgument
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return nil, domain.ErrInvalidArgument
		}
		p.Price = *in.Price
	}
	if in.Currency != nil {
		code, err := model.NormalizeCurrency(*in.Currency)
		if err != nil {
			return nil, err
		}
		p.Currency = code
	}
	switch {
	case in.ClearStock:
		p.Stock = nil
	case in.Stock != nil:
		p.Stock = in.Stock
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if in.File != nil {
		p.File = in.File
	}
	if in.Role != nil {
		p.Role = in.Role
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now()
	if err := u.products.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *catalogUC) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Type == model.ProductTypeSerialPool {
		n, err := u.serials.CountAvailable(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		p.AvailableSerials = n
	}
	return p, nil
}

func (u *catalogUC) ListProducts(ctx context.Context, serverID string, activeOnly bool) ([]*model.Product, error) {
	if serverID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.products.ListByServer(ctx, repository.NoTX, serverID, activeOnly)
}

func (u *catalogUC) DeleteProduct(ctx context.Context, id, ownerID string) error {
	p, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	if err := u.products.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	u.log.Info().Str("product_id", id).Msg("product deleted")
	return nil
}

func (u *catalogUC) AddSerials(ctx context.Context, id, ownerID string, serials []string) (int, error) {
	clean := lo.Uniq(lo.Compact(lo.Map(serials, func(s string, _ int) string { return strings.TrimSpace(s) })))
	if len(clean) == 0 {
		return 0, domain.ErrInvalidArgument
	}

	var added int
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.products.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.OwnerID != ownerID {
			return domain.ErrForbidden
		}
		if p.Type != model.ProductTypeSerialPool {
			return domain.ErrInvalidArgument
		}
		if added, err = u.serials.AddSerials(ctx, tx, id, clean); err != nil {
			return fmt.Errorf("add serials: %w", err)
		}
		if p.TracksStock() && added > 0 {
			return u.products.AdjustStock(ctx, tx, id, int64(added))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	u.log.Info().Str("product_id", id).Int("added", added).Int("duplicates", len(clean)-added).Msg("serials added")
	return added, nil
}
