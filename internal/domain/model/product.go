package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"discord-storefront/internal/domain"
)

type ProductType string

const (
	ProductTypeFile       ProductType = "FILE"
	ProductTypeSerialPool ProductType = "SERIAL_POOL"
	ProductTypeRole       ProductType = "ROLE"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeFile, ProductTypeSerialPool, ProductTypeRole:
		return true
	}
	return false
}

// FileAsset is the payload of a FILE product.
type FileAsset struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// RolePolicy is the payload of a ROLE product. A zero Duration means the role is permanent.
type RolePolicy struct {
	RoleID      string        `json:"role_id"`
	Duration    time.Duration `json:"duration,omitempty"`
	AutoRenew   bool          `json:"auto_renew,omitempty"`
	GracePeriod time.Duration `json:"grace_period,omitempty"`
}

// Product is a sellable item in a server's catalog.
// Stock nil means unlimited. The serial pool of SERIAL_POOL products lives in its own
// table; AvailableSerials is filled on read.
type Product struct {
	ID          string
	ServerID    string
	OwnerID     string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Type        ProductType
	Stock       *int64
	SalesCount  int64
	Active      bool

	File *FileAsset
	Role *RolePolicy

	AvailableSerials int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Product) IsZero() bool { return p == nil || p.ID == "" }

// TracksStock reports whether purchases are limited by a stock counter.
func (p *Product) TracksStock() bool { return p.Stock != nil }

// Purchasable checks the preconditions of a new purchase.
func (p *Product) Purchasable() error {
	if !p.Active {
		return domain.ErrUnavailable
	}
	if p.Stock != nil && *p.Stock <= 0 {
		return domain.ErrOutOfStock
	}
	return nil
}

// MinorUnits converts the price to the gateway's integer amount (cents).
func (p *Product) MinorUnits() int64 {
	return p.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NewProduct validates and constructs a product.
func NewProduct(serverID, ownerID, name string, price decimal.Decimal, cur string, typ ProductType) (*Product, error) {
	if serverID == "" || ownerID == "" || strings.TrimSpace(name) == "" || !typ.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if !price.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	code, err := NormalizeCurrency(cur)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Product{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(name),
		Price:     price,
		Currency:  code,
		Type:      typ,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks that the type-specific payload matches the product type.
// A FILE without a link or a ROLE without a role id is rejected here, and again at
// delivery time for rows that were edited outside the catalog.
func (p *Product) Validate() error {
	if p.Stock != nil && *p.Stock < 0 {
		return domain.ErrInvalidArgument
	}
	switch p.Type {
	case ProductTypeFile:
		if p.File == nil || strings.TrimSpace(p.File.URL) == "" {
			return domain.ErrMisconfiguredProduct
		}
	case ProductTypeRole:
		if p.Role == nil || strings.TrimSpace(p.Role.RoleID) == "" {
			return domain.ErrMisconfiguredProduct
		}
		if p.Role.Duration < 0 || p.Role.GracePeriod < 0 {
			return domain.ErrInvalidArgument
		}
	case ProductTypeSerialPool:
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// NormalizeCurrency returns the lower-case ISO 4217 code used by the gateway.
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", domain.ErrInvalidArgument
	}
	return strings.ToLower(unit.String()), nil
}
