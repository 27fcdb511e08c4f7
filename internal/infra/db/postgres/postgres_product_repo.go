package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.ProductRepository = (*productRepo)(nil)

type productRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

const productColumns = `id, server_id, owner_id, name, description, price::text, currency, type, stock, sales_count, active, file, role, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p          model.Product
		price, typ string
		file, role []byte
	)
	if err := row.Scan(&p.ID, &p.ServerID, &p.OwnerID, &p.Name, &p.Description, &price, &p.Currency, &typ,
		&p.Stock, &p.SalesCount, &p.Active, &file, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanError(err)
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("%w: price %q", domain.ErrReadDatabaseRow, price)
	}
	p.Type = model.ProductType(typ)
	if len(file) > 0 {
		p.File = new(model.FileAsset)
		if err := json.Unmarshal(file, p.File); err != nil {
			return nil, fmt.Errorf("%w: file: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(role) > 0 {
		p.Role = new(model.RolePolicy)
		if err := json.Unmarshal(role, p.Role); err != nil {
			return nil, fmt.Errorf("%w: role: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &p, nil
}

// jsonOrNil encodes v, keeping SQL NULL for a nil pointer.
func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Save inserts or updates the catalog fields. sales_count is only changed by RecordSale.
func (r *productRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (id, server_id, owner_id, name, description, price, currency, type, stock, active, file, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE
  SET name        = EXCLUDED.name,
      description = EXCLUDED.description,
      price       = EXCLUDED.price,
      currency    = EXCLUDED.currency,
      stock       = EXCLUDED.stock,
      active      = EXCLUDED.active,
      file        = EXCLUDED.file,
      role        = EXCLUDED.role,
      updated_at  = EXCLUDED.updated_at;`

	file, err := jsonOrNil(p.File)
	if err != nil {
		return err
	}
	role, err := jsonOrNil(p.Role)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.ServerID, p.OwnerID, p.Name, p.Description, p.Price.String(), p.Currency, string(p.Type),
		p.Stock, p.Active, file, role, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *productRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + forUpdate(tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProduct(row)
}

func (r *productRepo) ListByServer(ctx context.Context, tx repository.Tx, serverID string, activeOnly bool) ([]*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE server_id = $1 AND (NOT $2::bool OR active) ORDER BY created_at`
	rows, err := queryRows(ctx, r.pool, tx, q, serverID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

// Delete fails with domain.ErrInUse once orders reference the product.
func (r *productRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordSale counts the sale and decrements tracked stock in one statement.
// The previous stock decides the outcome: NULL untracked, 0 oversold, otherwise decremented.
func (r *productRepo) RecordSale(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error) {
	const q = `
WITH prev AS (
    SELECT id, stock FROM products WHERE id = $1 FOR UPDATE
)
UPDATE products p
   SET sales_count = p.sales_count + 1,
       stock       = CASE WHEN prev.stock > 0 THEN prev.stock - 1 ELSE prev.stock END,
       updated_at  = NOW()
  FROM prev
 WHERE p.id = prev.id
RETURNING prev.stock`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return 0, err
	}
	var prev *int64
	if err := row.Scan(&prev); err != nil {
		return 0, scanError(err)
	}
	switch {
	case prev == nil:
		return repository.SaleUntracked, nil
	case *prev > 0:
		return repository.SaleDecremented, nil
	default:
		return repository.SaleOversold, nil
	}
}

func (r *productRepo) AdjustStock(ctx context.Context, tx repository.Tx, id string, delta int64) error {
	const q = `UPDATE products SET stock = GREATEST(stock + $2, 0), updated_at = NOW() WHERE id = $1 AND stock IS NOT NULL`
	_, err := execSQL(ctx, r.pool, tx, q, id, delta)
	return err
}
