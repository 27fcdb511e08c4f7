package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/repository"
)

var _ repository.SerialRepository = (*serialRepo)(nil)

type serialRepo struct {
	pool *pgxpool.Pool
}

func NewSerialRepo(pool *pgxpool.Pool) *serialRepo {
	return &serialRepo{pool: pool}
}

// AddSerials inserts new values and skips ones already in the product's pool.
func (r *serialRepo) AddSerials(ctx context.Context, tx repository.Tx, productID string, serials []string) (int, error) {
	if len(serials) == 0 {
		return 0, nil
	}
	const q = `
INSERT INTO product_serials (product_id, value)
SELECT $1, v FROM unnest($2::text[]) AS v
ON CONFLICT (product_id, value) DO NOTHING`
	tag, err := execSQL(ctx, r.pool, tx, q, productID, serials)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *serialRepo) PopSerial(ctx context.Context, tx repository.Tx, productID, orderID string) (string, error) {
	if s, err := r.assigned(ctx, tx, orderID); err == nil {
		return s, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	// SKIP LOCKED lets concurrent deliveries of the same product take different rows.
	const q = `
UPDATE product_serials
   SET assigned_order_id = $2, assigned_at = NOW()
 WHERE id = (
       SELECT id FROM product_serials
        WHERE product_id = $1 AND assigned_order_id IS NULL
        ORDER BY id
        LIMIT 1
          FOR UPDATE SKIP LOCKED)
RETURNING value`
	row, err := pickRow(ctx, r.pool, tx, q, productID, orderID)
	if err != nil {
		return "", err
	}
	var value string
	switch err := scanError(row.Scan(&value)); {
	case err == nil:
		return value, nil
	case errors.Is(err, domain.ErrNotFound):
		return "", domain.ErrOutOfStock
	case errors.Is(err, domain.ErrAlreadyExists):
		// a concurrent attempt for the same order won; return its serial
		return r.assigned(ctx, tx, orderID)
	default:
		return "", err
	}
}

func (r *serialRepo) assigned(ctx context.Context, tx repository.Tx, orderID string) (string, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT value FROM product_serials WHERE assigned_order_id = $1`, orderID)
	if err != nil {
		return "", err
	}
	var value string
	if err := row.Scan(&value); err != nil {
		return "", scanError(err)
	}
	return value, nil
}

func (r *serialRepo) CountAvailable(ctx context.Context, tx repository.Tx, productID string) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM product_serials WHERE product_id = $1 AND assigned_order_id IS NULL`, productID)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, scanError(err)
	}
	return n, nil
}
