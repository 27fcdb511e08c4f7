package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, product_id, server_id, buyer_id, buyer_email, payment_intent_id, status, amount::text, currency,
       commission_amount::text, delivered, delivered_at, delivery_data, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                  model.Order
		status             string
		amount, commission string
		data               []byte
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.ServerID, &o.BuyerID, &o.BuyerEmail, &o.PaymentIntentID, &status, &amount, &o.Currency,
		&commission, &o.Delivered, &o.DeliveredAt, &data, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanError(err)
	}
	o.Status = model.OrderStatus(status)
	var err error
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: amount %q", domain.ErrReadDatabaseRow, amount)
	}
	if o.CommissionAmount, err = decimal.NewFromString(commission); err != nil {
		return nil, fmt.Errorf("%w: commission %q", domain.ErrReadDatabaseRow, commission)
	}
	if len(data) > 0 {
		o.DeliveryData = new(model.DeliveryData)
		if err := json.Unmarshal(data, o.DeliveryData); err != nil {
			return nil, fmt.Errorf("%w: delivery_data: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]*model.Order, error) {
	defer rows.Close()
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, mapError(rows.Err())
}

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, product_id, server_id, buyer_id, buyer_email, payment_intent_id, status, amount, currency, commission_amount, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10::numeric, $11, $12
)`
	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.ProductID, o.ServerID, o.BuyerID, o.BuyerEmail, o.PaymentIntentID, string(o.Status),
		o.Amount.String(), o.Currency, o.CommissionAmount.String(), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + forUpdate(tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByPaymentIntent(ctx context.Context, tx repository.Tx, paymentIntentID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1` + forUpdate(tx)
	row, err := pickRow(ctx, r.pool, tx, q, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	const q = `SELECT ` + orderColumns + ` FROM orders
 WHERE ($1::text = '' OR server_id = $1)
   AND ($2::text = '' OR buyer_id = $2)
   AND ($3::text = '' OR status = $3)
 ORDER BY created_at DESC
 LIMIT $4 OFFSET $5`
	rows, err := queryRows(ctx, r.pool, tx, q, f.ServerID, f.BuyerID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// UpdateStatusIfPending atomically updates status only when the order is still PENDING.
func (r *orderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error) {
	const q = `
    UPDATE orders
       SET status = $2,
           updated_at = NOW()
     WHERE id = $1
       AND status = 'PENDING'`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *orderRepo) SaveDeliveryData(ctx context.Context, tx repository.Tx, id string, data *model.DeliveryData) error {
	b, err := jsonOrNil(data)
	if err != nil {
		return err
	}
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE orders SET delivery_data = $2, updated_at = NOW() WHERE id = $1`, id, b)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string, data *model.DeliveryData, at time.Time) (bool, error) {
	b, err := jsonOrNil(data)
	if err != nil {
		return false, err
	}
	const q = `
    UPDATE orders
       SET delivered = TRUE,
           delivered_at = $3,
           delivery_data = $2,
           updated_at = NOW()
     WHERE id = $1
       AND status = 'COMPLETED'
       AND NOT delivered`
	tag, err := execSQL(ctx, r.pool, tx, q, id, b, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *orderRepo) ListUndelivered(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders
 WHERE status = 'COMPLETED'
   AND NOT delivered
   AND (delivery_data IS NULL OR delivery_data->>'kind' IS NULL)
   AND NOT COALESCE((delivery_data->>'blocked')::boolean, FALSE)
   AND updated_at < $1
 ORDER BY updated_at ASC
 LIMIT $2`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO ledger_entries (id, order_id, server_id, product_id, amount, commission_amount, currency, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.OrderID, e.ServerID, e.ProductID, e.Amount.String(), e.CommissionAmount.String(), e.Currency, e.CreatedAt)
	return err
}

func (r *ledgerRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.LedgerEntry, error) {
	const q = `SELECT id, order_id, server_id, product_id, amount::text, commission_amount::text, currency, created_at
  FROM ledger_entries WHERE order_id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	var (
		e                  model.LedgerEntry
		amount, commission string
	)
	if err := row.Scan(&e.ID, &e.OrderID, &e.ServerID, &e.ProductID, &amount, &commission, &e.Currency, &e.CreatedAt); err != nil {
		return nil, scanError(err)
	}
	e.Amount = decimal.RequireFromString(amount)
	e.CommissionAmount = decimal.RequireFromString(commission)
	return &e, nil
}

func (r *ledgerRepo) TotalsByServer(ctx context.Context, tx repository.Tx, serverID string) ([]model.LedgerTotals, error) {
	const q = `
SELECT currency, COUNT(*), SUM(amount)::text, SUM(commission_amount)::text
  FROM ledger_entries
 WHERE server_id = $1
 GROUP BY currency
 ORDER BY currency`
	rows, err := queryRows(ctx, r.pool, tx, q, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LedgerTotals
	for rows.Next() {
		t := model.LedgerTotals{ServerID: serverID}
		var revenue, commission string
		if err := rows.Scan(&t.Currency, &t.Sales, &revenue, &commission); err != nil {
			return nil, scanError(err)
		}
		t.Revenue = decimal.RequireFromString(revenue)
		t.Commission = decimal.RequireFromString(commission)
		out = append(out, t)
	}
	return out, mapError(rows.Err())
}
