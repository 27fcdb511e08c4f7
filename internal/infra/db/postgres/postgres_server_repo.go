package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
)

var _ repository.ServerRepository = (*serverRepo)(nil)

// SecretCipher seals payment credentials before they reach the servers table.
type SecretCipher interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type plainCipher struct{}

func (plainCipher) Seal(s string) (string, error) { return s, nil }
func (plainCipher) Open(s string) (string, error) { return s, nil }

type serverRepo struct {
	pool    *pgxpool.Pool
	secrets SecretCipher
}

// NewServerRepo stores credentials in plaintext when secrets is nil.
func NewServerRepo(pool *pgxpool.Pool, secrets SecretCipher) *serverRepo {
	if secrets == nil {
		secrets = plainCipher{}
	}
	return &serverRepo{pool: pool, secrets: secrets}
}

func (r *serverRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.ServerSettings) error {
	const q = `
INSERT INTO servers (server_id, commission_rate, stripe_secret_key, webhook_secret, currency, updated_at)
VALUES ($1, $2::numeric, $3, $4, $5, $6)
ON CONFLICT (server_id) DO UPDATE
  SET commission_rate   = EXCLUDED.commission_rate,
      stripe_secret_key = EXCLUDED.stripe_secret_key,
      webhook_secret    = EXCLUDED.webhook_secret,
      currency          = EXCLUDED.currency,
      updated_at        = EXCLUDED.updated_at;`
	key, err := r.secrets.Seal(s.StripeSecretKey)
	if err != nil {
		return fmt.Errorf("seal stripe key: %w", err)
	}
	hook, err := r.secrets.Seal(s.WebhookSecret)
	if err != nil {
		return fmt.Errorf("seal webhook secret: %w", err)
	}
	_, err = execSQL(ctx, r.pool, tx, q, s.ServerID, s.CommissionRate.String(), key, hook, s.Currency, s.UpdatedAt)
	return err
}

func (r *serverRepo) FindByID(ctx context.Context, tx repository.Tx, serverID string) (*model.ServerSettings, error) {
	q := `SELECT server_id, commission_rate::text, stripe_secret_key, webhook_secret, currency, updated_at FROM servers WHERE server_id = $1` + forUpdate(tx)
	row, err := pickRow(ctx, r.pool, tx, q, serverID)
	if err != nil {
		return nil, err
	}
	var (
		s    model.ServerSettings
		rate string
	)
	if err := row.Scan(&s.ServerID, &rate, &s.StripeSecretKey, &s.WebhookSecret, &s.Currency, &s.UpdatedAt); err != nil {
		return nil, scanError(err)
	}
	if s.CommissionRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("%w: commission_rate %q", domain.ErrReadDatabaseRow, rate)
	}
	if s.StripeSecretKey, err = r.secrets.Open(s.StripeSecretKey); err != nil {
		return nil, fmt.Errorf("%w: stripe_secret_key: %v", domain.ErrReadDatabaseRow, err)
	}
	if s.WebhookSecret, err = r.secrets.Open(s.WebhookSecret); err != nil {
		return nil, fmt.Errorf("%w: webhook_secret: %v", domain.ErrReadDatabaseRow, err)
	}
	return &s, nil
}

var _ repository.ReviewRepository = (*reviewRepo)(nil)

type reviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepo(pool *pgxpool.Pool) *reviewRepo {
	return &reviewRepo{pool: pool}
}

func (r *reviewRepo) Create(ctx context.Context, tx repository.Tx, rv *model.Review) error {
	const q = `
INSERT INTO reviews (id, order_id, product_id, buyer_id, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := execSQL(ctx, r.pool, tx, q, rv.ID, rv.OrderID, rv.ProductID, rv.BuyerID, rv.Rating, rv.Comment, rv.CreatedAt)
	return err
}

const reviewColumns = `id, order_id, product_id, buyer_id, rating, comment, created_at`

func (r *reviewRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Review, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	var rv model.Review
	if err := row.Scan(&rv.ID, &rv.OrderID, &rv.ProductID, &rv.BuyerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
		return nil, scanError(err)
	}
	return &rv, nil
}

func (r *reviewRepo) ListByProduct(ctx context.Context, tx repository.Tx, productID string, limit int) ([]*model.Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE product_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := queryRows(ctx, r.pool, tx, q, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		rv := new(model.Review)
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.ProductID, &rv.BuyerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, scanError(err)
		}
		out = append(out, rv)
	}
	return out, mapError(rows.Err())
}

var _ repository.RoleGrantRepository = (*roleGrantRepo)(nil)

type roleGrantRepo struct{ pool *pgxpool.Pool }

func NewRoleGrantRepo(pool *pgxpool.Pool) *roleGrantRepo {
	return &roleGrantRepo{pool: pool}
}

func (r *roleGrantRepo) Save(ctx context.Context, tx repository.Tx, g *model.RoleGrant) error {
	const q = `
INSERT INTO role_grants (id, order_id, server_id, user_id, role_id, expires_at, grace_seconds, auto_renew, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := execSQL(ctx, r.pool, tx, q,
		g.ID, g.OrderID, g.ServerID, g.UserID, g.RoleID, g.ExpiresAt, int64(g.GracePeriod/time.Second), g.AutoRenew, g.CreatedAt)
	return err
}

// ListDue returns unrevoked, non-renewing grants whose grace period ended by now.
func (r *roleGrantRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.RoleGrant, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, order_id, server_id, user_id, role_id, expires_at, grace_seconds, auto_renew, revoked_at, created_at
  FROM role_grants
 WHERE revoked_at IS NULL
   AND NOT auto_renew
   AND expires_at + make_interval(secs => grace_seconds) <= $1
 ORDER BY expires_at ASC
 LIMIT $2`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RoleGrant
	for rows.Next() {
		g := new(model.RoleGrant)
		var grace int64
		if err := rows.Scan(&g.ID, &g.OrderID, &g.ServerID, &g.UserID, &g.RoleID, &g.ExpiresAt, &grace, &g.AutoRenew, &g.RevokedAt, &g.CreatedAt); err != nil {
			return nil, scanError(err)
		}
		g.GracePeriod = time.Duration(grace) * time.Second
		out = append(out, g)
	}
	return out, mapError(rows.Err())
}

func (r *roleGrantRepo) MarkRevoked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE role_grants SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
