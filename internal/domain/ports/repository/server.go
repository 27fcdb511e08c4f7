package repository

import (
	"context"
	"time"

	"discord-storefront/internal/domain/model"
)

type ServerRepository interface {
	Upsert(ctx context.Context, tx Tx, s *model.ServerSettings) error
	FindByID(ctx context.Context, tx Tx, serverID string) (*model.ServerSettings, error)
}

type ReviewRepository interface {
	// Create yields domain.ErrAlreadyExists when the order already has a review.
	Create(ctx context.Context, tx Tx, r *model.Review) error
	FindByOrder(ctx context.Context, tx Tx, orderID string) (*model.Review, error)
	ListByProduct(ctx context.Context, tx Tx, productID string, limit int) ([]*model.Review, error)
}

type RoleGrantRepository interface {
	Save(ctx context.Context, tx Tx, g *model.RoleGrant) error
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.RoleGrant, error)
	MarkRevoked(ctx context.Context, tx Tx, id string, at time.Time) error
}
