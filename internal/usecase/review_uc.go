package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
)

// Compile-time check
var _ ReviewUseCase = (*reviewUC)(nil)

type ReviewUseCase interface {
	// Submit stores the review of the order the token was issued for.
	// A second review for the same order yields domain.ErrAlreadyExists.
	Submit(ctx context.Context, token string, rating int, comment string) (*model.Review, error)
	ListByProduct(ctx context.Context, productID string, limit int) ([]*model.Review, error)
}

type reviewUC struct {
	reviews repository.ReviewRepository
	orders  repository.OrderRepository
	tokens  adapter.ReviewTokenIssuer
	log     *zerolog.Logger
}

func NewReviewUseCase(reviews repository.ReviewRepository, orders repository.OrderRepository, tokens adapter.ReviewTokenIssuer, logger *zerolog.Logger) *reviewUC {
	l := logger.With().Str("component", "ReviewUC").Logger()
	return &reviewUC{reviews: reviews, orders: orders, tokens: tokens, log: &l}
}

func (u *reviewUC) Submit(ctx context.Context, token string, rating int, comment string) (*model.Review, error) {
	claims, err := u.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	o, err := u.orders.FindByID(ctx, repository.NoTX, claims.OrderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != claims.BuyerID {
		return nil, domain.ErrInvalidToken
	}
	if o.Status != model.OrderStatusCompleted {
		return nil, domain.ErrOrderNotCompleted
	}
	r, err := model.NewReview(o.ID, o.ProductID, o.BuyerID, rating, comment)
	if err != nil {
		return nil, err
	}
	if err := u.reviews.Create(ctx, repository.NoTX, r); err != nil {
		return nil, err
	}
	u.log.Info().Str("order_id", o.ID).Int("rating", rating).Msg("review submitted")
	return r, nil
}

func (u *reviewUC) ListByProduct(ctx context.Context, productID string, limit int) ([]*model.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.reviews.ListByProduct(ctx, repository.NoTX, productID, limit)
}
