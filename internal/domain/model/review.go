package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"discord-storefront/internal/domain"
)

// Review is buyer feedback; at most one exists per order.
type Review struct {
	ID        string
	OrderID   string
	ProductID string
	BuyerID   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

const maxReviewComment = 2000

func NewReview(orderID, productID, buyerID string, rating int, comment string) (*Review, error) {
	if orderID == "" || buyerID == "" || rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidArgument
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxReviewComment {
		return nil, domain.ErrInvalidArgument
	}
	return &Review{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ProductID: productID,
		BuyerID:   buyerID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}, nil
}
