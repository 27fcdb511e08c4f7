package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether no transition leaves this status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

func ToOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return st, nil
	}
	return "", domain.ErrInvalidArgument
}

// Order is one purchase attempt, keyed by its payment intent.
type Order struct {
	ID               string
	ProductID        string
	ServerID         string
	BuyerID          string
	BuyerEmail       string
	PaymentIntentID  string
	Status           OrderStatus
	Amount           decimal.Decimal
	Currency         string
	CommissionAmount decimal.Decimal
	Delivered        bool
	DeliveredAt      *time.Time
	DeliveryData     *DeliveryData
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPendingOrder builds the PENDING order for a freshly created payment intent.
// The commission is computed once here and never recomputed.
func NewPendingOrder(p *Product, buyerID, buyerEmail, paymentIntentID string, commissionRate decimal.Decimal) (*Order, error) {
	if p.IsZero() || buyerID == "" || paymentIntentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if commissionRate.IsNegative() || commissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:               uuid.NewString(),
		ProductID:        p.ID,
		ServerID:         p.ServerID,
		BuyerID:          buyerID,
		BuyerEmail:       buyerEmail,
		PaymentIntentID:  paymentIntentID,
		Status:           OrderStatusPending,
		Amount:           p.Price,
		Currency:         p.Currency,
		CommissionAmount: p.Price.Mul(commissionRate),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ResourceConsumed reports whether a fulfillment was already recorded for the order.
// Such an order must never be fulfilled a second time.
func (o *Order) ResourceConsumed() bool {
	return o.DeliveryData != nil && o.DeliveryData.Fulfillment != nil
}

// DeliveryBlocked reports whether automatic delivery gave up on a misconfigured product.
func (o *Order) DeliveryBlocked() bool {
	return o.DeliveryData != nil && o.DeliveryData.Blocked
}
