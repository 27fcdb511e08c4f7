package repository

import (
	"context"
	"time"

	"discord-storefront/internal/domain/model"
)

// OrderFilter narrows admin order listings. Zero values mean "any".
type OrderFilter struct {
	ServerID string
	BuyerID  string
	Status   model.OrderStatus
	Limit    int
	Offset   int
}

type OrderRepository interface {
	// Create inserts a new order; a duplicate payment intent id yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByPaymentIntent(ctx context.Context, tx Tx, paymentIntentID string) (*model.Order, error)
	List(ctx context.Context, tx Tx, f OrderFilter) ([]*model.Order, error)

	// UpdateStatusIfPending moves a PENDING order to status and reports whether it did.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.OrderStatus) (bool, error)
	// SaveDeliveryData overwrites delivery_data without touching the delivered flag.
	SaveDeliveryData(ctx context.Context, tx Tx, id string, data *model.DeliveryData) error
	// MarkDelivered sets delivered=true only for COMPLETED, undelivered orders.
	MarkDelivered(ctx context.Context, tx Tx, id string, data *model.DeliveryData, at time.Time) (bool, error)

	// ListUndelivered returns COMPLETED, undelivered orders without a consumed
	// resource or a blocked marker that completed before olderThan.
	ListUndelivered(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}

type LedgerRepository interface {
	// Append inserts an entry; a second entry for the same order yields domain.ErrAlreadyExists.
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	FindByOrder(ctx context.Context, tx Tx, orderID string) (*model.LedgerEntry, error)
	TotalsByServer(ctx context.Context, tx Tx, serverID string) ([]model.LedgerTotals, error)
}
