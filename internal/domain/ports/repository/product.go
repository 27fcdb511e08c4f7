package repository

import (
	"context"

	"discord-storefront/internal/domain/model"
)

// SaleOutcome reports how a confirmed sale affected the stock counter.
type SaleOutcome int

const (
	SaleUntracked SaleOutcome = iota // stock is unlimited
	SaleDecremented
	SaleOversold // stock was already 0; sales_count still counts the sale
)

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Product, error)
	ListByServer(ctx context.Context, tx Tx, serverID string, activeOnly bool) ([]*model.Product, error)
	Delete(ctx context.Context, tx Tx, id string) error

	// RecordSale atomically increments sales_count and decrements a tracked stock
	// that is still above zero.
	RecordSale(ctx context.Context, tx Tx, id string) (SaleOutcome, error)
	// AdjustStock adds delta to a tracked stock; it never drives stock below zero.
	AdjustStock(ctx context.Context, tx Tx, id string, delta int64) error
}

// SerialRepository stores the pool of unused serials of SERIAL_POOL products.
type SerialRepository interface {
	AddSerials(ctx context.Context, tx Tx, productID string, serials []string) (int, error)
	// PopSerial atomically assigns one unused serial to orderID. Calling it again for
	// the same order returns the serial already assigned instead of taking a new one.
	// Returns domain.ErrOutOfStock when the pool is empty.
	PopSerial(ctx context.Context, tx Tx, productID, orderID string) (string, error)
	CountAvailable(ctx context.Context, tx Tx, productID string) (int64, error)
}
