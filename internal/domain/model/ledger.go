package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
)

// LedgerEntry is the append-only accounting record of a completed sale.
type LedgerEntry struct {
	ID               string // ULID, sortable by creation time
	OrderID          string
	ServerID         string
	ProductID        string
	Amount           decimal.Decimal
	CommissionAmount decimal.Decimal
	Currency         string
	CreatedAt        time.Time
}

// NewLedgerEntry records the sale of a COMPLETED order using the order's frozen amounts.
func NewLedgerEntry(o *Order) (*LedgerEntry, error) {
	if o == nil || o.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &LedgerEntry{
		ID:               ulid.Make().String(),
		OrderID:          o.ID,
		ServerID:         o.ServerID,
		ProductID:        o.ProductID,
		Amount:           o.Amount,
		CommissionAmount: o.CommissionAmount,
		Currency:         o.Currency,
		CreatedAt:        now,
	}, nil
}

// LedgerTotals aggregates ledger entries for one server and currency.
type LedgerTotals struct {
	ServerID   string
	Currency   string
	Sales      int64
	Revenue    decimal.Decimal
	Commission decimal.Decimal
}

// Net is what the shop owner keeps after commission.
func (t LedgerTotals) Net() decimal.Decimal { return t.Revenue.Sub(t.Commission) }
