package apiv1

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain/model"
)

type fileDTO struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type roleDTO struct {
	RoleID      string `json:"role_id"`
	Duration    string `json:"duration,omitempty"`
	AutoRenew   bool   `json:"auto_renew,omitempty"`
	GracePeriod string `json:"grace_period,omitempty"`
}

type productDTO struct {
	ID               string          `json:"id"`
	ServerID         string          `json:"server_id"`
	OwnerID          string          `json:"owner_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	Type             string          `json:"type"`
	Stock            *int64          `json:"stock"`
	SalesCount       int64           `json:"sales_count"`
	Active           bool            `json:"active"`
	File             *fileDTO        `json:"file,omitempty"`
	Role             *roleDTO        `json:"role,omitempty"`
	AvailableSerials int64           `json:"available_serials,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toProductDTO(p *model.Product) productDTO {
	out := productDTO{
		ID:               p.ID,
		ServerID:         p.ServerID,
		OwnerID:          p.OwnerID,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Currency:         p.Currency,
		Type:             string(p.Type),
		Stock:            p.Stock,
		SalesCount:       p.SalesCount,
		Active:           p.Active,
		AvailableSerials: p.AvailableSerials,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.File != nil {
		out.File = &fileDTO{URL: p.File.URL, Name: p.File.Name}
	}
	if p.Role != nil {
		out.Role = &roleDTO{
			RoleID:    p.Role.RoleID,
			AutoRenew: p.Role.AutoRenew,
		}
		if p.Role.Duration > 0 {
			out.Role.Duration = p.Role.Duration.String()
		}
		if p.Role.GracePeriod > 0 {
			out.Role.GracePeriod = p.Role.GracePeriod.String()
		}
	}
	return out
}

type deliveryDTO struct {
	Kind        string    `json:"kind,omitempty"`
	Channels    []string  `json:"channels,omitempty"`
	FulfilledAt time.Time `json:"fulfilled_at"`
	Partial     bool      `json:"partial,omitempty"`
	Blocked     bool      `json:"blocked,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

type orderDTO struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	ServerID         string          `json:"server_id"`
	BuyerID          string          `json:"buyer_id"`
	PaymentIntentID  string          `json:"payment_intent_id"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	Delivered        bool            `json:"delivered"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	Delivery         *deliveryDTO    `json:"delivery,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// toOrderDTO leaves out the buyer email and the delivered payload (serials, links).
func toOrderDTO(o *model.Order) orderDTO {
	out := orderDTO{
		ID:               o.ID,
		ProductID:        o.ProductID,
		ServerID:         o.ServerID,
		BuyerID:          o.BuyerID,
		PaymentIntentID:  o.PaymentIntentID,
		Status:           string(o.Status),
		Amount:           o.Amount,
		Currency:         o.Currency,
		CommissionAmount: o.CommissionAmount,
		Delivered:        o.Delivered,
		DeliveredAt:      o.DeliveredAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if d := o.DeliveryData; d != nil {
		out.Delivery = &deliveryDTO{
			Channels:    lo.Map(d.Channels, func(c model.NoticeChannel, _ int) string { return string(c) }),
			FulfilledAt: d.FulfilledAt,
			Partial:     d.Partial,
			Blocked:     d.Blocked,
			LastError:   d.LastError,
		}
		if d.Fulfillment != nil {
			out.Delivery.Kind = string(d.Fulfillment.Kind())
		}
	}
	return out
}

type serverDTO struct {
	ServerID       string          `json:"server_id"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Currency       string          `json:"currency,omitempty"`
	PaymentReady   bool            `json:"payment_ready"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toServerDTO(s *model.ServerSettings) serverDTO {
	return serverDTO{
		ServerID:       s.ServerID,
		CommissionRate: s.CommissionRate,
		Currency:       s.Currency,
		PaymentReady:   s.PaymentReady(),
		UpdatedAt:      s.UpdatedAt,
	}
}

type totalsDTO struct {
	Currency   string          `json:"currency"`
	Sales      int64           `json:"sales"`
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
}

func toTotalsDTO(t model.LedgerTotals, _ int) totalsDTO {
	return totalsDTO{
		Currency:   t.Currency,
		Sales:      t.Sales,
		Revenue:    t.Revenue,
		Commission: t.Commission,
		Net:        t.Net(),
	}
}

type reviewDTO struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewDTO(r *model.Review, _ int) reviewDTO {
	return reviewDTO{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		BuyerID:   r.BuyerID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func listOf[S any, T any](in []S, f func(S, int) T) listResponse[T] {
	items := lo.Map(in, f)
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items}
}
