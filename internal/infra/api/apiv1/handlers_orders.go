package apiv1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/logging"
	"discord-storefront/internal/usecase"
)

const maxListLimit = 200

// handleStripeWebhook answers 200 to every authenticated notification, including
// ones that could not be applied; only authentication failures get a 400.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.log, errors.Join(errBadRequest, err))
		return
	}
	err = s.orders.HandlePaymentNotification(r.Context(), serverID, payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, domain.ErrSignatureInvalid) || errors.Is(err, domain.ErrMalformedEvent) {
		logging.With(r.Context(), s.log).Warn().Err(err).Str("server_id", serverID).Msg("webhook rejected")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Str("server_id", serverID).Msg("webhook handling failed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type purchaseRequest struct {
	ProductID  string `json:"product_id"`
	BuyerID    string `json:"buyer_id"`
	BuyerEmail string `json:"buyer_email"`
}

type purchaseResponse struct {
	Order           orderDTO `json:"order"`
	PaymentIntentID string   `json:"payment_intent_id"`
	ClientSecret    string   `json:"client_secret,omitempty"`
}

func (s *Server) initiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.orders.InitiatePurchase(r.Context(), usecase.PurchaseRequest{
		ProductID:  strings.TrimSpace(req.ProductID),
		BuyerID:    strings.TrimSpace(req.BuyerID),
		BuyerEmail: strings.TrimSpace(req.BuyerEmail),
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchaseResponse{
		Order:           toOrderDTO(res.Order),
		PaymentIntentID: res.PaymentIntentID,
		ClientSecret:    res.ClientSecret,
	})
}

// ListOrdersParams are the query parameters of GET /api/v1/orders.
type ListOrdersParams struct {
	ServerID *string `form:"server_id,omitempty" json:"server_id,omitempty"`
	BuyerID  *string `form:"buyer_id,omitempty" json:"buyer_id,omitempty"`
	Status   *string `form:"status,omitempty" json:"status,omitempty"`
	Limit    *int    `form:"limit,omitempty" json:"limit,omitempty"`
	Offset   *int    `form:"offset,omitempty" json:"offset,omitempty"`
}

func bindListOrdersParams(r *http.Request) (ListOrdersParams, error) {
	var p ListOrdersParams
	q := r.URL.Query()
	bindings := []struct {
		name string
		dest any
	}{
		{"server_id", &p.ServerID},
		{"buyer_id", &p.BuyerID},
		{"status", &p.Status},
		{"limit", &p.Limit},
		{"offset", &p.Offset},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return p, fmt.Errorf("%w: invalid format for parameter %s: %v", errBadRequest, b.name, err)
		}
	}
	return p, nil
}

func (p ListOrdersParams) filter() (repository.OrderFilter, error) {
	var f repository.OrderFilter
	if p.ServerID != nil {
		f.ServerID = *p.ServerID
	}
	if p.BuyerID != nil {
		f.BuyerID = *p.BuyerID
	}
	if p.Status != nil && *p.Status != "" {
		st, err := model.ToOrderStatus(strings.ToUpper(*p.Status))
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if p.Limit != nil {
		if *p.Limit < 0 {
			return f, domain.ErrInvalidArgument
		}
		f.Limit = min(*p.Limit, maxListLimit)
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return f, domain.ErrInvalidArgument
		}
		f.Offset = *p.Offset
	}
	return f, nil
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	params, err := bindListOrdersParams(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	f, err := params.filter()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	orders, err := s.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(orders, func(o *model.Order, _ int) orderDTO { return toOrderDTO(o) }))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// deliverOrder runs a delivery synchronously. A partial delivery answers 502
// with the order so the operator can see which resource was handed out.
func (s *Server) deliverOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logging.With(r.Context(), s.log).Info().Str("order_id", id).Str("actor", actor(r.Context())).Msg("manual delivery requested")

	o, err := s.delivery.Deliver(r.Context(), id)
	if err != nil {
		if o != nil && errors.Is(err, domain.ErrPartialDelivery) {
			writeJSON(w, http.StatusBadGateway, struct {
				Error string   `json:"error"`
				Order orderDTO `json:"order"`
			}{Error: err.Error(), Order: toOrderDTO(o)})
			return
		}
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}
