package apiv1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/usecase"
)

type serverRequest struct {
	CommissionRate  *decimal.Decimal `json:"commission_rate"`
	StripeSecretKey *string          `json:"stripe_secret_key"`
	WebhookSecret   *string          `json:"webhook_secret"`
	Currency        *string          `json:"currency"`
}

func (s *Server) updateServer(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	settings, err := s.servers.UpdateSettings(r.Context(), usecase.ServerSettingsInput{
		ServerID:        chi.URLParam(r, "id"),
		CommissionRate:  req.CommissionRate,
		StripeSecretKey: req.StripeSecretKey,
		WebhookSecret:   req.WebhookSecret,
		Currency:        req.Currency,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toServerDTO(settings))
}

func (s *Server) serverStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.servers.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(totals, toTotalsDTO))
}

type reviewRequest struct {
	Token   string `json:"token"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// submitReview is authorized by the review token alone.
func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	rv, err := s.reviews.Submit(r.Context(), req.Token, req.Rating, req.Comment)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewDTO(rv, 0))
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 20
	var p *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &p); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if p != nil && *p > 0 {
		limit = min(*p, maxListLimit)
	}
	reviews, err := s.reviews.ListByProduct(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(reviews, toReviewDTO))
}
