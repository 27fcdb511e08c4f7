package apiv1

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/usecase"
)

type productRequest struct {
	ServerID       string           `json:"server_id"`
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	Currency       *string          `json:"currency"`
	Type           string           `json:"type"`
	Stock          *int64           `json:"stock"`
	UnlimitedStock bool             `json:"unlimited_stock"`
	Active         *bool            `json:"active"`
	File           *fileDTO         `json:"file"`
	Role           *roleDTO         `json:"role"`
}

func (req productRequest) input(actorID string) (usecase.ProductInput, error) {
	in := usecase.ProductInput{
		ServerID:    strings.TrimSpace(req.ServerID),
		OwnerID:     actorID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Type:        model.ProductType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Stock:       req.Stock,
		ClearStock:  req.UnlimitedStock,
		Active:      req.Active,
	}
	if req.File != nil {
		in.File = &model.FileAsset{URL: strings.TrimSpace(req.File.URL), Name: req.File.Name}
	}
	if req.Role != nil {
		policy, err := rolePolicy(req.Role)
		if err != nil {
			return in, err
		}
		in.Role = policy
	}
	return in, nil
}

func rolePolicy(d *roleDTO) (*model.RolePolicy, error) {
	p := &model.RolePolicy{RoleID: strings.TrimSpace(d.RoleID), AutoRenew: d.AutoRenew}
	var err error
	if d.Duration != "" {
		if p.Duration, err = time.ParseDuration(d.Duration); err != nil {
			return nil, fmt.Errorf("%w: duration: %v", domain.ErrInvalidArgument, err)
		}
	}
	if d.GracePeriod != "" {
		if p.GracePeriod, err = time.ParseDuration(d.GracePeriod); err != nil {
			return nil, fmt.Errorf("%w: grace_period: %v", domain.ErrInvalidArgument, err)
		}
	}
	return p, nil
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	in, err := req.input(actor(r.Context()))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	in, err := req.input(actor(r.Context()))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), actor(r.Context()), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	var (
		serverID   string
		activeOnly *bool
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "server_id", q, &serverID); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "active_only", q, &activeOnly); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	products, err := s.catalog.ListProducts(r.Context(), serverID, activeOnly != nil && *activeOnly)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(products, func(p *model.Product, _ int) productDTO { return toProductDTO(p) }))
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id"), actor(r.Context())); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serialsRequest struct {
	Serials []string `json:"serials"`
}

func (s *Server) addSerials(w http.ResponseWriter, r *http.Request) {
	var req serialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	added, err := s.catalog.AddSerials(r.Context(), chi.URLParam(r, "id"), actor(r.Context()), req.Serials)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}
