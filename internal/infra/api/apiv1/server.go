package apiv1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"discord-storefront/internal/infra/auth"
	"discord-storefront/internal/usecase"
)

// Server holds the handlers of the webhook endpoint and the /api/v1 admin API.
type Server struct {
	orders   usecase.OrderUseCase
	delivery usecase.DeliveryUseCase
	catalog  usecase.CatalogUseCase
	servers  usecase.ServerUseCase
	reviews  usecase.ReviewUseCase
	admin    *auth.AdminAuth
	log      *zerolog.Logger
}

func NewServer(
	orders usecase.OrderUseCase,
	delivery usecase.DeliveryUseCase,
	catalog usecase.CatalogUseCase,
	servers usecase.ServerUseCase,
	reviews usecase.ReviewUseCase,
	admin *auth.AdminAuth,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{
		orders:   orders,
		delivery: delivery,
		catalog:  catalog,
		servers:  servers,
		reviews:  reviews,
		admin:    admin,
		log:      &l,
	}
}

// RegisterAPIV1 mounts all routes on r using absolute paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/webhooks/stripe/{serverID}", s.handleStripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reviews", s.submitReview)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Post("/purchases", s.initiatePurchase)

			r.Get("/orders", s.listOrders)
			r.Get("/orders/{id}", s.getOrder)
			r.Post("/orders/{id}/deliver", s.deliverOrder)

			r.Get("/products", s.listProducts)
			r.Post("/products", s.createProduct)
			r.Get("/products/{id}", s.getProduct)
			r.Put("/products/{id}", s.updateProduct)
			r.Delete("/products/{id}", s.deleteProduct)
			r.Post("/products/{id}/serials", s.addSerials)
			r.Get("/products/{id}/reviews", s.listReviews)

			r.Put("/servers/{id}", s.updateServer)
			r.Get("/servers/{id}/stats", s.serverStats)
		})
	})
}

type actorKey struct{}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.admin.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actor is the Discord user id the admin token was minted for.
func actor(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	return v
}
