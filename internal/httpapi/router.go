package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	return r
}

func NewInventoryRouter(h *InventoryHandler) http.Handler {
	r := newRouter()

	r.Get("/health", h.Health)

	r.Route("/api/inventory", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Post("/adjust", h.Adjust)
		r.Get("/{productID}", h.GetByProduct)
		r.Delete("/{productID}", h.Delete)
		r.Get("/variant/{variantID}", h.GetByVariant)
	})

	return r
}

func NewOrderRouter(h *OrderHandler, broker BrokerHealth) http.Handler {
	r := newRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"service":          "order-service",
			"broker_state":     broker.State().String(),
			"broker_reachable": broker.HealthCheck(ctx),
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{orderID}", h.Get)
		r.Post("/{orderID}/cancel", h.Cancel)
		r.Post("/{orderID}/status", h.UpdateStatus)
	})

	return r
}
