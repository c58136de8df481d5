package transport

import (
	"net/http"
	"time"

	"campusmarket-be/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	Limiter        *middleware.RateLimiter
}

// NewRouter mounts the HTTP surface. The payment webhook authenticates
// with its own callback token, every other route needs a bearer token.
func NewRouter(cfg RouterConfig, h *Handler, paymentWebhook http.Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.Health)
	r.Method(http.MethodPost, middleware.StrictPath, paymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.AddItem)
			r.Delete("/", h.ClearCart)
			r.Delete("/items/{productID}", h.RemoveItem)
		})

		r.Post("/checkout", h.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		r.Post("/products/{id}/pickup-confirmation", h.ConfirmPickup)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/pending", h.PendingDeliveries)
			r.Post("/{id}/accept", h.AcceptDelivery)
			r.Post("/{id}/complete", h.CompleteDelivery)
		})
	})

	return r
}
