package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/logistics-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса логистики.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/user/orders", h.CreateOrder)
			r.Get("/user/orders", h.GetOrders)
			r.Post("/user/orders/{number}/status", h.ChangeOrderStatus)
			r.Get("/user/orders/{number}/transitions", h.GetTransitions)

			r.Post("/deposits", h.CreateDeposit)
			r.Get("/deposits", h.GetDeposits)
			r.Get("/deposits/{id}/availability", h.GetDepositAvailability)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
