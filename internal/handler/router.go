package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/factorydesk/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware консоли factorydesk.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/orders", h.GetOrders)
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/archive", h.GetArchive)

		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.PatchSettings)

		r.Post("/sync/pull", h.TriggerSyncPull)
		r.Get("/sync/status", h.GetSyncStatus)

		r.Get("/state/{store}", func(w http.ResponseWriter, req *http.Request) {
			h.GetState(w, req, chi.URLParam(req, "store"))
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
