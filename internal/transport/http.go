package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/food-order-service/internal/handler"
)

// NewRouter wires the order handler and the metrics exposition endpoint into
// one chi router.
func NewRouter(h *handler.OrderHandler, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	h.RegisterRoutes(r)

	return r
}
