package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/chi-demo/app"
)

// RouterConfig holds what the top-level router needs besides the handler.
type RouterConfig struct {
	APIPrefix   string
	Environment string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// Timeout bounds each request; zero disables it.
	Timeout time.Duration
}

// NewRouter builds the full HTTP surface: health probes, metrics and the
// asset routes under the API prefix.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status":      "healthy",
			"environment": cfg.Environment,
		})
	})
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	prefix := cfg.APIPrefix
	if prefix == "" || prefix == "/" {
		r.Mount("/assets", h.Routes())
		return r
	}
	r.Route(prefix, func(r chi.Router) {
		r.Mount("/assets", h.Routes())
	})
	return r
}
