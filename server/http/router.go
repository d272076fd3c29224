package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dedup-service/internal/config"
	"dedup-service/internal/dedup/handler"
	"dedup-service/internal/middleware"
	"dedup-service/internal/observability"
)

// NewRouter wires middleware and routes. A nil gatherer serves the default
// Prometheus registry.
func NewRouter(cfg config.Config, logger zerolog.Logger, h *handler.Handler, metrics *observability.Metrics, gatherer prometheus.Gatherer) *chi.Mux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()

	// order matters: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Logging(logger, metrics))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	r.Get("/health", handler.Health)
	r.Get("/config", h.Config)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/duplicates", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Get("/rank", h.Rank)
	})
	r.Route("/analysis", func(r chi.Router) {
		r.Get("/", h.ListAnalyses)
		r.Get("/{fileID}", h.GetAnalysis)
	})

	return r
}
