package server

import (
	"net/http"
	"time"

	"github.com/conduit-lang/catalog/internal/metrics"
	"github.com/conduit-lang/catalog/internal/web/middleware"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultRescanInterval is the minimum spacing of POST /api/rescan calls per
// client when no rate is configured.
const DefaultRescanInterval = 10 * time.Second

// HandlerConfig wires the API handler to its collaborators. Only API is
// required.
type HandlerConfig struct {
	API     *catalog.API
	Events  http.Handler // websocket change stream, usually a *watch.Hub
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// RescanRate is the number of rescans per second allowed per client
	RescanRate  rate.Limit
	RescanBurst int
}

// NewHandler builds the router:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/components            ?category&search&sortBy&sortDirection&limit&offset
//	GET  /api/components/*          one record by path
//	GET  /api/changes               ?path&limit
//	GET  /api/dependents            ?path
//	GET  /api/dependencies          ?path&depth&reverse
//	GET  /api/regressions           ?threshold
//	POST /api/performance           ?path, body: performance metrics
//	POST /api/rescan
//	GET  /api/events                websocket
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RescanRate <= 0 {
		cfg.RescanRate = rate.Every(DefaultRescanInterval)
	}
	h := &handlers{api: cfg.API, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger, "/healthz", "/metrics"),
	).Handlers()...)
	r.Use(cfg.Metrics.Middleware)

	r.Get("/healthz", h.health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5, "application/json"))
			r.Get("/components", h.listComponents)
			r.Get("/components/*", h.getComponent)
			r.Get("/changes", h.changes)
			r.Get("/dependents", h.dependents)
			r.Get("/dependencies", h.dependencies)
			r.Get("/regressions", h.regressions)
			r.Post("/performance", h.recordPerformance)
		})

		limiter := middleware.NewRateLimiter(cfg.RescanRate, cfg.RescanBurst, nil)
		r.With(limiter.Middleware).Post("/rescan", h.rescan)

		if cfg.Events != nil {
			r.Handle("/events", cfg.Events)
		}
	})
	return r
}
