package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"renderfarm/internal/httpapi/handlers"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/pkg/middleware"
	"renderfarm/internal/ports"
	"renderfarm/internal/scheduler"
)

type Deps struct {
	Scheduler *scheduler.Scheduler
	SP        ports.StorageProvider
	Ledger    handlers.Ledger
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Log      *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.WorkerID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	h := handlers.New(handlers.Deps{
		Scheduler: d.Scheduler,
		SP:        d.SP,
		Ledger:    d.Ledger,
		Pool:      d.Pool,
		RDB:       d.RDB,
		Log:       log,
	})
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(h.Log(), fn)
	}

	// ---- OPS ----
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// ---- SCHEDULING ----
	r.Get("/frames", h.GetFrames)
	r.Post("/tasks", wrap(h.PostTask))
	r.Put("/tasks", wrap(h.PutTask))
	r.Post("/workers/alive", wrap(h.PostAlive))

	return r
}
