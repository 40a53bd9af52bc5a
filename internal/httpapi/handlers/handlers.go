package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"renderfarm/internal/models"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/ports"
	"renderfarm/internal/scheduler"
)

// Ledger records persisted frames. It is optional.
type Ledger interface {
	Record(ctx context.Context, f *models.FrameResult) error
}

type Deps struct {
	Scheduler *scheduler.Scheduler
	SP        ports.StorageProvider
	Ledger    Ledger
	// Pool and RDB are only used by the deep health check and may be nil.
	Pool *pgxpool.Pool
	RDB  *redis.Client
	Log  *logger.Logger
}

type Handler struct {
	sched  *scheduler.Scheduler
	sp     ports.StorageProvider
	ledger Ledger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	log    *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		sched:  d.Scheduler,
		sp:     d.SP,
		ledger: d.Ledger,
		pool:   d.Pool,
		rdb:    d.RDB,
		log:    log.WithComponent("http"),
	}
}

// Log is the logger handlers report errors through.
func (h *Handler) Log() *logger.Logger {
	return h.log
}
