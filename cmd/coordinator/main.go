package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"renderfarm/internal/build"
	"renderfarm/internal/config"
	"renderfarm/internal/httpapi"
	"renderfarm/internal/httpapi/handlers"
	"renderfarm/internal/metrics"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/pkg/shutdown"
	"renderfarm/internal/repositories"
	"renderfarm/internal/scheduler"
	"renderfarm/internal/storage"
	"renderfarm/internal/worker/queue"
)

func main() {
	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = "renderfarm-coordinator"
	log := logger.New(logCfg)

	cfg, err := config.LoadCoordinator()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting render-farm coordinator",
		"frames", cfg.FrameCount,
		"lease_duration", cfg.LeaseDuration,
		"sweep_interval", cfg.SweepInterval,
		"build_trigger", cfg.BuildTrigger,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	source, err := os.ReadFile(cfg.SourceFile)
	if err != nil {
		log.LogFatal("failed to read source file", err, "path", cfg.SourceFile)
	}
	log.Info("source loaded", "path", cfg.SourceFile, "bytes", len(source))

	// The frame ledger is optional.
	var (
		pool   *pgxpool.Pool
		ledger handlers.Ledger
	)
	if cfg.DatabaseURL != "" {
		log.Info("connecting to PostgreSQL")
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.RegisterSimple("postgres", pool.Close)

		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		repo := repositories.NewFrameRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to prepare frame ledger", err)
		}
		ledger = repo
		log.Info("PostgreSQL connected, frame ledger enabled")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		log.Info("connecting to Redis")
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		log.Info("Redis connected")
	}

	log.Info("initializing storage provider")
	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	if err := sp.Check(ctx); err != nil {
		log.LogFatal("storage provider not usable", err, "provider", sp.Provider())
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	sched, err := scheduler.New(scheduler.Config{
		FrameCount:    cfg.FrameCount,
		LeaseDuration: cfg.LeaseDuration,
		Source:        source,
		Log:           log,
	})
	if err != nil {
		log.LogFatal("failed to create scheduler", err)
	}

	var pusher build.Pusher
	if rdb != nil {
		pusher = queue.NewRedisQueue(rdb, cfg.BuildQueueName)
	}
	trigger, err := build.NewTrigger(cfg, pusher, log)
	if err != nil {
		log.LogFatal("failed to configure build trigger", err)
	}

	policy := scheduler.ReclaimOnly
	if cfg.DetectCompletion {
		policy = scheduler.DetectCompletion
	}
	sweeper := scheduler.NewSweeper(sched, scheduler.SweeperConfig{
		Interval: cfg.SweepInterval,
		Policy:   policy,
		Trigger:  trigger,
		Log:      log,
	})
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweepStopped := make(chan struct{})
	go func() {
		defer close(sweepStopped)
		if err := sweeper.Run(sweepCtx); err == nil {
			log.Info("job complete, coordinator keeps serving status")
		}
	}()
	shutdownMgr.Register("sweeper", func(ctx context.Context) error {
		stopSweeper()
		select {
		case <-sweepStopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	router := httpapi.NewRouter(httpapi.Deps{
		Scheduler: sched,
		SP:        sp,
		Ledger:    ledger,
		Pool:      pool,
		RDB:       rdb,
		Gatherer:  reg,
		Log:       log,
	})

	// Uploads of large frames can be slow; only the header read is bounded.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.HTTPPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
