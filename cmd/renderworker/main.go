package main

import (
	"context"
	"os/signal"
	"syscall"

	"renderfarm/internal/config"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/worker"
	"renderfarm/internal/worker/coordinator"
	"renderfarm/internal/worker/renderer"
)

func main() {
	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = "renderfarm-worker"
	log := logger.New(logCfg)

	cfg, err := config.LoadRenderWorker()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	r, err := renderer.NewCommand(cfg.RenderCommand, log)
	if err != nil {
		log.LogFatal("invalid render command", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("render worker started",
		"coordinator", cfg.CoordinatorURL,
		"batch_size", cfg.BatchSize,
		"work_dir", cfg.WorkDir,
	)

	err = worker.Run(ctx, worker.Deps{
		Coordinator:       coordinator.NewHTTPClient(cfg.CoordinatorURL, cfg.HTTPTimeout),
		Renderer:          r,
		WorkDir:           cfg.WorkDir,
		BatchSize:         cfg.BatchSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		PollInterval:      cfg.PollInterval,
		Log:               log,
	})
	if err != nil && ctx.Err() == nil {
		log.LogFatal("render worker failed", err)
	}
	log.Info("render worker stopped")
}
