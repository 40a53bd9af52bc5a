package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"renderfarm/internal/build"
	"renderfarm/internal/config"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/pkg/shutdown"
	"renderfarm/internal/worker/queue"
)

func main() {
	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = "renderfarm-builder"
	log := logger.New(logCfg)

	cfg, err := config.LoadBuilder()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	q := queue.NewRedisQueue(rdb, cfg.QueueName)
	consumer := build.NewConsumer(q, cfg.BuildCommand, cfg.PopTimeout, log)

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		log.Info("builder consuming", "queue", q.Name())
		if err := consumer.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.LogFatal("builder failed", err)
		}
	}()
	shutdownMgr.Register("consumer", func(ctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	shutdownMgr.Wait()
}
