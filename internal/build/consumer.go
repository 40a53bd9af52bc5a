package build

import (
	"context"
	"encoding/json"
	"time"

	buildv1 "renderfarm/internal/contracts/build/v1"
	"renderfarm/internal/pkg/logger"
)

// Popper is the consuming side of the build queue.
type Popper interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// Consumer runs the build command for every event taken off the queue.
type Consumer struct {
	queue      Popper
	command    string
	popTimeout time.Duration
	retryDelay time.Duration
	log        *logger.Logger
}

func NewConsumer(q Popper, command string, popTimeout time.Duration, log *logger.Logger) *Consumer {
	return &Consumer{
		queue:      q,
		command:    command,
		popTimeout: popTimeout,
		retryDelay: time.Second,
		log:        log.WithComponent("builder"),
	}
}

// Run consumes events until ctx is cancelled. A failing build is logged and
// not retried.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.log.Info("builder context canceled, stopping")
			return ctx.Err()
		}

		payload, err := c.queue.Pop(ctx, c.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}
		if payload == "" {
			continue
		}

		_ = c.Handle(ctx, payload)
	}
}

// Handle decodes one event and runs the build for it.
func (c *Consumer) Handle(ctx context.Context, payload string) error {
	var ev buildv1.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		c.log.Error("discarding malformed build event", "error", err.Error(), "payload", payload)
		return err
	}

	log := c.log.With("event_id", ev.ID)
	start := time.Now()
	err := RunCommand(ctx, &logger.Logger{Logger: log}, c.command, Job{
		FramesDir:  ev.FramesDir,
		FrameCount: ev.FrameCount,
		EventID:    ev.ID,
	})
	if err != nil {
		c.log.LogError(ctx, "build failed", err, "event_id", ev.ID)
		return err
	}
	log.Info("build completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
