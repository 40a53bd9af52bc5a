package build

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	buildv1 "renderfarm/internal/contracts/build/v1"
	"renderfarm/internal/config"
	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/scheduler"
)

// CommandTrigger runs the build command in the coordinator process.
type CommandTrigger struct {
	command   string
	framesDir string
	log       *logger.Logger
}

func NewCommandTrigger(command, framesDir string, log *logger.Logger) *CommandTrigger {
	return &CommandTrigger{command: command, framesDir: framesDir, log: log.WithComponent("build")}
}

func (t *CommandTrigger) Fire(ctx context.Context, c scheduler.Completion) error {
	return RunCommand(ctx, t.log, t.command, Job{
		FramesDir:  t.framesDir,
		FrameCount: c.FrameCount,
	})
}

// Pusher is the producing side of the build queue.
type Pusher interface {
	Push(ctx context.Context, payload string) error
}

// QueueTrigger hands the build to a separate builder process via the queue.
type QueueTrigger struct {
	queue     Pusher
	framesDir string
	provider  string
	log       *logger.Logger
}

func NewQueueTrigger(q Pusher, framesDir, provider string, log *logger.Logger) *QueueTrigger {
	return &QueueTrigger{queue: q, framesDir: framesDir, provider: provider, log: log.WithComponent("build")}
}

func (t *QueueTrigger) Fire(ctx context.Context, c scheduler.Completion) error {
	const op = "build.QueueTrigger.Fire"

	ev := buildv1.Event{
		ID:          uuid.NewString(),
		FrameCount:  c.FrameCount,
		FramesDir:   t.framesDir,
		Provider:    t.provider,
		CompletedAt: c.CompletedAt.UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, op, "encode build event")
	}
	if err := t.queue.Push(ctx, string(payload)); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "push build event")
	}

	t.log.Info("build event queued", "event_id", ev.ID, "frames", ev.FrameCount)
	return nil
}

// NewTrigger picks the trigger named by cfg.BuildTrigger. It returns nil for
// TriggerNone; q may be nil unless the redis trigger is selected.
func NewTrigger(cfg config.Coordinator, q Pusher, log *logger.Logger) (scheduler.CompletionTrigger, error) {
	framesDir := cfg.Storage.LocalRoot
	if cfg.Storage.Provider == config.ProviderGDrive {
		framesDir = cfg.Storage.GDrive.FolderID
	}

	switch cfg.BuildTrigger {
	case config.TriggerNone, "":
		return nil, nil
	case config.TriggerCommand:
		return NewCommandTrigger(cfg.BuildCommand, framesDir, log), nil
	case config.TriggerRedis:
		if q == nil {
			return nil, errors.New(errors.CodeValidation, "redis build trigger needs a queue").WithOp("build.NewTrigger")
		}
		return NewQueueTrigger(q, framesDir, cfg.Storage.Provider, log), nil
	default:
		return nil, errors.ValidationField("BUILD_TRIGGER", "unknown build trigger").
			WithField("value", cfg.BuildTrigger)
	}
}
