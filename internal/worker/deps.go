package worker

import (
	"context"
	"time"

	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/scheduler"
	"renderfarm/internal/worker/processor"
	"renderfarm/internal/worker/renderer"
)

// Coordinator is the coordinator API a render node uses.
type Coordinator interface {
	processor.Coordinator
	DownloadSource(ctx context.Context, dst string) error
	RequestTask(ctx context.Context, count int) (scheduler.Task, error)
	Status(ctx context.Context) (scheduler.Snapshot, error)
}

type Deps struct {
	Coordinator Coordinator
	Renderer    renderer.Renderer
	// WorkDir holds the downloaded source and per-frame scratch space.
	WorkDir           string
	BatchSize         int
	HeartbeatInterval time.Duration
	// PollInterval is how long to wait after the coordinator had no work.
	PollInterval time.Duration
	Log          *logger.Logger
}
