package worker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/scheduler"
	"renderfarm/internal/worker/processor"
)

const sourceFile = "source.blend"

// Run downloads the source asset and then requests, renders and submits
// tasks until the coordinator reports the job complete or ctx is canceled.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	batch := d.BatchSize
	if batch < 1 {
		batch = 1
	}
	poll := d.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	if err := os.MkdirAll(d.WorkDir, 0o755); err != nil {
		return errors.Wrap(err, "worker.Run", "create work directory")
	}
	source := filepath.Join(d.WorkDir, sourceFile)
	if err := d.Coordinator.DownloadSource(ctx, source); err != nil {
		return errors.Wrap(err, "worker.Run", "download source")
	}
	log.Info("source downloaded", "path", source)

	p := processor.New(processor.Deps{
		Coordinator:       d.Coordinator,
		Renderer:          d.Renderer,
		Source:            source,
		WorkDir:           d.WorkDir,
		HeartbeatInterval: d.HeartbeatInterval,
		Log:               log,
	})

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		task, err := d.Coordinator.RequestTask(ctx, batch)
		switch {
		case err == nil:
			taskLog := log.WithWorkerID(task.WorkerID)
			taskLog.Info("task received", "frames", len(task.Frames), "lease_expiry", task.LeaseExpiry)
			startTime := time.Now()

			res, err := p.ProcessTask(ctx, task)
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			if err != nil {
				taskLog.WithError(err).Warn("task abandoned", "submitted", res.Submitted)
			} else {
				taskLog.Info("task finished",
					"submitted", res.Submitted,
					"failed", res.Failed,
					"duration_ms", time.Since(startTime).Milliseconds(),
				)
			}
			continue

		case errors.Is(err, scheduler.ErrNoWorkAvailable):
			snap, serr := d.Coordinator.Status(ctx)
			if serr == nil && snap.Complete {
				log.Info("job complete, stopping", "frames", snap.FrameCount)
				return nil
			}
			log.Debug("no work available, waiting", "poll_interval", poll)

		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("task request failed, retrying")
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
