// Package processor works through one task: it renders each frame, submits
// it and keeps the lease alive while doing so.
package processor

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/scheduler"
	"renderfarm/internal/worker/renderer"
)

// Coordinator is the part of the coordinator API a task needs.
type Coordinator interface {
	Submit(ctx context.Context, workerID scheduler.WorkerID, frame scheduler.FrameID, path string) (scheduler.Task, error)
	Heartbeat(ctx context.Context, workerID scheduler.WorkerID) error
}

type Deps struct {
	Coordinator       Coordinator
	Renderer          renderer.Renderer
	Source            string
	WorkDir           string
	HeartbeatInterval time.Duration
	Log               *logger.Logger
}

type Processor struct {
	coord     Coordinator
	renderer  renderer.Renderer
	source    string
	heartbeat time.Duration
	cleanup   *Cleanup
	log       *logger.Logger
}

// Result counts what happened to the frames of a task.
type Result struct {
	Submitted int
	Failed    int
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	interval := d.HeartbeatInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Processor{
		coord:     d.Coordinator,
		renderer:  d.Renderer,
		source:    d.Source,
		heartbeat: interval,
		cleanup:   NewCleanup(d.WorkDir),
		log:       log.WithComponent("processor"),
	}
}

// ProcessTask renders and submits every frame the task holds, including
// frames the coordinator adds along the way, and returns once the task has
// nothing outstanding. A lost lease ends the task with ErrUnknownWorker.
func (p *Processor) ProcessTask(ctx context.Context, task scheduler.Task) (Result, error) {
	ctx = logger.ContextWithWorkerID(ctx, task.WorkerID)
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		return p.keepAlive(gctx, task.WorkerID, done)
	})

	var res Result
	g.Go(func() error {
		defer close(done)
		var err error
		res, err = p.work(gctx, task)
		return err
	})

	err := g.Wait()
	return res, err
}

func (p *Processor) work(ctx context.Context, task scheduler.Task) (Result, error) {
	log := p.log.FromContext(ctx)

	var (
		res     Result
		skipped []scheduler.FrameID
	)
	pending := slices.Clone(task.Frames)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		frame := pending[0]
		pending = pending[1:]
		frameLog := log.WithFrameID(frame)

		next, err := p.processFrame(ctx, task.WorkerID, frame)
		switch {
		case err == nil:
			res.Submitted++
			// The coordinator's view is authoritative; it no longer lists
			// the submitted frame and may have added a new one.
			pending = slices.DeleteFunc(next.Frames, func(f scheduler.FrameID) bool {
				return slices.Contains(skipped, f)
			})

		case errors.Is(err, scheduler.ErrNoWorkAvailable):
			res.Submitted++

		case errors.Is(err, scheduler.ErrUnknownWorker):
			frameLog.WithError(err).Warn("lease lost")
			return res, err

		case ctx.Err() != nil:
			return res, ctx.Err()

		default:
			// The frame stays on the lease and goes back to the pool when
			// the lease expires.
			res.Failed++
			skipped = append(skipped, frame)
			frameLog.WithError(err).Warn("frame skipped")
		}
	}
	return res, nil
}

func (p *Processor) processFrame(ctx context.Context, workerID scheduler.WorkerID, frame scheduler.FrameID) (scheduler.Task, error) {
	log := p.log.FromContext(ctx).WithFrameID(frame)
	defer func() {
		if err := p.cleanup.CleanupFrame(frame); err != nil {
			log.WithError(err).Warn("frame cleanup failed")
		}
	}()

	path, err := p.renderer.Render(ctx, renderer.Request{
		Source: p.source,
		Frame:  frame,
		OutDir: p.cleanup.FrameDir(frame),
	})
	if err != nil {
		return scheduler.Task{}, err
	}

	start := time.Now()
	task, err := p.coord.Submit(ctx, workerID, frame, path)
	if err != nil && !errors.Is(err, scheduler.ErrNoWorkAvailable) {
		return task, err
	}
	log.Info("frame submitted", "duration_ms", time.Since(start).Milliseconds())
	return task, err
}

// keepAlive heartbeats until done is closed. Losing the lease cancels the
// task; other heartbeat failures are retried on the next tick.
func (p *Processor) keepAlive(ctx context.Context, workerID scheduler.WorkerID, done <-chan struct{}) error {
	log := p.log.FromContext(ctx)
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := p.coord.Heartbeat(ctx, workerID)
		switch {
		case err == nil:
			log.Debug("heartbeat sent")
		case errors.Is(err, scheduler.ErrUnknownWorker):
			return err
		case ctx.Err() != nil:
			return nil
		default:
			log.WithError(err).Warn("heartbeat failed")
		}
	}
}
