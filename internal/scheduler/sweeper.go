package scheduler

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"renderfarm/internal/pkg/logger"
)

// CompletionPolicy selects what a sweep does besides reclaiming leases.
type CompletionPolicy int

const (
	// ReclaimOnly sweeps forever and never declares the job finished.
	ReclaimOnly CompletionPolicy = iota
	// DetectCompletion fires the completion trigger once every frame has
	// been stored, then stops sweeping.
	DetectCompletion
)

func (p CompletionPolicy) String() string {
	switch p {
	case DetectCompletion:
		return "detect-completion"
	default:
		return "reclaim-only"
	}
}

// Completion is handed to the trigger when the job finishes.
type Completion struct {
	FrameCount  uint64
	CompletedAt time.Time
}

// CompletionTrigger starts whatever follows a finished job.
type CompletionTrigger interface {
	Fire(ctx context.Context, c Completion) error
}

// TriggerFunc adapts a function to CompletionTrigger.
type TriggerFunc func(ctx context.Context, c Completion) error

func (f TriggerFunc) Fire(ctx context.Context, c Completion) error {
	return f(ctx, c)
}

type SweeperConfig struct {
	// Interval defaults to DefaultSweepInterval.
	Interval time.Duration
	Policy   CompletionPolicy
	// Trigger may be nil.
	Trigger CompletionTrigger
	// Clock defaults to the real clock.
	Clock clock.WithTicker
	Log   *logger.Logger
}

// Sweeper periodically reclaims expired leases on a Scheduler.
type Sweeper struct {
	sched    *Scheduler
	interval time.Duration
	policy   CompletionPolicy
	trigger  CompletionTrigger
	clock    clock.WithTicker
	log      *logger.Logger

	fired sync.Once
	done  chan struct{}
}

func NewSweeper(s *Scheduler, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Sweeper{
		sched:    s,
		interval: cfg.Interval,
		policy:   cfg.Policy,
		trigger:  cfg.Trigger,
		clock:    cfg.Clock,
		log:      log.WithComponent("sweeper"),
		done:     make(chan struct{}),
	}
}

// Run sweeps every interval until ctx is cancelled or the job completes.
// It returns nil on completion and ctx.Err() on cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("sweeper started",
		"interval", w.interval,
		"policy", w.policy.String(),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C():
			if w.Tick(ctx) {
				return nil
			}
		}
	}
}

// Tick runs one sweep and reports whether the job is complete. The trigger
// fires on the first tick that sees completion and never again.
func (w *Sweeper) Tick(ctx context.Context) bool {
	res := w.sched.Sweep(w.policy)
	if res.ReclaimedFrames > 0 {
		w.log.Debug("sweep reclaimed frames",
			"leases", len(res.Reclaimed),
			"frames", res.ReclaimedFrames,
		)
	}
	if !res.Complete {
		return false
	}

	w.fired.Do(func() {
		defer close(w.done)
		if w.trigger == nil {
			return
		}
		c := Completion{
			FrameCount:  w.sched.FrameCount(),
			CompletedAt: w.clock.Now(),
		}
		if err := w.trigger.Fire(ctx, c); err != nil {
			w.log.LogError(ctx, "completion trigger failed", err)
			return
		}
		w.log.Info("completion trigger fired", "frames", c.FrameCount)
	})
	return true
}

// Done is closed once completion has been handled.
func (w *Sweeper) Done() <-chan struct{} {
	return w.done
}
