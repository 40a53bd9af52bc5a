// Package scheduler hands frames of a render job to workers under
// time-bounded leases and takes them back when workers go quiet.
//
// All state lives behind one reader/writer lock. Every mutating operation
// holds the write lock for its whole critical section and never performs I/O
// while holding it; submissions are split into ClaimFrame and ConfirmFrame (or
// AbandonFrame) so uploaded bytes can be persisted between the two.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"renderfarm/internal/metrics"
	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
)

// Config configures a Scheduler.
type Config struct {
	// FrameCount is the number of frames in the job. Must be > 0.
	FrameCount uint64
	// LeaseDuration defaults to DefaultLeaseDuration.
	LeaseDuration time.Duration
	// Clock defaults to the real clock.
	Clock clock.PassiveClock
	// Source is the job's input asset, served verbatim to workers.
	Source []byte
	Log    *logger.Logger
}

// Scheduler owns the frame pool, the worker registry and the lease table.
type Scheduler struct {
	mu sync.RWMutex

	frameCount uint64
	clock      LeaseClock
	source     []byte
	log        *logger.Logger

	pool      *FramePool
	registry  *WorkerRegistry
	leases    *LeaseTable
	completed frameSet
	finished  bool
}

// New builds a Scheduler whose pool holds every frame of the job.
func New(cfg Config) (*Scheduler, error) {
	if cfg.FrameCount == 0 {
		return nil, errors.ValidationField("frame_count", "frame count must be greater than zero").
			WithOp("scheduler.New")
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}

	s := &Scheduler{
		frameCount: cfg.FrameCount,
		clock:      NewLeaseClock(cfg.Clock, cfg.LeaseDuration),
		source:     cfg.Source,
		log:        log.WithComponent("scheduler"),
		pool:       NewFramePool(cfg.FrameCount),
		registry:   NewWorkerRegistry(),
		leases:     NewLeaseTable(),
		completed:  make(frameSet),
	}
	s.observe()
	return s, nil
}

// Source returns the shared input asset. Callers must not modify it.
func (s *Scheduler) Source() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Scheduler) FrameCount() uint64 {
	return s.frameCount
}

func (s *Scheduler) LeaseDuration() time.Duration {
	return s.clock.Duration()
}

// RequestTask leases up to count frames to a freshly minted worker identity.
func (s *Scheduler) RequestTask(count int) (Task, error) {
	const op = "scheduler.RequestTask"
	if count < 1 {
		return Task{}, errors.ValidationField("count", "count must be at least 1").WithOp(op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.pool.Take(count)
	if len(frames) == 0 {
		metrics.RecordNoWork("request_task")
		return Task{}, errNoWork(op)
	}

	l := newLease(s.registry.NextID(), frames, s.clock.Expiry())
	s.leases.insert(l)

	metrics.RecordTaskAssigned()
	s.observe()
	s.log.WithWorkerID(l.workerID).Debug("task assigned",
		"frames", len(frames),
		"lease_expiry", l.expiry,
	)
	return l.task(), nil
}

// ClaimFrame resolves the frame a worker is submitting and marks it as
// uploading. hint is the frame the caller named, or nil to infer it from a
// task holding exactly one outstanding frame.
//
// The caller persists the result and then reports back with ConfirmFrame or
// AbandonFrame.
func (s *Scheduler) ClaimFrame(workerID WorkerID, hint *FrameID) (FrameID, error) {
	const op = "scheduler.ClaimFrame"
	if workerID == "" {
		return 0, errUnauthenticated(op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases.get(workerID)
	var frame FrameID
	if hint == nil {
		if !ok || len(l.frames) != 1 {
			outstanding := 0
			if ok {
				outstanding = len(l.frames)
			}
			return 0, errAmbiguousFrame(op, workerID, outstanding)
		}
		for id := range l.frames {
			frame = id
		}
	} else {
		if !ok {
			return 0, errUnknownWorker(op, workerID)
		}
		frame = *hint
		if _, owned := l.frames[frame]; !owned {
			return 0, errFrameNotOwned(op, workerID, frame)
		}
	}

	delete(l.frames, frame)
	l.uploading[frame] = struct{}{}
	return frame, nil
}

// ConfirmFrame records a persisted frame, grants the worker one more frame and
// renews its lease. When the pool is empty the updated task is still returned
// together with a NoWorkAvailable error; the submission counts either way.
func (s *Scheduler) ConfirmFrame(workerID WorkerID, frame FrameID) (Task, error) {
	const op = "scheduler.ConfirmFrame"

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases.get(workerID)
	if !ok {
		// The lease expired while the bytes were being written and the frame
		// went back to the pool. Keep the result if nobody else took it yet.
		if s.pool.Remove(frame) {
			s.completed[frame] = struct{}{}
			metrics.RecordFrameSubmitted("persisted")
			s.observe()
		}
		return Task{}, errUnknownWorker(op, workerID)
	}
	if _, uploading := l.uploading[frame]; !uploading {
		panic(fmt.Sprintf("scheduler: worker %s confirmed frame %d it never claimed", workerID, frame))
	}

	delete(l.uploading, frame)
	s.completed[frame] = struct{}{}
	metrics.RecordFrameSubmitted("persisted")

	next := s.pool.Take(1)
	l.merge(next)
	l.expiry = s.clock.Renew(l.expiry)
	s.observe()

	if len(next) == 0 {
		metrics.RecordNoWork("submit_frame")
		return l.task(), errNoWork(op)
	}
	return l.task(), nil
}

// AbandonFrame records that persisting a claimed frame failed. The frame is
// parked on the lease and only returns to the pool when the whole lease
// expires.
func (s *Scheduler) AbandonFrame(workerID WorkerID, frame FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases.get(workerID)
	if !ok {
		return
	}
	if _, uploading := l.uploading[frame]; !uploading {
		return
	}
	metrics.RecordFrameSubmitted("persistence_failed")
	delete(l.uploading, frame)
	l.dropped[frame] = struct{}{}
	s.log.WithWorkerID(workerID).WithFrameID(frame).Warn("frame dropped until lease expiry")
}

// Heartbeat renews a worker's lease.
func (s *Scheduler) Heartbeat(workerID WorkerID) error {
	const op = "scheduler.Heartbeat"
	if workerID == "" {
		return errUnauthenticated(op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases.get(workerID)
	if !ok {
		return errUnknownWorker(op, workerID)
	}
	l.expiry = s.clock.Renew(l.expiry)
	metrics.RecordHeartbeat()
	return nil
}

// SweepResult describes one sweep.
type SweepResult struct {
	// Reclaimed holds the expired tasks, oldest expiry first. Frames lists
	// every frame the task kept out of the pool.
	Reclaimed       []Task
	ReclaimedFrames int
	// Complete is set once the job has been detected as finished.
	Complete bool
}

// Sweep reclaims every expired lease and, under DetectCompletion, checks
// whether the job is done. Once completion is detected all leases are
// dropped and later sweeps do nothing.
func (s *Scheduler) Sweep(policy CompletionPolicy) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return SweepResult{Complete: true}
	}

	var res SweepResult
	for _, l := range s.leases.removeExpired(s.clock) {
		held := l.held()
		s.pool.ReturnMany(held)
		res.Reclaimed = append(res.Reclaimed, Task{
			WorkerID:    l.workerID,
			Frames:      held,
			LeaseExpiry: l.expiry,
		})
		res.ReclaimedFrames += len(held)
		metrics.RecordReclaim(len(held))
		s.log.WithWorkerID(l.workerID).Info("lease expired",
			"frames", len(held),
			"lease_expiry", l.expiry,
		)
	}

	if policy == DetectCompletion && s.jobDone() {
		s.leases.reset()
		s.finished = true
		res.Complete = true
		s.log.Info("job complete", "frames", s.frameCount)
	}
	s.observe()
	return res
}

// Snapshot is a point-in-time view of the scheduling state.
type Snapshot struct {
	FrameCount      uint64     `json:"frame_count"`
	Available       int        `json:"available"`
	Leased          int        `json:"leased"`
	Completed       int        `json:"completed"`
	Workers         int        `json:"workers"`
	Complete        bool       `json:"complete"`
	NextLeaseExpiry *time.Time `json:"next_lease_expiry,omitempty"`
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		FrameCount: s.frameCount,
		Available:  s.pool.Len(),
		Leased:     s.leases.heldCount(),
		Completed:  len(s.completed),
		Workers:    s.leases.Len(),
		Complete:   s.finished || s.jobDone(),
	}
	if next, ok := s.leases.nextExpiry(); ok {
		snap.NextLeaseExpiry = &next
	}
	return snap
}

// Task returns a copy of a worker's current task.
func (s *Scheduler) Task(workerID WorkerID) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leases.get(workerID)
	if !ok {
		return Task{}, false
	}
	return l.task(), true
}

// jobDone must be called with the lock held.
func (s *Scheduler) jobDone() bool {
	return s.pool.IsEmpty() &&
		s.leases.allSettled() &&
		uint64(len(s.completed)) == s.frameCount
}

func (s *Scheduler) observe() {
	metrics.ObserveState(s.pool.Len(), s.leases.heldCount(), len(s.completed), s.leases.Len())
}
