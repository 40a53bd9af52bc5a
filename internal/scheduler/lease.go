package scheduler

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type (
	FrameID  = uint64
	WorkerID = string
)

// Task is a copy of one worker's lease as handed to callers.
type Task struct {
	WorkerID    WorkerID
	Frames      []FrameID
	LeaseExpiry time.Time
}

type taskJSON struct {
	WorkerID  WorkerID  `json:"worker_id"`
	LeaseTime int64     `json:"lease_time"`
	Frames    []FrameID `json:"frames"`
}

// MarshalJSON renders the wire shape {worker_id, lease_time, frames} with
// lease_time in epoch seconds.
func (t Task) MarshalJSON() ([]byte, error) {
	frames := t.Frames
	if frames == nil {
		frames = []FrameID{}
	}
	return json.Marshal(taskJSON{
		WorkerID:  t.WorkerID,
		LeaseTime: t.LeaseExpiry.Unix(),
		Frames:    frames,
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.WorkerID = raw.WorkerID
	t.LeaseExpiry = time.Unix(raw.LeaseTime, 0).UTC()
	t.Frames = raw.Frames
	return nil
}

type frameSet map[FrameID]struct{}

func (s frameSet) sorted() []FrameID {
	out := make([]FrameID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// lease is the lease table's record for one worker.
//
// frames are outstanding; uploading were claimed by a submission whose bytes
// are being persisted; dropped failed persistence and stay out of circulation
// until the whole lease expires.
type lease struct {
	workerID  WorkerID
	frames    frameSet
	uploading frameSet
	dropped   frameSet
	expiry    time.Time
}

func newLease(workerID WorkerID, frames []FrameID, expiry time.Time) *lease {
	l := &lease{
		workerID:  workerID,
		frames:    make(frameSet, len(frames)),
		uploading: make(frameSet),
		dropped:   make(frameSet),
		expiry:    expiry,
	}
	l.merge(frames)
	return l
}

// merge grants more frames. A frame the lease already holds means the pool
// handed it out twice.
func (l *lease) merge(frames []FrameID) {
	for _, id := range frames {
		if l.holds(id) {
			panic(fmt.Sprintf("lease %s: frame %d granted twice", l.workerID, id))
		}
		l.frames[id] = struct{}{}
	}
}

func (l *lease) holds(id FrameID) bool {
	_, outstanding := l.frames[id]
	_, uploading := l.uploading[id]
	_, dropped := l.dropped[id]
	return outstanding || uploading || dropped
}

// held lists every frame the lease keeps out of the pool.
func (l *lease) held() []FrameID {
	out := make([]FrameID, 0, len(l.frames)+len(l.uploading)+len(l.dropped))
	for _, set := range []frameSet{l.frames, l.uploading, l.dropped} {
		for id := range set {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (l *lease) settled() bool {
	return len(l.frames) == 0 && len(l.uploading) == 0 && len(l.dropped) == 0
}

func (l *lease) task() Task {
	return Task{
		WorkerID:    l.workerID,
		Frames:      l.frames.sorted(),
		LeaseExpiry: l.expiry,
	}
}

// LeaseTable maps worker identities to their lease.
type LeaseTable struct {
	leases map[WorkerID]*lease
}

func NewLeaseTable() *LeaseTable {
	return &LeaseTable{leases: make(map[WorkerID]*lease)}
}

func (t *LeaseTable) get(workerID WorkerID) (*lease, bool) {
	l, ok := t.leases[workerID]
	return l, ok
}

func (t *LeaseTable) insert(l *lease) {
	if _, exists := t.leases[l.workerID]; exists {
		panic(fmt.Sprintf("lease table: worker %s already holds a lease", l.workerID))
	}
	t.leases[l.workerID] = l
}

// removeExpired deletes and returns every lease whose expiry has passed.
func (t *LeaseTable) removeExpired(clock LeaseClock) []*lease {
	var expired []*lease
	for id, l := range t.leases {
		if clock.Expired(l.expiry) {
			expired = append(expired, l)
			delete(t.leases, id)
		}
	}
	slices.SortFunc(expired, func(a, b *lease) int {
		return a.expiry.Compare(b.expiry)
	})
	return expired
}

func (t *LeaseTable) reset() {
	clear(t.leases)
}

func (t *LeaseTable) Len() int {
	return len(t.leases)
}

// heldCount is the number of frames kept out of the pool by all leases.
func (t *LeaseTable) heldCount() int {
	n := 0
	for _, l := range t.leases {
		n += len(l.frames) + len(l.uploading) + len(l.dropped)
	}
	return n
}

func (t *LeaseTable) allSettled() bool {
	for _, l := range t.leases {
		if !l.settled() {
			return false
		}
	}
	return true
}

func (t *LeaseTable) nextExpiry() (time.Time, bool) {
	var next time.Time
	found := false
	for _, l := range t.leases {
		if !found || l.expiry.Before(next) {
			next = l.expiry
			found = true
		}
	}
	return next, found
}
