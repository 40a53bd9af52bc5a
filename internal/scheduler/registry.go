package scheduler

import "strconv"

// WorkerRegistry mints worker identities from a counter that starts at 1
// and only grows. Identities are never reused.
type WorkerRegistry struct {
	next uint64
}

func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{next: 1}
}

// NextID returns the current counter as decimal text, then increments it.
func (r *WorkerRegistry) NextID() WorkerID {
	id := strconv.FormatUint(r.next, 10)
	r.next++
	return id
}
