package scheduler

import (
	"time"

	"k8s.io/utils/clock"
)

const (
	DefaultLeaseDuration = 20 * time.Minute
	DefaultSweepInterval = 5 * time.Second
)

// LeaseClock stamps and checks lease expiries against a wall clock.
type LeaseClock struct {
	clock clock.PassiveClock
	lease time.Duration
}

func NewLeaseClock(c clock.PassiveClock, lease time.Duration) LeaseClock {
	if c == nil {
		c = clock.RealClock{}
	}
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	return LeaseClock{clock: c, lease: lease}
}

func (c LeaseClock) Now() time.Time {
	return c.clock.Now()
}

// Expiry is the instant a lease granted or renewed now runs out.
func (c LeaseClock) Expiry() time.Time {
	return c.clock.Now().Add(c.lease)
}

// Renew returns the later of current and a fresh expiry, so renewals never
// shorten a lease.
func (c LeaseClock) Renew(current time.Time) time.Time {
	next := c.Expiry()
	if next.Before(current) {
		return current
	}
	return next
}

// Expired reports whether expiry lies strictly in the past.
func (c LeaseClock) Expired(expiry time.Time) bool {
	return c.clock.Now().After(expiry)
}

func (c LeaseClock) Duration() time.Duration {
	return c.lease
}
