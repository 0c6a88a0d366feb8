package scheduler

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts the time source the run loop dispatches against. A rig
// runs on RealClock; tests and course simulations run on VirtualClock so a
// full mission executes deterministically in microseconds of wall time.
type Clock interface {
	Now() time.Time
	// Sleep blocks until d has elapsed or ctx is cancelled, returning
	// ctx.Err() in the cancelled case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall-clock implementation of Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// VirtualClock is a manually advanced Clock. Sleep advances the clock
// instead of blocking, so a scheduler run loop driven by it replays an
// entire mission as fast as the CPU allows while preserving tick timing
// exactly.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualClock returns a VirtualClock starting at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d without sleeping.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.Advance(d)
	}
	return nil
}
