// Package clock abstracts wall-clock time so animation timing can be driven
// by a fake clock in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time and a cancellable wait.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done, whichever comes
	// first. It returns ctx.Err() when woken by the context.
	SleepUntil(ctx context.Context, t time.Time) error
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake is a manually driven clock. SleepUntil returns immediately and moves
// the fake time forward to the requested instant, so code under test runs
// without real delays. Tests inject lag with Advance and jumps with Set.
type Fake struct {
	mu     sync.RWMutex
	now    time.Time
	sleeps []time.Time
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) SleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, t)
	if t.After(f.now) {
		f.now = t
	}
	return nil
}

// Sleeps returns every instant passed to SleepUntil, in call order.
func (f *Fake) Sleeps() []time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]time.Time, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
