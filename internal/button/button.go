// Package button reads push buttons and waits for presses with timeouts
// and cancellation.
package button

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
)

// Pin is a digital input. Read reports the electrical level, true for high.
type Pin interface {
	Read() (bool, error)
}

// PinFunc adapts a function to Pin.
type PinFunc func() (bool, error)

func (f PinFunc) Read() (bool, error) { return f() }

// Button is a push button on a Pin.
type Button struct {
	name      string
	pin       Pin
	activeLow bool
	poll      time.Duration
	clock     clock.Clock
	log       log.FieldLogger
}

type Option func(*Button)

// ActiveLow marks buttons that pull the line low when pressed, as on the
// Display HAT Mini.
func ActiveLow() Option { return func(b *Button) { b.activeLow = true } }

// WithPoll sets how often the pin is sampled while waiting.
func WithPoll(d time.Duration) Option { return func(b *Button) { b.poll = d } }

func WithClock(c clock.Clock) Option { return func(b *Button) { b.clock = c } }

func WithLogger(l log.FieldLogger) Option { return func(b *Button) { b.log = l } }

func New(name string, pin Pin, opts ...Option) *Button {
	b := &Button{
		name:  name,
		pin:   pin,
		poll:  10 * time.Millisecond,
		clock: clock.System{},
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.poll <= 0 {
		b.poll = time.Millisecond
	}
	return b
}

func (b *Button) Name() string { return b.name }

// IsPressed samples the button once.
func (b *Button) IsPressed() (bool, error) {
	level, err := b.pin.Read()
	if err != nil {
		return false, fmt.Errorf("button %s: %w", b.name, err)
	}
	return level != b.activeLow, nil
}

// WaitFor blocks until the button reaches the wanted state. A timeout of
// zero waits forever. It fails with a *hal.TimeoutError when the timeout
// expires and with hal.ErrCancelled when ctx is done.
func (b *Button) WaitFor(ctx context.Context, pressed bool, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = b.clock.Now().Add(timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return hal.Cancelled(err)
		}
		state, err := b.IsPressed()
		if err != nil {
			return err
		}
		if state == pressed {
			return nil
		}

		now := b.clock.Now()
		if timeout > 0 && !now.Before(deadline) {
			return &hal.TimeoutError{Op: fmt.Sprintf("button %s: wait for %s", b.name, stateName(pressed)), After: timeout}
		}
		next := now.Add(b.poll)
		if timeout > 0 && next.After(deadline) {
			next = deadline
		}
		if err := b.clock.SleepUntil(ctx, next); err != nil {
			return hal.Cancelled(err)
		}
	}
}

func (b *Button) Pressed(ctx context.Context, timeout time.Duration) error {
	return b.WaitFor(ctx, true, timeout)
}

func (b *Button) Released(ctx context.Context, timeout time.Duration) error {
	return b.WaitFor(ctx, false, timeout)
}

// PressedAndReleased waits for a full click. The timeout covers both
// halves together.
func (b *Button) PressedAndReleased(ctx context.Context, timeout time.Duration) error {
	start := b.clock.Now()
	if err := b.Pressed(ctx, timeout); err != nil {
		return err
	}
	remaining := time.Duration(0)
	if timeout > 0 {
		remaining = timeout - b.clock.Now().Sub(start)
		if remaining <= 0 {
			return &hal.TimeoutError{Op: fmt.Sprintf("button %s: wait for release", b.name), After: timeout}
		}
	}
	return b.Released(ctx, remaining)
}

// Event is a completed click.
type Event struct {
	Button string
	At     time.Time
}

// Clicks reports every click until ctx is done or the pin fails. The
// channel is closed on exit.
func (b *Button) Clicks(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			if err := b.PressedAndReleased(ctx, 0); err != nil {
				if ctx.Err() == nil {
					b.log.WithError(err).WithField("button", b.name).Warn("button watcher stopped")
				}
				return
			}
			select {
			case out <- Event{Button: b.name, At: b.clock.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func stateName(pressed bool) string {
	if pressed {
		return "press"
	}
	return "release"
}
