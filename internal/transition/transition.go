// Package transition drives time-based animations onto a surface. A
// Transition splits a duration into a fixed number of steps and asks a
// generator for one frame per step. When rendering falls behind, steps are
// dropped so the animation still ends on time, and the final step is always
// drawn.
package transition

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
)

// State is the lifecycle stage of a Transition.
type State int32

const (
	NotStarted State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StepFunc performs the side effect for one step. It is how non-image
// animations, such as LED fades, reuse the scheduler.
type StepFunc func(step, steps int) error

// Stats summarises a transition for diagnostics.
type Stats struct {
	Steps    int
	Rendered int
	Skipped  int
	Elapsed  time.Duration
}

// Transition is a single-use animation. Advance and Run must be called from
// one goroutine; State, Step and Stats may be read from any goroutine.
type Transition struct {
	tl     *Timeline
	steps  int
	render StepFunc
	log    log.FieldLogger

	rendered int // last drawn step, -1 before the first frame

	state    atomic.Int32
	step     atomic.Int64
	skipped  atomic.Int64
	frames   atomic.Int64
	finished atomic.Int64 // elapsed nanoseconds, set once finished
}

// Option configures a Transition.
type Option func(*options)

type options struct {
	clock clock.Clock
	log   log.FieldLogger
}

// WithClock sets the time source. The default is the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used for frame-skip and summary messages.
func WithLogger(l log.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// New creates a transition that draws from one image to another onto target
// in steps frames spread evenly over total.
func New(target hal.Surface, from, to image.Image, d Drawer, steps int, total time.Duration, opts ...Option) (*Transition, error) {
	if target == nil {
		return nil, hal.InvalidInput("target", "surface is nil")
	}
	if from == nil || to == nil {
		return nil, hal.InvalidInput("image", "source and destination must be set")
	}
	if d == nil {
		return nil, hal.InvalidInput("generator", "is nil")
	}
	size := target.Bounds().Size()
	fn := func(step, steps int) error {
		return d.DrawFrame(target, from, to, Frame{Step: step, Steps: steps, Width: size.X, Height: size.Y})
	}
	return NewFunc(fn, steps, total, opts...)
}

// NewSelf is New for effects that reveal a single image over whatever is
// already on the surface.
func NewSelf(target hal.Surface, img image.Image, d Drawer, steps int, total time.Duration, opts ...Option) (*Transition, error) {
	return New(target, img, img, d, steps, total, opts...)
}

// NewFunc schedules fn over steps slots of total.
func NewFunc(fn StepFunc, steps int, total time.Duration, opts ...Option) (*Transition, error) {
	if fn == nil {
		return nil, hal.InvalidInput("generator", "is nil")
	}
	o := options{clock: clock.System{}, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	tl, err := NewTimeline(o.clock, steps, total)
	if err != nil {
		return nil, err
	}
	return &Transition{
		tl:       tl,
		steps:    steps,
		render:   fn,
		log:      o.log,
		rendered: -1,
	}, nil
}

func (t *Transition) State() State { return State(t.state.Load()) }

// Step returns how many steps have been put on screen so far, counting
// skipped ones. It reaches Steps once the final frame is drawn.
func (t *Transition) Step() int { return int(t.step.Load()) }

// Steps returns the total number of steps.
func (t *Transition) Steps() int { return t.steps }

// Skipped returns how many steps were dropped because rendering lagged.
func (t *Transition) Skipped() int { return int(t.skipped.Load()) }

// Timeline exposes the timing of the transition.
func (t *Transition) Timeline() *Timeline { return t.tl }

func (t *Transition) Stats() Stats {
	s := Stats{
		Steps:    t.steps,
		Rendered: int(t.frames.Load()),
		Skipped:  t.Skipped(),
	}
	if t.State() == Finished {
		s.Elapsed = time.Duration(t.finished.Load())
	} else if t.State() == Running {
		s.Elapsed = t.tl.Elapsed()
	}
	return s
}

// Advance performs one scheduling iteration: it draws the step the clock
// currently points at, then waits until the next step is due. It reports
// true once the transition has finished.
//
// A cancelled ctx stops the transition before the next frame is drawn and
// yields an error matching hal.ErrCancelled.
func (t *Transition) Advance(ctx context.Context) (bool, error) {
	if t.State() == Finished {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, hal.Cancelled(err)
	}
	if t.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		t.tl.Start()
	}

	last := t.steps - 1
	frame := min(t.tl.Current(), last)

	if frame <= t.rendered {
		if t.rendered == last {
			t.finish()
			return true, nil
		}
		return false, t.sleep(ctx, t.rendered+1)
	}

	if err := t.render(frame, t.steps); err != nil {
		return false, fmt.Errorf("transition step %d/%d: %w", frame, t.steps, err)
	}
	t.frames.Add(1)

	if skipped := frame - t.rendered - 1; skipped > 0 {
		t.skipped.Add(int64(skipped))
		t.log.WithFields(log.Fields{
			"step":    frame,
			"skipped": skipped,
		}).Debug("frame overtime, skipping steps")
	}
	t.rendered = frame
	t.step.Store(int64(frame + 1))

	return false, t.sleep(ctx, frame+1)
}

// Run advances the transition until it finishes, fails or ctx is cancelled.
func (t *Transition) Run(ctx context.Context) error {
	for {
		done, err := t.Advance(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (t *Transition) sleep(ctx context.Context, step int) error {
	if err := t.tl.clock.SleepUntil(ctx, t.tl.Deadline(step)); err != nil {
		return hal.Cancelled(err)
	}
	return nil
}

func (t *Transition) finish() {
	elapsed := t.tl.Elapsed()
	t.finished.Store(int64(elapsed))
	t.state.Store(int32(Finished))
	t.log.WithFields(log.Fields{
		"steps":    t.steps,
		"rendered": t.frames.Load(),
		"skipped":  t.skipped.Load(),
		"elapsed":  elapsed.Round(time.Millisecond),
	}).Debug("transition finished")
}
