package transition

import (
	"sync"
	"time"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
)

// Timeline maps wall-clock time onto the steps of a transition. The start
// instant is captured on first use and never changes afterwards.
//
// Current is not safe for concurrent use; Start and Deadline are.
type Timeline struct {
	clock        clock.Clock
	steps        int
	stepDuration time.Duration

	once  sync.Once
	start time.Time
	last  int
}

// NewTimeline splits total into steps equal slots.
func NewTimeline(c clock.Clock, steps int, total time.Duration) (*Timeline, error) {
	if steps < 1 {
		return nil, hal.InvalidInput("steps", "must be greater than 0")
	}
	if total <= 0 {
		return nil, hal.InvalidInput("duration", "must be positive")
	}
	stepDuration := total / time.Duration(steps)
	if stepDuration <= 0 {
		return nil, hal.InvalidInput("duration", "too short for the number of steps")
	}
	if c == nil {
		c = clock.System{}
	}
	return &Timeline{clock: c, steps: steps, stepDuration: stepDuration}, nil
}

// Start returns the start instant, capturing the current time on the first call.
func (tl *Timeline) Start() time.Time {
	tl.once.Do(func() {
		tl.start = tl.clock.Now()
	})
	return tl.start
}

// Current returns the step the elapsed time falls into. The result never
// decreases, even if the clock is set backwards.
func (tl *Timeline) Current() int {
	elapsed := tl.clock.Now().Sub(tl.Start())
	if elapsed > 0 {
		if step := int(elapsed / tl.stepDuration); step > tl.last {
			tl.last = step
		}
	}
	return tl.last
}

// Deadline returns the instant at which step begins.
func (tl *Timeline) Deadline(step int) time.Time {
	return tl.Start().Add(tl.stepDuration * time.Duration(step))
}

func (tl *Timeline) Steps() int { return tl.steps }

func (tl *Timeline) StepDuration() time.Duration { return tl.stepDuration }

// Elapsed is the time since Start.
func (tl *Timeline) Elapsed() time.Duration {
	return tl.clock.Now().Sub(tl.Start())
}
