// Package led drives PWM outputs: the backlight and the RGB status LED.
// Fades run on the transition scheduler so they keep their duration even
// when the bus is slow.
package led

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

// Output is a PWM channel. Duty is in [0,1].
type Output interface {
	SetDuty(duty float64) error
}

// OutputFunc adapts a function to Output.
type OutputFunc func(duty float64) error

func (f OutputFunc) SetDuty(duty float64) error { return f(duty) }

// PWM is a single dimmable output such as a backlight. It remembers the
// last value so it can be switched off and back on.
type PWM struct {
	mu      sync.Mutex
	out     Output
	value   float64
	enabled bool
	opts    []transition.Option
}

// NewPWM wraps out. The initial value is 0 and the output is enabled.
func NewPWM(out Output, opts ...transition.Option) *PWM {
	return &PWM{out: out, enabled: true, opts: opts}
}

// Value returns the last value set, even while disabled.
func (p *PWM) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set changes the output level and returns the previous one.
func (p *PWM) Set(v float64) (float64, error) {
	if v < 0 || v > 1 {
		return 0, hal.InvalidInput("pwm value", fmt.Sprintf("%v is outside 0..1", v))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.value
	if p.enabled {
		if err := p.out.SetDuty(v); err != nil {
			return prev, err
		}
	}
	p.value = v
	return prev, nil
}

// Disable turns the output off while keeping the value.
func (p *PWM) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return nil
	}
	if err := p.out.SetDuty(0); err != nil {
		return err
	}
	p.enabled = false
	return nil
}

// Enable restores the value kept by Disable.
func (p *PWM) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return nil
	}
	if err := p.out.SetDuty(p.value); err != nil {
		return err
	}
	p.enabled = true
	return nil
}

func (p *PWM) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// TransitionTo fades linearly to v over d in steps steps. The final step
// sets v exactly.
func (p *PWM) TransitionTo(ctx context.Context, v float64, steps int, d time.Duration) error {
	if v < 0 || v > 1 {
		return hal.InvalidInput("pwm value", fmt.Sprintf("%v is outside 0..1", v))
	}
	from := p.Value()
	fade, err := transition.NewFunc(func(step, steps int) error {
		_, err := p.Set(lerp(from, v, float64(step+1)/float64(steps)))
		return err
	}, steps, d, p.opts...)
	if err != nil {
		return err
	}
	return fade.Run(ctx)
}

// Toggle fades the output off, or back on to the value it had, over d in
// steps steps. With d <= 0 it switches at once.
func (p *PWM) Toggle(ctx context.Context, steps int, d time.Duration) error {
	v := p.Value()
	if d <= 0 || steps < 1 {
		if p.Enabled() {
			return p.Disable()
		}
		return p.Enable()
	}

	if p.Enabled() {
		fadeErr := p.TransitionTo(ctx, 0, steps, d)
		if err := p.Disable(); err != nil {
			return err
		}
		if _, err := p.Set(v); err != nil {
			return err
		}
		return fadeErr
	}

	if _, err := p.Set(0); err != nil {
		return err
	}
	if err := p.Enable(); err != nil {
		return err
	}
	if err := p.TransitionTo(ctx, v, steps, d); err != nil {
		p.Set(v)
		return err
	}
	return nil
}

func lerp(a, b, t float64) float64 {
	if t >= 1 {
		return b
	}
	return a + (b-a)*t
}
