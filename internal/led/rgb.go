package led

import (
	"context"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/pihat/internal/transition"
)

// RGB is a three-channel LED.
type RGB struct {
	mu        sync.Mutex
	r, g, b   Output
	activeLow bool
	color     colorful.Color
	enabled   bool
	opts      []transition.Option
}

// NewRGB starts dark and enabled. Active-low LEDs, like the one on the
// Display HAT Mini, light up when their pin is driven low.
func NewRGB(r, g, b Output, activeLow bool, opts ...transition.Option) *RGB {
	return &RGB{r: r, g: g, b: b, activeLow: activeLow, enabled: true, opts: opts}
}

// Color returns the last colour set, even while disabled.
func (l *RGB) Color() colorful.Color {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

// Set shows c and returns the previous colour.
func (l *RGB) Set(c colorful.Color) (colorful.Color, error) {
	c = c.Clamped()
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.color
	if l.enabled {
		if err := l.write(c); err != nil {
			return prev, err
		}
	}
	l.color = c
	return prev, nil
}

// SetHex is Set for "#rrggbb" strings.
func (l *RGB) SetHex(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return l.Color(), err
	}
	return l.Set(c)
}

func (l *RGB) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return nil
	}
	if err := l.write(colorful.Color{}); err != nil {
		return err
	}
	l.enabled = false
	return nil
}

func (l *RGB) Enable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enabled {
		return nil
	}
	if err := l.write(l.color); err != nil {
		return err
	}
	l.enabled = true
	return nil
}

// TransitionTo fades to c over d. Intermediate colours are blended in
// linear RGB so the brightness does not dip halfway.
func (l *RGB) TransitionTo(ctx context.Context, c colorful.Color, steps int, d time.Duration) error {
	from := l.Color()
	to := c.Clamped()
	fade, err := transition.NewFunc(func(step, steps int) error {
		t := float64(step+1) / float64(steps)
		next := to
		if t < 1 {
			next = from.BlendLinearRgb(to, t)
		}
		_, err := l.Set(next)
		return err
	}, steps, d, l.opts...)
	if err != nil {
		return err
	}
	return fade.Run(ctx)
}

func (l *RGB) write(c colorful.Color) error {
	for _, ch := range []struct {
		out Output
		v   float64
	}{{l.r, c.R}, {l.g, c.G}, {l.b, c.B}} {
		duty := ch.v
		if l.activeLow {
			duty = 1 - duty
		}
		if err := ch.out.SetDuty(duty); err != nil {
			return err
		}
	}
	return nil
}
