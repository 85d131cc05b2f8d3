package led

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

type channel struct {
	duties []float64
	err    error
}

func (c *channel) SetDuty(d float64) error {
	if c.err != nil {
		return c.err
	}
	c.duties = append(c.duties, d)
	return nil
}

func (c *channel) last() float64 { return c.duties[len(c.duties)-1] }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPWMSet(t *testing.T) {
	ch := &channel{}
	p := NewPWM(ch)

	prev, err := p.Set(0.4)
	if err != nil || prev != 0 {
		t.Fatalf("Set = %v, %v", prev, err)
	}
	if prev, _ = p.Set(0.7); prev != 0.4 {
		t.Errorf("previous value = %v", prev)
	}

	for _, v := range []float64{-0.1, 1.01} {
		if _, err := p.Set(v); !errors.Is(err, hal.ErrInvalidInput) {
			t.Errorf("Set(%v) err = %v", v, err)
		}
	}
	if p.Value() != 0.7 || ch.last() != 0.7 {
		t.Errorf("rejected value changed the output")
	}
}

func TestPWMDisableKeepsValue(t *testing.T) {
	ch := &channel{}
	p := NewPWM(ch)
	p.Set(0.6)

	if err := p.Disable(); err != nil {
		t.Fatal(err)
	}
	if ch.last() != 0 || p.Value() != 0.6 || p.Enabled() {
		t.Errorf("disabled: duty %v value %v", ch.last(), p.Value())
	}

	// Changes while disabled are remembered but not written.
	writes := len(ch.duties)
	p.Set(0.3)
	if len(ch.duties) != writes {
		t.Errorf("disabled output was written")
	}

	if err := p.Enable(); err != nil {
		t.Fatal(err)
	}
	if ch.last() != 0.3 {
		t.Errorf("enable restored %v", ch.last())
	}
}

func TestPWMTransition(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	ch := &channel{}
	p := NewPWM(ch, transition.WithClock(fake))

	if err := p.TransitionTo(context.Background(), 1, 4, 400*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.25, 0.5, 0.75, 1}
	if len(ch.duties) != len(want) {
		t.Fatalf("duties = %v", ch.duties)
	}
	for i := range want {
		if !near(ch.duties[i], want[i]) {
			t.Errorf("duty[%d] = %v, want %v", i, ch.duties[i], want[i])
		}
	}

	if err := p.TransitionTo(context.Background(), 2, 4, time.Second); !errors.Is(err, hal.ErrInvalidInput) {
		t.Errorf("out of range target: %v", err)
	}
	if err := p.TransitionTo(context.Background(), 0.5, 0, time.Second); !errors.Is(err, hal.ErrInvalidInput) {
		t.Errorf("zero steps: %v", err)
	}
}

func TestPWMToggleFades(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	ch := &channel{}
	p := NewPWM(ch, transition.WithClock(fake))
	p.Set(0.8)
	ch.duties = nil

	if err := p.Toggle(context.Background(), 4, 400*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if p.Enabled() || p.Value() != 0.8 {
		t.Errorf("after fade out: enabled %v value %v", p.Enabled(), p.Value())
	}
	for i, want := range []float64{0.6, 0.4, 0.2, 0} {
		if !near(ch.duties[i], want) {
			t.Errorf("fade out duty[%d] = %v, want %v", i, ch.duties[i], want)
		}
	}
	if ch.last() != 0 {
		t.Errorf("output left at %v", ch.last())
	}

	ch.duties = nil
	if err := p.Toggle(context.Background(), 4, 400*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0.2, 0.4, 0.6, 0.8}
	if len(ch.duties) != len(want) {
		t.Fatalf("fade in duties = %v", ch.duties)
	}
	for i := range want {
		if !near(ch.duties[i], want[i]) {
			t.Errorf("fade in duty[%d] = %v, want %v", i, ch.duties[i], want[i])
		}
	}
	if !p.Enabled() || p.Value() != 0.8 {
		t.Errorf("after fade in: enabled %v value %v", p.Enabled(), p.Value())
	}
	if got := fake.Now().Sub(time.Unix(0, 0)); got != 800*time.Millisecond {
		t.Errorf("fades took %v", got)
	}

	// No duration switches at once.
	if err := p.Toggle(context.Background(), 4, 0); err != nil || p.Enabled() {
		t.Errorf("instant toggle: %v, enabled %v", err, p.Enabled())
	}
}

func TestRGBActiveLow(t *testing.T) {
	r, g, b := &channel{}, &channel{}, &channel{}
	l := NewRGB(r, g, b, true)

	if _, err := l.SetHex("#ff8000"); err != nil {
		t.Fatal(err)
	}
	if !near(r.last(), 0) || !near(b.last(), 1) {
		t.Errorf("duties = %v %v %v", r.last(), g.last(), b.last())
	}
	if !near(g.last(), 1-128.0/255.0) {
		t.Errorf("green duty = %v", g.last())
	}

	if err := l.Disable(); err != nil {
		t.Fatal(err)
	}
	if r.last() != 1 || g.last() != 1 || b.last() != 1 {
		t.Errorf("disabled active-low LED not driven high")
	}
	if err := l.Enable(); err != nil {
		t.Fatal(err)
	}
	if !near(r.last(), 0) {
		t.Errorf("colour not restored")
	}

	if _, err := l.SetHex("orange"); err == nil {
		t.Errorf("bad hex accepted")
	}
}

func TestRGBTransition(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	r, g, b := &channel{}, &channel{}, &channel{}
	l := NewRGB(r, g, b, false, transition.WithClock(fake))
	l.Set(colorful.Color{R: 1})

	target := colorful.Color{B: 1}
	if err := l.TransitionTo(context.Background(), target, 5, 500*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := l.Color(); got != target {
		t.Errorf("final colour = %v", got)
	}
	// 1 initial write + 5 fade steps
	if len(b.duties) != 6 {
		t.Errorf("blue writes = %v", b.duties)
	}
	for i := 2; i < len(b.duties); i++ {
		if b.duties[i] < b.duties[i-1] {
			t.Errorf("blue channel not rising: %v", b.duties)
		}
	}
}

func TestRGBWriteError(t *testing.T) {
	busErr := errors.New("pwm: write failed")
	l := NewRGB(&channel{}, &channel{err: busErr}, &channel{}, false)
	if _, err := l.Set(colorful.Color{G: 1}); !errors.Is(err, busErr) {
		t.Errorf("err = %v", err)
	}
	if l.Color() != (colorful.Color{}) {
		t.Errorf("failed write changed the remembered colour")
	}
}
