package button

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
)

var epoch = time.Unix(0, 0)

// scripted returns an active-low pin held down between down and up,
// measured on the fake clock.
func scripted(fake *clock.Fake, down, up time.Duration) Pin {
	return PinFunc(func() (bool, error) {
		el := fake.Now().Sub(epoch)
		pressed := el >= down && el < up
		return !pressed, nil
	})
}

func TestIsPressedPolarity(t *testing.T) {
	high := PinFunc(func() (bool, error) { return true, nil })
	if p, _ := New("a", high).IsPressed(); !p {
		t.Errorf("active-high button reading high should be pressed")
	}
	if p, _ := New("a", high, ActiveLow()).IsPressed(); p {
		t.Errorf("active-low button reading high should be released")
	}
}

func TestPressedAndReleased(t *testing.T) {
	fake := clock.NewFake(epoch)
	b := New("x", scripted(fake, 30*time.Millisecond, 80*time.Millisecond), ActiveLow(), WithClock(fake), WithPoll(5*time.Millisecond))

	if err := b.PressedAndReleased(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	if el := fake.Now().Sub(epoch); el < 80*time.Millisecond || el > 90*time.Millisecond {
		t.Errorf("click completed at %v", el)
	}
}

func TestWaitTimeout(t *testing.T) {
	fake := clock.NewFake(epoch)
	b := New("y", scripted(fake, time.Hour, 2*time.Hour), ActiveLow(), WithClock(fake))

	err := b.Pressed(context.Background(), 100*time.Millisecond)
	var te *hal.TimeoutError
	if !errors.As(err, &te) || !errors.Is(err, hal.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if te.After != 100*time.Millisecond {
		t.Errorf("After = %v", te.After)
	}
	if el := fake.Now().Sub(epoch); el != 100*time.Millisecond {
		t.Errorf("gave up at %v, want exactly 100ms", el)
	}
}

func TestClickTimeoutSharedByBothHalves(t *testing.T) {
	fake := clock.NewFake(epoch)
	b := New("b", scripted(fake, 40*time.Millisecond, time.Hour), ActiveLow(), WithClock(fake))

	err := b.PressedAndReleased(context.Background(), 100*time.Millisecond)
	if !errors.Is(err, hal.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if el := fake.Now().Sub(epoch); el != 100*time.Millisecond {
		t.Errorf("gave up at %v", el)
	}
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New("a", PinFunc(func() (bool, error) { return true, nil }), ActiveLow())
	if err := b.Pressed(ctx, 0); !errors.Is(err, hal.ErrCancelled) {
		t.Errorf("err = %v", err)
	}
}

func TestReadErrorPropagates(t *testing.T) {
	busErr := errors.New("gpio: read failed")
	b := New("a", PinFunc(func() (bool, error) { return false, busErr }))
	if err := b.Pressed(context.Background(), time.Second); !errors.Is(err, busErr) {
		t.Errorf("err = %v", err)
	}
}

func TestClicks(t *testing.T) {
	fake := clock.NewFake(epoch)
	pin := PinFunc(func() (bool, error) {
		// Pressed for 20ms out of every 50ms.
		el := fake.Now().Sub(epoch) % (50 * time.Millisecond)
		return !(el >= 10*time.Millisecond && el < 30*time.Millisecond), nil
	})
	b := New("a", pin, ActiveLow(), WithClock(fake), WithPoll(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	events := b.Clicks(ctx)
	for i := 0; i < 3; i++ {
		ev, ok := <-events
		if !ok {
			t.Fatal("channel closed early")
		}
		if ev.Button != "a" {
			t.Errorf("event = %+v", ev)
		}
	}
	cancel()
	for range events {
	}
}
