package transition

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/hal"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder is a StepFunc that records the steps it was asked for and can
// simulate a slow renderer by moving the fake clock forward.
type recorder struct {
	clock *clock.Fake
	lag   func(step int) time.Duration
	steps []int
	err   error
}

func (r *recorder) step(step, steps int) error {
	r.steps = append(r.steps, step)
	if r.lag != nil {
		r.clock.Advance(r.lag(step))
	}
	return r.err
}

func newTestTransition(t *testing.T, steps int, total time.Duration, r *recorder) *Transition {
	t.Helper()
	tr, err := NewFunc(r.step, steps, total, WithClock(r.clock))
	if err != nil {
		t.Fatalf("NewFunc: %v", err)
	}
	return tr
}

func assertIncreasing(t *testing.T, steps []int, n int) {
	t.Helper()
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			t.Errorf("steps not strictly increasing: %v", steps)
			return
		}
	}
	for _, s := range steps {
		if s < 0 || s >= n {
			t.Errorf("step %d out of range [0,%d): %v", s, n, steps)
		}
	}
}

func TestRunOnTime(t *testing.T) {
	r := &recorder{clock: clock.NewFake(epoch)}
	tr := newTestTransition(t, 10, time.Second, r)

	if tr.State() != NotStarted {
		t.Errorf("initial state = %v", tr.State())
	}
	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r.steps) != 10 {
		t.Fatalf("rendered %d steps, want 10: %v", len(r.steps), r.steps)
	}
	for i, s := range r.steps {
		if s != i {
			t.Errorf("call %d rendered step %d", i, s)
		}
	}
	if tr.Skipped() != 0 {
		t.Errorf("Skipped = %d, want 0", tr.Skipped())
	}
	if tr.State() != Finished || tr.Step() != 10 {
		t.Errorf("state = %v step = %d, want finished at 10", tr.State(), tr.Step())
	}
	if got := r.clock.Now().Sub(epoch); got != time.Second {
		t.Errorf("finished at %v, want 1s", got)
	}

	st := tr.Stats()
	if st.Rendered != 10 || st.Elapsed != time.Second {
		t.Errorf("Stats = %+v", st)
	}
}

func TestLateFirstPollSkipsSteps(t *testing.T) {
	r := &recorder{clock: clock.NewFake(epoch)}
	tr := newTestTransition(t, 4, 400*time.Millisecond, r)

	tr.Timeline().Start()
	r.clock.Advance(250 * time.Millisecond)

	done, err := tr.Advance(context.Background())
	if err != nil || done {
		t.Fatalf("Advance = %v, %v", done, err)
	}
	if len(r.steps) != 1 || r.steps[0] != 2 {
		t.Fatalf("steps = %v, want [2]", r.steps)
	}
	if tr.Skipped() != 2 {
		t.Errorf("Skipped = %d, want 2", tr.Skipped())
	}

	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 3}; !equal(r.steps, want) {
		t.Errorf("steps = %v, want %v", r.steps, want)
	}
}

func TestSlowRendererSkipsFrames(t *testing.T) {
	tests := []struct {
		name  string
		steps int
		total time.Duration
		lag   func(int) time.Duration
	}{
		{"constant lag", 30, time.Second, func(int) time.Duration { return 95 * time.Millisecond }},
		{"one stall", 20, time.Second, func(s int) time.Duration {
			if s == 3 {
				return 400 * time.Millisecond
			}
			return 0
		}},
		{"jittery", 50, 2 * time.Second, func(s int) time.Duration {
			return time.Duration(s%7) * 17 * time.Millisecond
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{clock: clock.NewFake(epoch), lag: tt.lag}
			tr := newTestTransition(t, tt.steps, tt.total, r)
			if err := tr.Run(context.Background()); err != nil {
				t.Fatal(err)
			}

			assertIncreasing(t, r.steps, tt.steps)
			if last := r.steps[len(r.steps)-1]; last != tt.steps-1 {
				t.Errorf("final step %d, want %d", last, tt.steps-1)
			}
			if got := len(r.steps) + tr.Skipped(); got != tt.steps {
				t.Errorf("rendered %d + skipped %d != %d", len(r.steps), tr.Skipped(), tt.steps)
			}
			if tr.Skipped() == 0 {
				t.Errorf("expected skipped steps with a slow renderer")
			}
		})
	}
}

func TestClockJumpPastEndDrawsFinalStep(t *testing.T) {
	r := &recorder{clock: clock.NewFake(epoch)}
	tr := newTestTransition(t, 8, 800*time.Millisecond, r)

	tr.Timeline().Start()
	r.clock.Advance(time.Minute)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !equal(r.steps, []int{7}) {
		t.Errorf("steps = %v, want [7]", r.steps)
	}
	if tr.Skipped() != 7 {
		t.Errorf("Skipped = %d, want 7", tr.Skipped())
	}
}

func TestClockGoingBackwards(t *testing.T) {
	fake := clock.NewFake(epoch)
	r := &recorder{clock: fake}
	r.lag = func(step int) time.Duration {
		if step == 4 {
			fake.Set(epoch)
		}
		return 0
	}
	tr := newTestTransition(t, 10, time.Second, r)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	assertIncreasing(t, r.steps, 10)
	if last := r.steps[len(r.steps)-1]; last != 9 {
		t.Errorf("final step %d", last)
	}
}

func TestTimelineMonotonic(t *testing.T) {
	fake := clock.NewFake(epoch)
	tl, err := NewTimeline(fake, 10, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	tl.Start()

	offsets := []time.Duration{0, 150, 320, 100, 0, 999, 450, 5000}
	prev := 0
	for _, ms := range offsets {
		fake.Set(epoch.Add(ms * time.Millisecond))
		cur := tl.Current()
		if cur < prev {
			t.Errorf("at %dms Current = %d after %d", ms, cur, prev)
		}
		prev = cur
	}
	if prev != 50 {
		t.Errorf("Current = %d at 5s, want 50", prev)
	}

	if got := tl.Deadline(3).Sub(epoch); got != 300*time.Millisecond {
		t.Errorf("Deadline(3) = %v", got)
	}
}

func TestStartCapturedOnce(t *testing.T) {
	fake := clock.NewFake(epoch)
	tl, _ := NewTimeline(fake, 4, 400*time.Millisecond)

	first := tl.Start()
	fake.Advance(time.Second)
	if !tl.Start().Equal(first) {
		t.Errorf("start time moved")
	}
}

func TestInvalidInput(t *testing.T) {
	fn := func(int, int) error { return nil }
	surface := newMemSurface(4, 4)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw := DrawFunc(func(hal.Surface, image.Image, image.Image, Frame) error { return nil })

	tests := []struct {
		name string
		make func() (*Transition, error)
	}{
		{"zero steps", func() (*Transition, error) { return NewFunc(fn, 0, time.Second) }},
		{"negative steps", func() (*Transition, error) { return NewFunc(fn, -3, time.Second) }},
		{"zero duration", func() (*Transition, error) { return NewFunc(fn, 4, 0) }},
		{"sub-step duration", func() (*Transition, error) { return NewFunc(fn, 10, 5*time.Nanosecond) }},
		{"nil func", func() (*Transition, error) { return NewFunc(nil, 4, time.Second) }},
		{"nil surface", func() (*Transition, error) { return New(nil, img, img, draw, 4, time.Second) }},
		{"nil image", func() (*Transition, error) { return New(surface, nil, img, draw, 4, time.Second) }},
		{"nil drawer", func() (*Transition, error) { return NewSelf(surface, img, nil, 4, time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := tt.make()
			if !errors.Is(err, hal.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if tr != nil {
				t.Errorf("got a transition alongside the error")
			}
		})
	}
}

func TestGeneratorErrorAborts(t *testing.T) {
	busErr := hal.DisplayOutput(errors.New("spi write"))
	r := &recorder{clock: clock.NewFake(epoch), err: busErr}
	tr := newTestTransition(t, 5, 500*time.Millisecond, r)

	err := tr.Run(context.Background())
	if !errors.Is(err, hal.ErrDisplayOutput) {
		t.Fatalf("err = %v, want ErrDisplayOutput", err)
	}
	if len(r.steps) != 1 {
		t.Errorf("generator called %d times after failing", len(r.steps))
	}
	if tr.State() == Finished {
		t.Errorf("failed transition reported finished")
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := clock.NewFake(epoch)
	r := &recorder{clock: fake}
	r.lag = func(step int) time.Duration {
		if step == 2 {
			cancel()
		}
		return 0
	}
	tr := newTestTransition(t, 10, time.Second, r)

	err := tr.Run(ctx)
	if !errors.Is(err, hal.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	if !equal(r.steps, []int{0, 1, 2}) {
		t.Errorf("steps = %v, want [0 1 2]", r.steps)
	}

	// A cancelled context stops before any frame is drawn.
	r2 := &recorder{clock: clock.NewFake(epoch)}
	tr2 := newTestTransition(t, 3, time.Second, r2)
	if _, err := tr2.Advance(ctx); !errors.Is(err, hal.ErrCancelled) {
		t.Errorf("err = %v", err)
	}
	if len(r2.steps) != 0 {
		t.Errorf("generator ran on a cancelled context")
	}
}

func TestCancellationWithSystemClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	tr, err := NewFunc(func(int, int) error { calls++; return nil }, 4, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err = tr.Run(ctx)
	if !errors.Is(err, hal.ErrCancelled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation did not interrupt the wait")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAdvanceAfterFinish(t *testing.T) {
	r := &recorder{clock: clock.NewFake(epoch)}
	tr := newTestTransition(t, 1, 100*time.Millisecond, r)
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	done, err := tr.Advance(context.Background())
	if !done || err != nil {
		t.Errorf("Advance after finish = %v, %v", done, err)
	}
	if len(r.steps) != 1 {
		t.Errorf("finished transition rendered again")
	}
}

func TestImageTransitionPassesFrameGeometry(t *testing.T) {
	fake := clock.NewFake(epoch)
	surface := newMemSurface(32, 24)
	from := uniform(32, 24, color.RGBA{R: 255, A: 255})
	to := uniform(32, 24, color.RGBA{B: 255, A: 255})

	var frames []Frame
	d := DrawFunc(func(target hal.Surface, f, tt image.Image, fr Frame) error {
		if f != from || tt != to {
			t.Errorf("images not passed through")
		}
		frames = append(frames, fr)
		return target.Draw(tt, image.Point{})
	})

	tr, err := New(surface, from, to, d, 3, 300*time.Millisecond, WithClock(fake))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %v", frames)
	}
	for i, fr := range frames {
		want := Frame{Step: i, Steps: 3, Width: 32, Height: 24}
		if fr != want {
			t.Errorf("frame %d = %+v, want %+v", i, fr, want)
		}
	}
	if surface.draws != 3 {
		t.Errorf("surface draws = %d", surface.draws)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{NotStarted: "not-started", Running: "running", Finished: "finished"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", s, s.String())
		}
	}
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
