// Package engine plays a slideshow on a surface: it renders the pages up
// front, then moves between them with the configured transitions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/effects"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/source"
	"github.com/ivlev/pihat/internal/surface"
	"github.com/ivlev/pihat/internal/system"
	"github.com/ivlev/pihat/internal/transition"
)

// Player shows a slideshow. Next may be called from any goroutine; the
// rest of the methods belong to the goroutine running Run.
type Player struct {
	target hal.Surface
	screen *surface.Framebuffer
	src    source.Source
	show   config.Slideshow
	fps    int

	clock      clock.Clock
	log        log.FieldLogger
	background color.Color
	onBusy     func(busy bool)

	next chan struct{}
}

type Option func(*Player)

func WithClock(c clock.Clock) Option { return func(p *Player) { p.clock = c } }

func WithLogger(l log.FieldLogger) Option { return func(p *Player) { p.log = l } }

// WithBackground sets the colour around letterboxed pages. Run paints
// the target with it before the first slide.
func WithBackground(c color.Color) Option { return func(p *Player) { p.background = c } }

// OnBusy registers fn to be told when a transition starts and ends.
func OnBusy(fn func(busy bool)) Option { return func(p *Player) { p.onBusy = fn } }

func NewPlayer(target hal.Surface, src source.Source, show config.Slideshow, fps int, opts ...Option) (*Player, error) {
	if target == nil {
		return nil, hal.InvalidInput("target", "surface is nil")
	}
	if src == nil {
		return nil, hal.InvalidInput("source", "is nil")
	}
	if fps < 1 {
		return nil, hal.InvalidInput("fps", "must be positive")
	}
	b := target.Bounds()
	p := &Player{
		target:     target,
		screen:     surface.NewFramebuffer(b.Dx(), b.Dy()),
		src:        src,
		show:       show,
		fps:        fps,
		clock:      clock.System{},
		log:        log.StandardLogger(),
		background: color.Black,
		next:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Next ends the current dwell early. Presses during a transition are kept
// for the following dwell; extra presses are dropped.
func (p *Player) Next() {
	select {
	case p.next <- struct{}{}:
	default:
	}
}

// Report sums up a run.
type Report struct {
	Slides      int
	Transitions int
	Rendered    int
	Skipped     int
	Prepare     time.Duration
	Total       time.Duration
}

func (r Report) add(s transition.Stats) Report {
	r.Transitions++
	r.Rendered += s.Rendered
	r.Skipped += s.Skipped
	return r
}

// Print writes the report in the same layout as the CLI banner.
func (r Report) Print(w io.Writer, info system.Info) {
	fmt.Fprintf(w,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Slides: %d | Transitions: %d\n"+
			"Prepare (CPU): %.2fs\n"+
			"Total Time: %.2fs\n"+
			"Frames drawn: %d | skipped: %d\n"+
			"Host: %s %s/%s | CPU %.0f%% | Temp %.1fC\n"+
			"----------------------------\n",
		r.Slides, r.Transitions, r.Prepare.Seconds(), r.Total.Seconds(),
		r.Rendered, r.Skipped,
		info.Hostname, info.Platform, info.Arch, info.CPUPercent, info.Temperature,
	)
}

// Run prepares every slide and plays them. Without looping it returns
// after the last dwell; otherwise it plays until ctx is done. A cancelled
// run returns the report so far with an error matching hal.ErrCancelled.
func (p *Player) Run(ctx context.Context) (Report, error) {
	start := p.clock.Now()
	plan := p.show.Plan(p.src.PageCount())
	if len(plan) == 0 {
		return Report{}, hal.InvalidInput("slideshow", "no slides to show")
	}

	slides, err := p.Prepare(ctx, plan)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Slides: len(plan), Prepare: p.clock.Now().Sub(start)}
	p.log.WithFields(log.Fields{
		"slides":  len(plan),
		"prepare": rep.Prepare.Round(time.Millisecond),
	}).Info("slides ready")

	if err := p.clear(); err != nil {
		return rep, err
	}

	for {
		for i, sl := range plan {
			stats, err := p.Show(ctx, slides[i], *sl.Transition)
			rep = rep.add(stats)
			rep.Total = p.clock.Now().Sub(start)
			if err != nil {
				return rep, fmt.Errorf("slide %d (page %d): %w", i, sl.Page, err)
			}
			if err := p.Hold(ctx, sl.Dwell); err != nil {
				return rep, err
			}
		}
		rep.Total = p.clock.Now().Sub(start)
		if !p.show.Loop {
			return rep, nil
		}
	}
}

// clear paints the background on the target and the screen copy.
func (p *Player) clear() error {
	b := p.target.Bounds()
	bg := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(bg, bg.Rect, image.NewUniform(p.background), image.Point{}, draw.Src)
	return (&mirror{target: p.target, screen: p.screen}).Draw(bg, b.Min)
}

// Prepare renders and scales the page of every slide, several at a time.
func (p *Player) Prepare(ctx context.Context, plan []config.Slide) ([]image.Image, error) {
	size := p.target.Bounds().Size()
	slides := make([]image.Image, len(plan))

	workers := p.show.Workers
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sl := range plan {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return hal.Cancelled(err)
			}
			img, err := p.src.RenderPage(sl.Page, p.show.DPI)
			if err != nil {
				return fmt.Errorf("render page %d: %w", sl.Page, err)
			}
			if sl.Transition != nil && sl.Transition.Effect == config.EffectPan {
				slides[i] = source.Cover(img, size.X, size.Y)
			} else {
				slides[i] = source.Fit(img, size.X, size.Y, p.background)
			}
			p.log.WithField("page", sl.Page).Debug("page ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slides, nil
}

// Show runs one transition from what is on screen to img.
func (p *Player) Show(ctx context.Context, img image.Image, t config.Transition) (transition.Stats, error) {
	eff, err := effects.New(t, p.target.Bounds().Size())
	if err != nil {
		return transition.Stats{}, err
	}

	steps, total := t.StepsAt(p.fps), t.Duration
	if eff.Name == config.EffectCut || total <= 0 {
		steps, total = 1, time.Second/time.Duration(p.fps)
	}

	tee := &mirror{target: p.target, screen: p.screen}
	opts := []transition.Option{transition.WithClock(p.clock), transition.WithLogger(p.log)}
	var tr *transition.Transition
	if eff.Reveal {
		tr, err = transition.NewSelf(tee, img, eff.Drawer, steps, total, opts...)
	} else {
		from := p.screen.Snapshot()
		defer system.PutImage(from)
		tr, err = transition.New(tee, from, img, eff.Drawer, steps, total, opts...)
	}
	if err != nil {
		return transition.Stats{}, err
	}

	p.busy(true)
	err = tr.Run(ctx)
	p.busy(false)

	stats := tr.Stats()
	entry := p.log.WithFields(log.Fields{
		"effect":   eff.Name,
		"steps":    stats.Steps,
		"rendered": stats.Rendered,
		"skipped":  stats.Skipped,
	})
	if stats.Skipped > 0 {
		entry.Info("transition lagged")
	} else {
		entry.Debug("transition done")
	}
	return stats, err
}

// Hold keeps the current slide on screen for d or until Next is called.
func (p *Player) Hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-p.next:
		return nil
	default:
	}

	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := make(chan struct{})
	pressed := make(chan bool, 1)
	go func() {
		select {
		case <-p.next:
			cancel()
			pressed <- true
		case <-stop:
			pressed <- false
		}
	}()

	err := p.clock.SleepUntil(hctx, p.clock.Now().Add(d))
	close(stop)
	if <-pressed && err == nil {
		// The dwell ran out as the press arrived; keep it for the next one.
		p.Next()
	}
	if err != nil && ctx.Err() != nil {
		return hal.Cancelled(ctx.Err())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Player) busy(b bool) {
	if p.onBusy != nil {
		p.onBusy(b)
	}
}

// mirror draws to the real target and keeps a copy of what it shows, so
// the next transition can start from the screen contents.
type mirror struct {
	target hal.Surface
	screen *surface.Framebuffer
}

func (m *mirror) Bounds() image.Rectangle { return m.target.Bounds() }

func (m *mirror) Draw(frame image.Image, at image.Point) error {
	if err := m.target.Draw(frame, at); err != nil {
		return err
	}
	return m.screen.Draw(frame, at.Sub(m.target.Bounds().Min))
}
