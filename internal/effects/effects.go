// Package effects holds the frame generators used by transitions.
package effects

import (
	"image"
	"time"

	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/transition"
)

// Effect is a configured generator.
type Effect struct {
	Name   string
	Drawer transition.Drawer
	// Reveal effects draw a single image over what is already on screen,
	// so they are run with the incoming slide as both images.
	Reveal bool
}

// New builds the effect described by t for a display of the given size.
func New(t config.Transition, size image.Point) (Effect, error) {
	if err := t.Validate(); err != nil {
		return Effect{}, err
	}

	switch t.Effect {
	case config.EffectSweep:
		dir, err := ParseDirection(t.Direction)
		if err != nil {
			return Effect{}, err
		}
		return Effect{Name: t.Effect, Drawer: Sweep{Direction: dir}, Reveal: true}, nil

	case config.EffectPan:
		ease, err := ParseEasing(t.Easing)
		if err != nil {
			return Effect{}, err
		}
		pan := Transverse{
			Start: t.Start.Image(),
			End:   t.End.Image(),
			Auto:  t.Start == t.End,
			Ease:  ease,
		}
		return Effect{Name: t.Effect, Drawer: transition.Present(pan), Reveal: true}, nil

	case config.EffectDissolve:
		sample := t.Sample
		if sample == 0 {
			sample = max(size.X*size.Y, 1)
		}
		seed := t.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		d, err := NewDissolve(sample, seed)
		if err != nil {
			return Effect{}, err
		}
		return Effect{Name: t.Effect, Drawer: transition.Present(d)}, nil

	case config.EffectCut:
		return Effect{Name: t.Effect, Drawer: Cut{}}, nil

	default:
		return Effect{Name: config.EffectCrossfade, Drawer: transition.Present(Crossfade{})}, nil
	}
}
