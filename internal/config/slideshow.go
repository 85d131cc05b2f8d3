package config

import (
	"fmt"
	"image"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/pihat/internal/hal"
)

// Effect names accepted in Transition.Effect.
const (
	EffectCrossfade = "crossfade"
	EffectDissolve  = "dissolve"
	EffectSweep     = "sweep"
	EffectPan       = "pan"
	EffectCut       = "cut"
)

// Slideshow describes what is shown and how slides change.
type Slideshow struct {
	Input      string        `yaml:"input"`
	QR         []string      `yaml:"qr,omitempty"`
	DPI        int           `yaml:"dpi"`
	Workers    int           `yaml:"workers"`
	Loop       bool          `yaml:"loop"`
	Dwell      time.Duration `yaml:"dwell"`
	Transition Transition    `yaml:"transition"`
	Slides     []Slide       `yaml:"slides,omitempty"`
}

// Slide overrides the defaults for one page. Without any slides every page
// of the input is shown in order.
type Slide struct {
	Page       int           `yaml:"page"`
	Dwell      time.Duration `yaml:"dwell,omitempty"`
	Transition *Transition   `yaml:"transition,omitempty"`
}

// Transition configures the effect that brings a slide on screen.
type Transition struct {
	Effect    string        `yaml:"effect"`
	Direction string        `yaml:"direction,omitempty"`
	Duration  time.Duration `yaml:"duration"`
	Steps     int           `yaml:"steps,omitempty"`
	Easing    string        `yaml:"easing,omitempty"`
	Start     Point         `yaml:"start,omitempty"`
	End       Point         `yaml:"end,omitempty"`
	Sample    int           `yaml:"sample,omitempty"`
	Seed      int64         `yaml:"seed,omitempty"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) Image() image.Point { return image.Pt(p.X, p.Y) }

func (t Transition) Validate() error {
	switch t.Effect {
	case EffectCrossfade, EffectDissolve, EffectSweep, EffectPan, EffectCut:
	default:
		return hal.InvalidInput("effect", fmt.Sprintf("unknown effect %q", t.Effect))
	}
	if t.Duration <= 0 && t.Effect != EffectCut {
		return hal.InvalidInput("duration", "must be positive")
	}
	if t.Steps < 0 {
		return hal.InvalidInput("steps", "must not be negative")
	}
	if t.Sample < 0 {
		return hal.InvalidInput("sample", "must not be negative")
	}
	return nil
}

// StepsAt returns the configured step count, or one step per frame at fps.
func (t Transition) StepsAt(fps int) int {
	if t.Steps > 0 {
		return t.Steps
	}
	return max(int(t.Duration.Seconds()*float64(fps)), 1)
}

// Plan resolves the dwell and transition of every slide against the
// slideshow defaults. pages is the number of pages in the input.
func (s Slideshow) Plan(pages int) []Slide {
	if len(s.Slides) == 0 {
		plan := make([]Slide, pages)
		for i := range plan {
			tr := s.Transition
			plan[i] = Slide{Page: i, Dwell: s.Dwell, Transition: &tr}
		}
		return plan
	}

	plan := make([]Slide, 0, len(s.Slides))
	for _, sl := range s.Slides {
		if sl.Page >= pages {
			continue
		}
		if sl.Dwell == 0 {
			sl.Dwell = s.Dwell
		}
		if sl.Transition == nil {
			tr := s.Transition
			sl.Transition = &tr
		}
		plan = append(plan, sl)
	}
	return plan
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write stores cfg as YAML.
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
