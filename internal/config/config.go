// Package config describes the board wiring, the display target and the
// slideshow, and reads them from YAML.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/pihat/internal/hal"
)

// Display drivers understood by the CLI.
const (
	DriverST7789   = "st7789"
	DriverTerminal = "terminal"
	DriverPreview  = "preview"
	DriverRecord   = "record"
)

type Config struct {
	Display   Display   `yaml:"display"`
	Buttons   Buttons   `yaml:"buttons"`
	LED       LED       `yaml:"led"`
	Slideshow Slideshow `yaml:"slideshow"`
	Logging   Logging   `yaml:"logging"`
	ShowStats bool      `yaml:"stats"`
}

type Display struct {
	Driver    string  `yaml:"driver"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FPS       int     `yaml:"fps"`
	Backlight float64 `yaml:"backlight"`
	SPI       SPI     `yaml:"spi"`
	Preview   Preview `yaml:"preview"`
	Record    Record  `yaml:"record"`
}

// SPI wires an ST7789 panel. Pin names are periph names such as "GPIO9".
type SPI struct {
	Port         string `yaml:"port"`
	SpeedHz      int64  `yaml:"speed_hz"`
	DCPin        string `yaml:"dc_pin"`
	BacklightPin string `yaml:"backlight_pin"`
	Rotation     int    `yaml:"rotation"`
	Invert       bool   `yaml:"invert"`
}

type Preview struct {
	Listen  string `yaml:"listen"`
	Quality int    `yaml:"quality"`
}

type Record struct {
	Output  string `yaml:"output"`
	Encoder string `yaml:"encoder"`
	Quality int    `yaml:"quality"`
}

type Buttons struct {
	A         string        `yaml:"a"`
	B         string        `yaml:"b"`
	X         string        `yaml:"x"`
	Y         string        `yaml:"y"`
	ActiveLow bool          `yaml:"active_low"`
	Poll      time.Duration `yaml:"poll"`
}

type LED struct {
	Red       string        `yaml:"red"`
	Green     string        `yaml:"green"`
	Blue      string        `yaml:"blue"`
	ActiveLow bool          `yaml:"active_low"`
	Idle      string        `yaml:"idle"`
	Busy      string        `yaml:"busy"`
	Fade      time.Duration `yaml:"fade"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the wiring of a Pimoroni Display HAT Mini and a slideshow
// that crossfades every three seconds.
func Default() *Config {
	return &Config{
		Display: Display{
			Driver:    DriverST7789,
			Width:     320,
			Height:    240,
			FPS:       30,
			Backlight: 1,
			SPI: SPI{
				Port:         "SPI0.1",
				SpeedHz:      60_000_000,
				DCPin:        "GPIO9",
				BacklightPin: "GPIO13",
				Rotation:     180,
				Invert:       true,
			},
			Preview: Preview{Listen: ":8080", Quality: 80},
			Record:  Record{Encoder: "libx264", Quality: 23},
		},
		Buttons: Buttons{
			A:         "GPIO5",
			B:         "GPIO6",
			X:         "GPIO16",
			Y:         "GPIO24",
			ActiveLow: true,
			Poll:      10 * time.Millisecond,
		},
		LED: LED{
			Red:       "GPIO17",
			Green:     "GPIO27",
			Blue:      "GPIO22",
			ActiveLow: true,
			Idle:      "#000000",
			Busy:      "#00ff40",
			Fade:      300 * time.Millisecond,
		},
		Slideshow: Slideshow{
			DPI:     150,
			Workers: runtime.NumCPU(),
			Dwell:   3 * time.Second,
			Transition: Transition{
				Effect:   EffectCrossfade,
				Duration: time.Second,
			},
		},
		Logging: Logging{Level: "info"},
	}
}

// Validate reports every problem found, each wrapping hal.ErrInvalidInput.
func (c *Config) Validate() error {
	var errs []error
	bad := func(what, format string, args ...any) {
		errs = append(errs, hal.InvalidInput(what, fmt.Sprintf(format, args...)))
	}

	d := c.Display
	switch d.Driver {
	case DriverST7789, DriverTerminal, DriverPreview, DriverRecord:
	default:
		bad("display.driver", "unknown driver %q", d.Driver)
	}
	if d.Width <= 0 || d.Height <= 0 {
		bad("display.size", "%dx%d is not a valid size", d.Width, d.Height)
	}
	if d.FPS < 1 || d.FPS > 240 {
		bad("display.fps", "%d is outside 1..240", d.FPS)
	}
	if d.Backlight < 0 || d.Backlight > 1 {
		bad("display.backlight", "%v is outside 0..1", d.Backlight)
	}
	switch d.SPI.Rotation {
	case 0, 90, 180, 270:
	default:
		bad("display.spi.rotation", "%d is not a multiple of 90", d.SPI.Rotation)
	}
	if d.Driver == DriverRecord && d.Record.Output == "" {
		bad("display.record.output", "required by the record driver")
	}
	if c.Buttons.Poll <= 0 {
		bad("buttons.poll", "must be positive")
	}

	for name, hex := range map[string]string{"led.idle": c.LED.Idle, "led.busy": c.LED.Busy} {
		if _, err := colorful.Hex(hex); err != nil {
			bad(name, "%q is not a #rrggbb colour", hex)
		}
	}
	if c.LED.Fade < 0 {
		bad("led.fade", "must not be negative")
	}

	s := c.Slideshow
	if s.Workers < 1 {
		bad("slideshow.workers", "must be at least 1")
	}
	if s.DPI < 1 {
		bad("slideshow.dpi", "must be positive")
	}
	if s.Dwell < 0 {
		bad("slideshow.dwell", "must not be negative")
	}
	if err := s.Transition.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("slideshow.transition: %w", err))
	}
	for i, sl := range s.Slides {
		if sl.Page < 0 {
			bad(fmt.Sprintf("slideshow.slides[%d].page", i), "must not be negative")
		}
		if sl.Dwell < 0 {
			bad(fmt.Sprintf("slideshow.slides[%d].dwell", i), "must not be negative")
		}
		if sl.Transition != nil {
			if err := sl.Transition.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("slideshow.slides[%d].transition: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}
