// Package board assembles the devices of a display HAT: the panel, its
// backlight, the RGB LED and the four buttons.
package board

import (
	"errors"

	"github.com/ivlev/pihat/internal/button"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/led"
)

// Board is an opened HAT. All members are safe to use from several
// goroutines; Display serialises draws.
type Board struct {
	Display   *hal.SharedSurface
	Backlight *led.PWM
	LED       *led.RGB
	A, B      *button.Button
	X, Y      *button.Button

	// Quit is closed when the user asks to leave, for boards that have a
	// way to ask. It is nil otherwise.
	Quit <-chan struct{}

	closers []func() error
}

// Buttons lists the buttons in A, B, X, Y order.
func (b *Board) Buttons() []*button.Button {
	return []*button.Button{b.A, b.B, b.X, b.Y}
}

// Close releases the hardware in reverse order of acquisition.
func (b *Board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Board) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Headless wraps a surface with no physical controls: the backlight and
// the LED go nowhere and the buttons are nil. closers run on Close.
func Headless(s hal.Surface, closers ...func() error) *Board {
	discard := led.OutputFunc(func(float64) error { return nil })
	return &Board{
		Display:   hal.Shared(s),
		Backlight: led.NewPWM(discard),
		LED:       led.NewRGB(discard, discard, discard, false),
		closers:   closers,
	}
}
