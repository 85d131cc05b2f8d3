package transition

import (
	"fmt"
	"image"

	"github.com/ivlev/pihat/internal/hal"
)

// Frame identifies the frame a generator is asked for.
type Frame struct {
	Step   int // 0-based, always < Steps
	Steps  int
	Width  int // size of the target surface
	Height int
}

// Renderer computes the frame for a step without touching any device.
// Generators must not keep state between calls; to may be ignored.
type Renderer interface {
	Render(from, to image.Image, f Frame) (image.Image, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(from, to image.Image, f Frame) (image.Image, error)

func (fn RenderFunc) Render(from, to image.Image, f Frame) (image.Image, error) {
	return fn(from, to, f)
}

// Drawer draws the frame for a step straight onto a surface.
type Drawer interface {
	DrawFrame(target hal.Surface, from, to image.Image, f Frame) error
}

// DrawFunc adapts a function to Drawer.
type DrawFunc func(target hal.Surface, from, to image.Image, f Frame) error

func (fn DrawFunc) DrawFrame(target hal.Surface, from, to image.Image, f Frame) error {
	return fn(target, from, to, f)
}

// Present turns a Renderer into a Drawer that draws each rendered frame at
// the origin of the target.
func Present(r Renderer) Drawer {
	return PresentAt(r, image.Point{})
}

// PresentAt is Present with an explicit draw position. Errors from the
// surface are returned wrapped, so errors.Is still sees their kind.
func PresentAt(r Renderer, at image.Point) Drawer {
	return DrawFunc(func(target hal.Surface, from, to image.Image, f Frame) error {
		frame, err := r.Render(from, to, f)
		if err != nil {
			return err
		}
		if err := target.Draw(frame, at); err != nil {
			return fmt.Errorf("present step %d: %w", f.Step, err)
		}
		return nil
	})
}
