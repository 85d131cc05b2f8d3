package effects

import (
	"image"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

// Transverse pans a target-sized window across the source image, moving its
// top-left corner from Start to End. With Auto set, the window travels from
// the top-left corner to the bottom-right one of whatever image it is given.
type Transverse struct {
	Start, End image.Point
	Auto       bool
	Ease       Easing
}

func (t Transverse) Render(from, _ image.Image, f transition.Frame) (image.Image, error) {
	if f.Steps < 1 {
		return nil, hal.InvalidInput("steps", "must be greater than 0")
	}

	start, end := t.Start, t.End
	if t.Auto {
		size := from.Bounds().Size()
		start = image.Point{}
		end = image.Pt(max(size.X-f.Width, 0), max(size.Y-f.Height, 0))
	}

	ratio := float64(f.Step) / float64(f.Steps)
	if t.Ease != nil {
		ratio = t.Ease(ratio)
	}
	dx := int(ratio*float64(end.X-start.X)) + start.X
	dy := int(ratio*float64(end.Y-start.Y)) + start.Y

	return Crop(from, image.Rect(dx, dy, dx+f.Width, dy+f.Height)), nil
}
