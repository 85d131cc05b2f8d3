package effects

import (
	"fmt"
	"image"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

// Crossfade blends the source into the destination. The weight of the
// destination is (step+1)/steps, so the last step is the destination alone.
type Crossfade struct{}

func (Crossfade) Render(from, to image.Image, f transition.Frame) (image.Image, error) {
	if f.Steps < 1 {
		return nil, hal.InvalidInput("steps", "must be greater than 0")
	}
	fb, tb := from.Bounds(), to.Bounds()
	if fb.Size() != tb.Size() {
		return nil, hal.InvalidInput("image", fmt.Sprintf("crossfade needs equal sizes, got %v and %v", fb.Size(), tb.Size()))
	}

	k := uint32(min(f.Step+1, f.Steps))
	n := uint32(f.Steps)
	src, dst := asRGBA(from), asRGBA(to)
	w, h := fb.Dx(), fb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srow := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		drow := dst.Pix[dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y):]
		orow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for i := range orow {
			orow[i] = uint8((uint32(srow[i])*(n-k) + uint32(drow[i])*k) / n)
		}
	}
	return out, nil
}

// Cut shows the destination immediately.
type Cut struct{}

func (Cut) DrawFrame(target hal.Surface, _, to image.Image, _ transition.Frame) error {
	return target.Draw(to, target.Bounds().Min)
}
