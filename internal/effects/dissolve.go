package effects

import (
	"fmt"
	"image"
	"math/rand"

	"golang.org/x/image/draw"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

// Dissolve switches pixels from the source to the destination in random
// order. Each pixel owns a random threshold in [0, steps) and shows the
// destination once the step reaches it. Thresholds come from a sample drawn
// once per instance, so the same instance always produces the same frames.
type Dissolve struct {
	sample []uint32
}

// NewDissolve draws a sample of size random values from seed. Pixels beyond
// the sample reuse it cyclically, so a sample the size of the display gives
// every pixel its own threshold.
func NewDissolve(size int, seed int64) (*Dissolve, error) {
	if size < 1 {
		return nil, hal.InvalidInput("sample", "must be greater than 0")
	}
	r := rand.New(rand.NewSource(seed))
	sample := make([]uint32, size)
	for i := range sample {
		sample[i] = r.Uint32()
	}
	return &Dissolve{sample: sample}, nil
}

// threshold scales a sample value onto [0, steps).
func threshold(v uint32, steps int) int {
	return int(uint64(v) * uint64(steps) >> 32)
}

func (d *Dissolve) Render(from, to image.Image, f transition.Frame) (image.Image, error) {
	if f.Steps < 1 {
		return nil, hal.InvalidInput("steps", "must be greater than 0")
	}
	fb, tb := from.Bounds(), to.Bounds()
	if fb.Size() != tb.Size() {
		return nil, hal.InvalidInput("image", fmt.Sprintf("dissolve needs equal sizes, got %v and %v", fb.Size(), tb.Size()))
	}

	src, dst := asRGBA(from), asRGBA(to)
	w, h := fb.Dx(), fb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	n := len(d.sample)
	for y := 0; y < h; y++ {
		srow := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		drow := dst.Pix[dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y):]
		orow := out.Pix[y*out.Stride:]
		base := y * w
		for x := 0; x < w; x++ {
			row := srow
			if threshold(d.sample[(base+x)%n], f.Steps) <= f.Step {
				row = drow
			}
			i := x * 4
			copy(orow[i:i+4], row[i:i+4])
		}
	}
	return out, nil
}

// asRGBA returns img as *image.RGBA, converting only when needed.
func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
