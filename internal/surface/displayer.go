package surface

import (
	"image"
	"image/color"

	"tinygo.org/x/drivers"

	"github.com/ivlev/pihat/internal/hal"
)

// Displayer drives any TinyGo display driver as a Surface. Pixels are
// written one by one into the driver's buffer, then flushed with Display.
type Displayer struct {
	d drivers.Displayer
}

func NewDisplayer(d drivers.Displayer) *Displayer {
	return &Displayer{d: d}
}

func (s *Displayer) Bounds() image.Rectangle {
	w, h := s.d.Size()
	return image.Rect(0, 0, int(w), int(h))
}

func (s *Displayer) Draw(frame image.Image, at image.Point) error {
	fb := frame.Bounds()
	r := fb.Sub(fb.Min).Add(at).Intersect(s.Bounds())
	if r.Empty() {
		return nil
	}
	off := fb.Min.Sub(at)

	rgba, fast := frame.(*image.RGBA)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			var c color.RGBA
			if fast {
				c = rgba.RGBAAt(x+off.X, y+off.Y)
			} else {
				c = color.RGBAModel.Convert(frame.At(x+off.X, y+off.Y)).(color.RGBA)
			}
			s.d.SetPixel(int16(x), int16(y), c)
		}
	}
	if err := s.d.Display(); err != nil {
		return hal.DisplayOutput(err)
	}
	return nil
}
