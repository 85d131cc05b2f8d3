package effects

import "image"

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r, where r is relative to the top-left
// corner of img. The result shares pixels with img and keeps img's
// coordinate space, so its Bounds().Min is the absolute corner of the crop.
// Rectangles reaching outside img are clipped.
func Crop(img image.Image, r image.Rectangle) image.Image {
	b := img.Bounds()
	r = r.Add(b.Min).Intersect(b)
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	return &view{Image: img, r: r}
}

// view restricts an image without copying it.
type view struct {
	image.Image
	r image.Rectangle
}

func (v *view) Bounds() image.Rectangle { return v.r }
