package source

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Fit scales img to fill as much of a w x h canvas as possible without
// changing its aspect ratio, centred on bg.
func Fit(img image.Image, w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Rect, image.NewUniform(bg), image.Point{}, draw.Src)

	sb := img.Bounds()
	if sb.Empty() || w <= 0 || h <= 0 {
		return dst
	}
	dw, dh := w, sb.Dy()*w/sb.Dx()
	if dh > h {
		dw, dh = sb.Dx()*h/sb.Dy(), h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	x, y := (w-dw)/2, (h-dh)/2
	target := image.Rect(x, y, x+dw, y+dh)

	// Downscaling a rendered page benefits from the better kernel.
	scaler := draw.Interpolator(draw.ApproxBiLinear)
	if dw < sb.Dx() {
		scaler = draw.CatmullRom
	}
	if dw == sb.Dx() && dh == sb.Dy() {
		draw.Draw(dst, target, img, sb.Min, draw.Over)
	} else {
		scaler.Scale(dst, target, img, sb, draw.Over, nil)
	}
	return dst
}

// Cover scales img so it covers a w x h canvas, keeping its aspect ratio.
// One side matches the canvas and the other is at least as long, which
// leaves room to pan.
func Cover(img image.Image, w, h int) *image.RGBA {
	sb := img.Bounds()
	if sb.Empty() || w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	}
	dw, dh := w, max(sb.Dy()*w/sb.Dx(), 1)
	if dh < h {
		dw, dh = max(sb.Dx()*h/sb.Dy(), 1), h
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Rect, img, sb, draw.Src, nil)
	return dst
}
