package surface

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/system"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solid(r image.Rectangle, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(r)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestFramebufferDrawPlacesFrameMinAtPoint(t *testing.T) {
	fb := NewFramebuffer(10, 10)
	var damaged []image.Rectangle
	fb.OnDraw(func(r image.Rectangle) { damaged = append(damaged, r) })

	// A crop in source coordinates lands with its corner on at.
	frame := solid(image.Rect(40, 40, 44, 43), red)
	if err := fb.Draw(frame, image.Pt(2, 3)); err != nil {
		t.Fatal(err)
	}
	if fb.RGBAAt(2, 3) != red || fb.RGBAAt(5, 5) != red {
		t.Errorf("frame not drawn at (2,3)")
	}
	if fb.RGBAAt(6, 3) == red || fb.RGBAAt(2, 6) == red {
		t.Errorf("frame drawn too large")
	}
	if len(damaged) != 1 || damaged[0] != image.Rect(2, 3, 6, 6) {
		t.Errorf("damage = %v", damaged)
	}

	// Partly off-screen.
	if err := fb.Draw(solid(image.Rect(0, 0, 4, 4), blue), image.Pt(8, -2)); err != nil {
		t.Fatal(err)
	}
	if fb.RGBAAt(9, 0) != blue || fb.RGBAAt(9, 1) != blue || fb.RGBAAt(9, 2) == blue {
		t.Errorf("clipped draw wrong")
	}
	if fb.Draws() != 2 {
		t.Errorf("Draws = %d", fb.Draws())
	}
}

func TestFramebufferSnapshotIsCopy(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fb.Draw(solid(image.Rect(0, 0, 4, 4), red), image.Point{})

	snap := fb.Snapshot()
	defer system.PutImage(snap)
	fb.Draw(solid(image.Rect(0, 0, 4, 4), blue), image.Point{})

	if snap.RGBAAt(1, 1) != red {
		t.Errorf("snapshot changed with the framebuffer")
	}
}

func TestFramebufferSetPixel(t *testing.T) {
	fb := NewFramebuffer(6, 4)
	if w, h := fb.Size(); w != 6 || h != 4 {
		t.Errorf("Size = %d,%d", w, h)
	}
	fb.SetPixel(5, 3, blue)
	fb.SetPixel(6, 3, red)
	if fb.RGBAAt(5, 3) != blue {
		t.Errorf("SetPixel lost")
	}
}

// panel is a display driver that counts flushes.
type panel struct {
	*Framebuffer
	flushes int
}

func (p *panel) Display() error {
	p.flushes++
	return nil
}

func TestDisplayerAdapter(t *testing.T) {
	target := &panel{Framebuffer: NewFramebuffer(8, 8)}
	s := NewDisplayer(target)
	if s.Bounds() != image.Rect(0, 0, 8, 8) {
		t.Errorf("Bounds = %v", s.Bounds())
	}

	frame := solid(image.Rect(10, 10, 14, 14), red)
	if err := s.Draw(frame, image.Pt(6, 6)); err != nil {
		t.Fatal(err)
	}
	if target.RGBAAt(7, 7) != red || target.RGBAAt(5, 5) == red {
		t.Errorf("pixels misplaced")
	}

	if err := s.Draw(image.NewUniform(blue), image.Point{}); err != nil {
		t.Fatal(err)
	}
	if target.RGBAAt(0, 0) != blue {
		t.Errorf("uniform frame not drawn")
	}
	if target.flushes != 2 {
		t.Errorf("flushes = %d", target.flushes)
	}
}

type brokenDisplay struct{ *Framebuffer }

func (brokenDisplay) Display() error { return errors.New("i2c: nack") }

func TestDisplayerAdapterError(t *testing.T) {
	s := NewDisplayer(brokenDisplay{NewFramebuffer(2, 2)})
	err := s.Draw(solid(image.Rect(0, 0, 2, 2), red), image.Point{})
	if !errors.Is(err, hal.ErrDisplayOutput) {
		t.Errorf("err = %v", err)
	}
}

func TestTerminalRender(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(32, 13)

	term := NewTerminal(screen, 32, 24)
	s := NewDisplayer(term)
	if s.Bounds() != image.Rect(0, 0, 32, 24) {
		t.Errorf("Bounds = %v", s.Bounds())
	}
	top := solid(image.Rect(0, 0, 32, 12), red)
	bottom := solid(image.Rect(0, 0, 32, 12), blue)
	if err := s.Draw(top, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Draw(bottom, image.Pt(0, 12)); err != nil {
		t.Fatal(err)
	}

	r, _, style, _ := screen.GetContent(3, 1)
	if r != upperHalf {
		t.Fatalf("cell rune = %q", r)
	}
	fg, bg, _ := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) || bg != tcell.NewRGBColor(255, 0, 0) {
		t.Errorf("top cell colours = %v / %v", fg, bg)
	}
	_, _, style, _ = screen.GetContent(3, 10)
	if fg, _, _ := style.Decompose(); fg != tcell.NewRGBColor(0, 0, 255) {
		t.Errorf("bottom cell colour = %v", fg)
	}

	term.SetLED(color.RGBA{G: 255, A: 255})
	r, _, style, _ = screen.GetContent(0, 12)
	if fg, _, _ := style.Decompose(); r != '●' || fg != tcell.NewRGBColor(0, 255, 0) {
		t.Errorf("LED indicator = %q %v", r, fg)
	}

	term.SetBrightness(0)
	_, _, style, _ = screen.GetContent(3, 1)
	if fg, _, _ := style.Decompose(); fg != tcell.NewRGBColor(0, 0, 0) {
		t.Errorf("backlight off but cell lit: %v", fg)
	}
}

func TestFit(t *testing.T) {
	tests := []struct{ w, h, mw, mh, ww, wh int }{
		{320, 240, 80, 46, 61, 46},
		{320, 240, 40, 100, 40, 30},
		{320, 240, 320, 240, 320, 240},
		{0, 240, 10, 10, 0, 0},
	}
	for _, tt := range tests {
		if w, h := fit(tt.w, tt.h, tt.mw, tt.mh); w != tt.ww || h != tt.wh {
			t.Errorf("fit(%d,%d into %d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.mw, tt.mh, w, h, tt.ww, tt.wh)
		}
	}
}
