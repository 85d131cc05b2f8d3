// Package surface provides display surfaces that are not tied to a panel,
// plus an adapter that drives TinyGo-style display drivers as a Surface.
package surface

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ivlev/pihat/internal/system"
)

// Framebuffer is an RGBA surface held in memory.
type Framebuffer struct {
	mu     sync.RWMutex
	img    *image.RGBA
	draws  int
	onDraw func(r image.Rectangle)
}

func NewFramebuffer(w, h int) *Framebuffer {
	return &Framebuffer{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// OnDraw registers fn to run after every Draw with the damaged rectangle.
// It runs with the framebuffer unlocked.
func (f *Framebuffer) OnDraw(fn func(r image.Rectangle)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDraw = fn
}

func (f *Framebuffer) Bounds() image.Rectangle { return f.img.Rect }

func (f *Framebuffer) Draw(frame image.Image, at image.Point) error {
	fb := frame.Bounds()
	r := fb.Sub(fb.Min).Add(at).Intersect(f.img.Rect)

	f.mu.Lock()
	draw.Draw(f.img, r, frame, fb.Min.Add(r.Min.Sub(at)), draw.Src)
	f.draws++
	fn := f.onDraw
	f.mu.Unlock()

	if fn != nil && !r.Empty() {
		fn(r)
	}
	return nil
}

// Draws counts Draw calls.
func (f *Framebuffer) Draws() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.draws
}

// Snapshot copies the current contents into an image from the shared pool.
// Hand it back with system.PutImage when done.
func (f *Framebuffer) Snapshot() *image.RGBA {
	out := system.GetImage(f.img.Rect)
	f.mu.RLock()
	copy(out.Pix, f.img.Pix)
	f.mu.RUnlock()
	return out
}

// View calls fn with the live image under a read lock.
func (f *Framebuffer) View(fn func(img *image.RGBA)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn(f.img)
}

// RGBAAt reads one pixel.
func (f *Framebuffer) RGBAAt(x, y int) color.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.img.RGBAAt(x, y)
}

// Size and SetPixel give pixel access in the TinyGo driver style.
func (f *Framebuffer) Size() (x, y int16) {
	return int16(f.img.Rect.Dx()), int16(f.img.Rect.Dy())
}

func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	f.mu.Lock()
	f.img.SetRGBA(int(x), int(y), c)
	f.mu.Unlock()
}
