package surface

import (
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"
	"tinygo.org/x/drivers"

	"github.com/ivlev/pihat/internal/system"
)

const upperHalf = '▀'

var _ drivers.Displayer = (*Terminal)(nil)

// Terminal emulates the panel in a terminal. Each character cell shows two
// pixels stacked vertically using a half block, and the bottom line is kept
// for a status bar showing the LED colour.
//
// It behaves like a TinyGo display driver: SetPixel writes panel memory and
// Display puts it on screen. Wrap it with NewDisplayer to get a Surface.
type Terminal struct {
	screen tcell.Screen
	fb     *Framebuffer

	mu         sync.Mutex
	brightness float64
	led        color.RGBA
	status     string
}

// NewTerminal wraps an initialised screen with a w x h framebuffer.
func NewTerminal(screen tcell.Screen, w, h int) *Terminal {
	return &Terminal{
		screen:     screen,
		fb:         NewFramebuffer(w, h),
		brightness: 1,
		status:     "a/b/x/y: buttons  q: quit",
	}
}

func (t *Terminal) Size() (x, y int16) { return t.fb.Size() }

func (t *Terminal) SetPixel(x, y int16, c color.RGBA) { t.fb.SetPixel(x, y, c) }

// Display repaints the terminal from panel memory.
func (t *Terminal) Display() error {
	t.Render()
	return nil
}

// SetBrightness dims the emulated backlight; v is in [0,1].
func (t *Terminal) SetBrightness(v float64) {
	t.mu.Lock()
	t.brightness = v
	t.mu.Unlock()
	t.Render()
}

// SetLED sets the colour of the LED indicator in the status bar.
func (t *Terminal) SetLED(c color.RGBA) {
	t.mu.Lock()
	t.led = c
	t.mu.Unlock()
	t.Render()
}

func (t *Terminal) SetStatus(s string) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
	t.Render()
}

// Render repaints the screen from the framebuffer, scaled to fit.
func (t *Terminal) Render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cols, rows := t.screen.Size()
	if cols < 1 || rows < 2 {
		return
	}
	b := t.fb.Bounds()
	sw, sh := fit(b.Dx(), b.Dy(), cols, (rows-1)*2)
	sh -= sh % 2
	if sw < 1 || sh < 2 {
		return
	}

	scaled := system.GetImage(image.Rect(0, 0, sw, sh))
	defer system.PutImage(scaled)
	t.fb.View(func(img *image.RGBA) {
		draw.ApproxBiLinear.Scale(scaled, scaled.Rect, img, img.Rect, draw.Src, nil)
	})

	t.screen.Clear()
	offX := (cols - sw) / 2
	for y := 0; y < sh; y += 2 {
		for x := 0; x < sw; x++ {
			top := t.dim(scaled.RGBAAt(x, y))
			bottom := t.dim(scaled.RGBAAt(x, y+1))
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(offX+x, y/2, upperHalf, nil, style)
		}
	}

	led := tcell.NewRGBColor(int32(t.led.R), int32(t.led.G), int32(t.led.B))
	t.screen.SetContent(0, rows-1, '●', nil, tcell.StyleDefault.Foreground(led))
	for i, r := range []rune(" " + t.status) {
		if 1+i >= cols {
			break
		}
		t.screen.SetContent(1+i, rows-1, r, nil, tcell.StyleDefault)
	}
	t.screen.Show()
}

func (t *Terminal) dim(c color.RGBA) tcell.Color {
	k := t.brightness
	return tcell.NewRGBColor(int32(float64(c.R)*k), int32(float64(c.G)*k), int32(float64(c.B)*k))
}

// fit scales w x h down or up to the largest size inside maxW x maxH with
// the same aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxW*h <= maxH*w {
		return maxW, h * maxW / w
	}
	return w * maxH / h, maxH
}
