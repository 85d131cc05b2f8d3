package board

import (
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/pihat/internal/button"
	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/led"
	"github.com/ivlev/pihat/internal/surface"
)

// Terminals report key presses but not releases, so a key press holds the
// emulated button down for this long.
const keyHold = 150 * time.Millisecond

// OpenTerminal emulates the HAT on an initialised tcell screen. Keys a, b,
// x and y act as the buttons; q, Esc and Ctrl-C close Quit. The screen is
// finalised by Close.
func OpenTerminal(cfg *config.Config, screen tcell.Screen) (*Board, error) {
	term := surface.NewTerminal(screen, cfg.Display.Width, cfg.Display.Height)
	b := &Board{Display: hal.Shared(surface.NewDisplayer(term))}

	b.Backlight = led.NewPWM(led.OutputFunc(func(duty float64) error {
		term.SetBrightness(duty)
		return nil
	}))
	if _, err := b.Backlight.Set(cfg.Display.Backlight); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var rgb [3]float64
	channel := func(i int) led.Output {
		return led.OutputFunc(func(duty float64) error {
			mu.Lock()
			rgb[i] = duty
			c := colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}
			mu.Unlock()
			r, g, bl := c.Clamped().RGB255()
			term.SetLED(color.RGBA{R: r, G: g, B: bl, A: 255})
			return nil
		})
	}
	b.LED = led.NewRGB(channel(0), channel(1), channel(2), false)
	if _, err := b.LED.SetHex(cfg.LED.Idle); err != nil {
		return nil, err
	}

	keys := map[rune]*keyPin{'a': {}, 'b': {}, 'x': {}, 'y': {}}
	opts := []button.Option{button.WithPoll(cfg.Buttons.Poll)}
	b.A = button.New("a", keys['a'], opts...)
	b.B = button.New("b", keys['b'], opts...)
	b.X = button.New("x", keys['x'], opts...)
	b.Y = button.New("y", keys['y'], opts...)

	quit := make(chan struct{})
	b.Quit = quit
	done := make(chan struct{})
	go func() {
		defer close(done)
		pollKeys(screen, term, keys, quit)
	}()

	b.onClose(func() error {
		screen.Fini()
		<-done
		return nil
	})
	return b, nil
}

func pollKeys(screen tcell.Screen, term *surface.Terminal, keys map[rune]*keyPin, quit chan struct{}) {
	var once sync.Once
	stop := func() { once.Do(func() { close(quit) }) }

	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			stop()
			return
		case *tcell.EventResize:
			screen.Sync()
			term.Render()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				stop()
				continue
			}
			if ev.Key() != tcell.KeyRune {
				continue
			}
			if ev.Rune() == 'q' {
				stop()
				continue
			}
			if k, ok := keys[ev.Rune()]; ok {
				k.press(time.Now())
			}
		}
	}
}

// keyPin is a button pin fed by key presses. It reads high while held.
type keyPin struct {
	until atomic.Int64
}

func (k *keyPin) press(at time.Time) {
	k.until.Store(at.Add(keyHold).UnixNano())
}

func (k *keyPin) Read() (bool, error) {
	return time.Now().UnixNano() < k.until.Load(), nil
}
