package board

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/ivlev/pihat/internal/button"
	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/led"
	"github.com/ivlev/pihat/internal/st7789"
)

// PWM frequency for the backlight and the LED.
const pwmFrequency = 2 * physic.KiloHertz

// OpenDisplayHATMini initialises the host drivers and opens every device
// of a Pimoroni Display HAT Mini wired as cfg describes.
func OpenDisplayHATMini(cfg *config.Config) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
	}

	b := &Board{}
	if err := b.openPanel(cfg.Display); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openLED(cfg.LED); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openButtons(cfg.Buttons); err != nil {
		b.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"spi":  cfg.Display.SPI.Port,
		"size": fmt.Sprintf("%dx%d", cfg.Display.Width, cfg.Display.Height),
	}).Info("display hat mini ready")
	return b, nil
}

func (b *Board) openPanel(cfg config.Display) error {
	port, err := spireg.Open(cfg.SPI.Port)
	if err != nil {
		return &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
	}
	b.onClose(port.Close)

	conn, err := port.Connect(physic.Frequency(cfg.SPI.SpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
	}

	dc, err := pinByName("display.spi.dc_pin", cfg.SPI.DCPin)
	if err != nil {
		return err
	}
	panel, err := st7789.New(conn, dc, st7789.Config{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Rotation: cfg.SPI.Rotation,
		Invert:   cfg.SPI.Invert,
	})
	if err != nil {
		return err
	}
	if err := panel.Init(); err != nil {
		return err
	}
	b.Display = hal.Shared(panel)

	bl, err := pinByName("display.spi.backlight_pin", cfg.SPI.BacklightPin)
	if err != nil {
		return err
	}
	b.Backlight = led.NewPWM(pwmPin{pin: bl})
	if _, err := b.Backlight.Set(cfg.Backlight); err != nil {
		return err
	}
	b.onClose(b.Backlight.Disable)
	return nil
}

func (b *Board) openLED(cfg config.LED) error {
	var outs [3]led.Output
	for i, name := range []string{cfg.Red, cfg.Green, cfg.Blue} {
		p, err := pinByName("led", name)
		if err != nil {
			return err
		}
		outs[i] = pwmPin{pin: p}
	}
	b.LED = led.NewRGB(outs[0], outs[1], outs[2], cfg.ActiveLow)
	if _, err := b.LED.SetHex(cfg.Idle); err != nil {
		return err
	}
	b.onClose(b.LED.Disable)
	return nil
}

func (b *Board) openButtons(cfg config.Buttons) error {
	open := func(label, name string) (*button.Button, error) {
		p, err := pinByName("buttons."+label, name)
		if err != nil {
			return nil, err
		}
		pull := gpio.PullDown
		if cfg.ActiveLow {
			pull = gpio.PullUp
		}
		if err := p.In(pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("button %s on %s: %w", label, name, err)
		}
		opts := []button.Option{button.WithPoll(cfg.Poll)}
		if cfg.ActiveLow {
			opts = append(opts, button.ActiveLow())
		}
		return button.New(label, levelPin{pin: p}, opts...), nil
	}

	var err error
	if b.A, err = open("a", cfg.A); err != nil {
		return err
	}
	if b.B, err = open("b", cfg.B); err != nil {
		return err
	}
	if b.X, err = open("x", cfg.X); err != nil {
		return err
	}
	b.Y, err = open("y", cfg.Y)
	return err
}

func pinByName(what, name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, hal.InvalidInput(what, fmt.Sprintf("no gpio named %q", name))
	}
	return p, nil
}

// pwmPin drives a GPIO as a PWM output. Fully off and fully on are plain
// levels so pins without PWM support still work as switches.
type pwmPin struct {
	pin gpio.PinOut
}

func (p pwmPin) SetDuty(duty float64) error {
	switch {
	case duty <= 0:
		return p.pin.Out(gpio.Low)
	case duty >= 1:
		return p.pin.Out(gpio.High)
	}
	return p.pin.PWM(gpio.Duty(duty*float64(gpio.DutyMax)), pwmFrequency)
}

// levelPin reads a GPIO input for the button package.
type levelPin struct {
	pin gpio.PinIn
}

func (p levelPin) Read() (bool, error) {
	return bool(p.pin.Read()), nil
}
