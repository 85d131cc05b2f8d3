// Package st7789 drives a Sitronix ST7789 TFT controller over SPI, as used
// on the Pimoroni Display HAT Mini.
package st7789

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/ivlev/pihat/internal/hal"
)

// Conn is the half-duplex part of a periph spi.Conn.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is the output used as data/command select.
type Pin interface {
	Out(l gpio.Level) error
}

const (
	cmdSWRESET  = 0x01
	cmdSLPOUT   = 0x11
	cmdINVOFF   = 0x20
	cmdINVON    = 0x21
	cmdDISPON   = 0x29
	cmdCASET    = 0x2A
	cmdRASET    = 0x2B
	cmdRAMWR    = 0x2C
	cmdMADCTL   = 0x36
	cmdCOLMOD   = 0x3A
	cmdFRMCTR2  = 0xB2
	cmdGCTRL    = 0xB7
	cmdVCOMS    = 0xBB
	cmdLCMCTRL  = 0xC0
	cmdVDVVRHEN = 0xC2
	cmdVRHS     = 0xC3
	cmdVDVS     = 0xC4
	cmdFRCTRL2  = 0xC6
	cmdPWCTRL1  = 0xD0
	cmdGMCTRP1  = 0xE0
	cmdGMCTRN1  = 0xE1
)

// Linux spidev refuses larger transfers unless bufsiz is raised.
const maxTransfer = 4096

// Config describes the panel. Width and Height are the visible size after
// rotation.
type Config struct {
	Width    int
	Height   int
	Rotation int // degrees, multiple of 90
	Invert   bool
	OffsetX  int
	OffsetY  int
}

type Device struct {
	conn  Conn
	dc    Pin
	cfg   Config
	buf   []byte
	sleep func(time.Duration)
}

func New(conn Conn, dc Pin, cfg Config) (*Device, error) {
	if conn == nil || dc == nil {
		return nil, &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: fmt.Errorf("st7789: spi connection and dc pin are required")}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, hal.InvalidInput("st7789 size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Rotation%90 != 0 {
		return nil, hal.InvalidInput("st7789 rotation", fmt.Sprintf("%d is not a multiple of 90", cfg.Rotation))
	}
	return &Device{conn: conn, dc: dc, cfg: cfg, sleep: time.Sleep}, nil
}

// madctl maps a rotation onto the memory access control register. The
// panel is portrait, so landscape sizes add a quarter turn.
func (d *Device) madctl() byte {
	rot := ((d.cfg.Rotation % 360) + 360) % 360
	if d.cfg.Width > d.cfg.Height {
		rot = (rot + 90) % 360
	}
	switch rot {
	case 90:
		return 0x60
	case 180:
		return 0xC0
	case 270:
		return 0xA0
	}
	return 0x00
}

// Init resets the controller and turns the panel on.
func (d *Device) Init() error {
	steps := []struct {
		cmd   byte
		data  []byte
		pause time.Duration
	}{
		{cmdSWRESET, nil, 150 * time.Millisecond},
		{cmdMADCTL, []byte{d.madctl()}, 0},
		{cmdFRMCTR2, []byte{0x0C, 0x0C, 0x00, 0x33, 0x33}, 0},
		{cmdCOLMOD, []byte{0x05}, 0},
		{cmdGCTRL, []byte{0x14}, 0},
		{cmdVCOMS, []byte{0x37}, 0},
		{cmdLCMCTRL, []byte{0x2C}, 0},
		{cmdVDVVRHEN, []byte{0x01}, 0},
		{cmdVRHS, []byte{0x12}, 0},
		{cmdVDVS, []byte{0x20}, 0},
		{cmdPWCTRL1, []byte{0xA4, 0xA1}, 0},
		{cmdFRCTRL2, []byte{0x0F}, 0},
		{cmdGMCTRP1, []byte{0xD0, 0x04, 0x0D, 0x11, 0x13, 0x2B, 0x3F, 0x54, 0x4C, 0x18, 0x0D, 0x0B, 0x1F, 0x23}, 0},
		{cmdGMCTRN1, []byte{0xD0, 0x04, 0x0C, 0x11, 0x13, 0x2C, 0x3F, 0x44, 0x51, 0x2F, 0x1F, 0x1F, 0x20, 0x23}, 0},
		{d.inversionCmd(d.cfg.Invert), nil, 0},
		{cmdSLPOUT, nil, 120 * time.Millisecond},
		{cmdDISPON, nil, 100 * time.Millisecond},
	}

	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
		}
		if s.pause > 0 {
			d.sleep(s.pause)
		}
	}
	return nil
}

func (d *Device) inversionCmd(on bool) byte {
	if on {
		return cmdINVON
	}
	return cmdINVOFF
}

// SetInversion toggles colour inversion.
func (d *Device) SetInversion(on bool) error {
	if err := d.command(d.inversionCmd(on)); err != nil {
		return hal.DisplayInterface(err)
	}
	return nil
}

func (d *Device) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.cfg.Width, d.cfg.Height)
}

// Draw sends the part of frame that falls on the panel.
func (d *Device) Draw(frame image.Image, at image.Point) error {
	fb := frame.Bounds()
	r := fb.Sub(fb.Min).Add(at).Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}

	if err := d.window(r); err != nil {
		return hal.DisplayOutput(err)
	}

	n := r.Dx() * r.Dy() * 2
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	buf := d.buf[:n]
	encodeRGB565(buf, frame, r.Min.Sub(at).Add(fb.Min), r.Dx(), r.Dy())

	if err := d.data(buf); err != nil {
		return hal.DisplayOutput(err)
	}
	return nil
}

// Fill paints the whole panel with c.
func (d *Device) Fill(c color.Color) error {
	return d.Draw(image.NewUniform(c), image.Point{})
}

func (d *Device) window(r image.Rectangle) error {
	x0, x1 := r.Min.X+d.cfg.OffsetX, r.Max.X-1+d.cfg.OffsetX
	y0, y1 := r.Min.Y+d.cfg.OffsetY, r.Max.Y-1+d.cfg.OffsetY
	if err := d.command(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	return d.command(cmdRAMWR)
}

func (d *Device) command(cmd byte, args ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return d.data(args)
}

func (d *Device) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := min(len(b), maxTransfer)
		if err := d.conn.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// encodeRGB565 writes w x h pixels of img starting at src as big-endian
// RGB565.
func encodeRGB565(dst []byte, img image.Image, src image.Point, w, h int) {
	i := 0
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			off := rgba.PixOffset(src.X, src.Y+y)
			row := rgba.Pix[off : off+w*4]
			for x := 0; x < w*4; x += 4 {
				v := rgb565(row[x], row[x+1], row[x+2])
				dst[i], dst[i+1] = byte(v>>8), byte(v)
				i += 2
			}
		}
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(src.X+x, src.Y+y)).(color.RGBA)
			v := rgb565(c.R, c.G, c.B)
			dst[i], dst[i+1] = byte(v>>8), byte(v)
			i += 2
		}
	}
}

func rgb565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}
