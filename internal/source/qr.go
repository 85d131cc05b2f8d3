package source

import (
	"image"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ivlev/pihat/internal/hal"
)

// QRSource is a single page holding a QR code, for showing a URL or a
// message on the panel.
type QRSource struct {
	code *qrcode.QRCode
}

func NewQRSource(text string) (*QRSource, error) {
	if text == "" {
		return nil, hal.InvalidInput("qr", "empty text")
	}
	code, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return &QRSource{code: code}, nil
}

func (q *QRSource) PageCount() int { return 1 }

// GetPageDimensions reports the module count including the quiet zone.
func (q *QRSource) GetPageDimensions(index int) (float64, float64, error) {
	if err := checkIndex(index, 1); err != nil {
		return 0, 0, err
	}
	n := float64(len(q.code.Bitmap()))
	return n, n, nil
}

// RenderPage draws the code at dpi/10 pixels per module.
func (q *QRSource) RenderPage(index int, dpi int) (image.Image, error) {
	if err := checkIndex(index, 1); err != nil {
		return nil, err
	}
	scale := dpi / 10
	if scale < 1 {
		scale = 1
	}
	return q.code.Image(len(q.code.Bitmap()) * scale), nil
}

func (q *QRSource) Close() error { return nil }
