package source

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRSource renders text as a square QR code layer.
type QRSource struct {
	text string
	size int
}

func NewQRSource(text string, size int) (*QRSource, error) {
	if text == "" {
		return nil, fmt.Errorf("qr text is empty")
	}
	if size <= 0 {
		return nil, fmt.Errorf("qr size must be positive, got %d", size)
	}
	return &QRSource{text: text, size: size}, nil
}

func (q *QRSource) Name() string {
	return QRPrefix + q.text
}

func (q *QRSource) Load(ctx context.Context) (*Picture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := qrcode.New(q.text, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return single("qr", code.Image(q.size)), nil
}

func (q *QRSource) Close() error {
	return nil
}
