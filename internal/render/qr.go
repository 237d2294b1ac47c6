// Package render turns ticket tokens into scannable images.
package render

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 512

// QR renders PNG QR codes with medium error correction.
type QR struct{}

func NewQR() *QR {
	return &QR{}
}

func (QR) Render(ctx context.Context, token string, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("render: empty token")
	}
	if size <= 0 {
		size = DefaultSize
	}

	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return png, nil
}
