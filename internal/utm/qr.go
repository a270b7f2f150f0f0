package utm

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPNG encodes a link as a QR code PNG. Size is the image width and
// height in pixels; values below 64 are raised to 256.
func QRPNG(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, fmt.Errorf("link is empty")
	}
	if size < 64 {
		size = 256
	}

	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
