package service

import (
	qrcode "github.com/skip2/go-qrcode"
)

// QR image size bounds in pixels
const (
	minQRImageSize     = 128
	maxQRImageSize     = 1024
	defaultQRImageSize = 512
)

// QRImage renders a payload as a PNG for printed checkpoint material. Size
// is clamped to sane print bounds; zero selects the default.
func QRImage(payload string, size int) ([]byte, error) {
	if size == 0 {
		size = defaultQRImageSize
	}
	if size < minQRImageSize {
		size = minQRImageSize
	}
	if size > maxQRImageSize {
		size = maxQRImageSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
