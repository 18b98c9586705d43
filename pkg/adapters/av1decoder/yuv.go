// Package av1decoder decodes AV1 temporal units with libaom.
//
// The cgo decoder is compiled with the libaom build tag. Without it New
// returns ErrUnavailable and callers fall back to another backend.
package av1decoder

import (
	"errors"
	"image"
)

var (
	// ErrUnavailable is returned when libaom support is not compiled in.
	ErrUnavailable = errors.New("av1decoder: built without libaom")

	// ErrDecodeFailed is returned when libaom rejects input.
	ErrDecodeFailed = errors.New("av1decoder: decode failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("av1decoder: decoder closed")
)

type decoded struct {
	img *image.RGBA
	pts int64
}

// yuvToRGB converts one BT.601 limited-range sample.
func yuvToRGB(yv, uv, vv uint8) (r, g, b uint8) {
	c := int(yv) - 16
	d := int(uv) - 128
	e := int(vv) - 128

	r = uint8(clamp((298*c + 409*e + 128) >> 8))
	g = uint8(clamp((298*c - 100*d - 208*e + 128) >> 8))
	b = uint8(clamp((298*c + 516*d + 128) >> 8))
	return r, g, b
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
