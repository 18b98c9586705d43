// Package pixconv scales decoded pictures and packs them into 3-byte pixel
// buffers.
package pixconv

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/user/vidsample/pkg/ports"
)

// ErrBufferSize is returned when dst does not hold exactly width*height*3 bytes.
var ErrBufferSize = errors.New("pixconv: destination buffer size mismatch")

// Scaler names an interpolation kernel.
type Scaler string

const (
	ScalerNearest    Scaler = "nearest"
	ScalerBilinear   Scaler = "bilinear"
	ScalerCatmullRom Scaler = "catmullrom"
)

// Interpolator returns the x/image/draw kernel for s. Unknown names fall
// back to bilinear.
func (s Scaler) Interpolator() xdraw.Interpolator {
	switch Scaler(strings.ToLower(string(s))) {
	case ScalerNearest:
		return xdraw.NearestNeighbor
	case ScalerCatmullRom:
		return xdraw.CatmullRom
	default:
		return xdraw.BiLinear
	}
}

// Converter packs images into caller buffers. The zero value uses bilinear
// scaling.
type Converter struct {
	Scaler Scaler

	// scratch is reused between calls when the output size is unchanged.
	scratch *image.RGBA
}

// NewConverter creates a converter using the named scaler.
func NewConverter(s Scaler) *Converter {
	return &Converter{Scaler: s}
}

// Pack scales src to width x height and writes packed pixels into dst.
func (c *Converter) Pack(src image.Image, dst []byte, width, height int, pf ports.PixelFormat) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pixconv: invalid size %dx%d", width, height)
	}
	if len(dst) != width*height*ports.BytesPerPixel {
		return fmt.Errorf("%w: have %d, want %d", ErrBufferSize, len(dst), width*height*ports.BytesPerPixel)
	}

	b := src.Bounds()
	var rgba *image.RGBA
	if b.Dx() == width && b.Dy() == height {
		if img, ok := src.(*image.RGBA); ok {
			rgba = img
		} else {
			rgba = c.buffer(width, height)
			draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
		}
	} else {
		rgba = c.buffer(width, height)
		c.Scaler.Interpolator().Scale(rgba, rgba.Bounds(), src, b, xdraw.Src, nil)
	}

	packRGBA(rgba, dst, pf)
	return nil
}

func (c *Converter) buffer(width, height int) *image.RGBA {
	if c.scratch == nil || c.scratch.Rect.Dx() != width || c.scratch.Rect.Dy() != height {
		c.scratch = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return c.scratch
}

func packRGBA(img *image.RGBA, dst []byte, pf ports.PixelFormat) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	o := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			if pf == ports.PixelFormatBGR24 {
				dst[o], dst[o+1], dst[o+2] = row[x+2], row[x+1], row[x]
			} else {
				dst[o], dst[o+1], dst[o+2] = row[x], row[x+1], row[x+2]
			}
			o += 3
		}
	}
}

// PackRGBA packs a tightly laid out RGBA byte slice (as produced by
// ffmpeg's rawvideo rgba output) without scaling.
func PackRGBA(rgba []byte, dst []byte, pf ports.PixelFormat) error {
	if len(rgba)/4*3 != len(dst) || len(rgba)%4 != 0 {
		return fmt.Errorf("%w: have %d, want %d", ErrBufferSize, len(dst), len(rgba)/4*3)
	}
	o := 0
	for i := 0; i < len(rgba); i += 4 {
		if pf == ports.PixelFormatBGR24 {
			dst[o], dst[o+1], dst[o+2] = rgba[i+2], rgba[i+1], rgba[i]
		} else {
			dst[o], dst[o+1], dst[o+2] = rgba[i], rgba[i+1], rgba[i+2]
		}
		o += 3
	}
	return nil
}

// Unpack turns one packed frame back into an image, e.g. for previews.
func Unpack(data []byte, width, height int, pf ports.PixelFormat) (*image.RGBA, error) {
	if len(data) != width*height*ports.BytesPerPixel {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrBufferSize, len(data), width*height*ports.BytesPerPixel)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	o := 0
	for i := 0; i < len(data); i += 3 {
		if pf == ports.PixelFormatBGR24 {
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = data[i+2], data[i+1], data[i]
		} else {
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = data[i], data[i+1], data[i+2]
		}
		img.Pix[o+3] = 0xff
		o += 4
	}
	return img, nil
}
