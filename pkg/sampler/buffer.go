package sampler

import (
	"fmt"
	"math"

	"github.com/user/vidsample/pkg/ports"
)

// Buffer is the output of a sampling request: Frames pictures of
// Width x Height packed pixels, contiguous and in request order.
type Buffer struct {
	Data   []byte
	Frames int
	Width  int
	Height int
	Format ports.PixelFormat
}

// MaxBufferBytes bounds a single frame buffer.
const MaxBufferBytes = 4 << 30

// CheckBufferSize rejects dimensions whose buffer would be negative,
// overflow int or exceed MaxBufferBytes.
func CheckBufferSize(frames, width, height int) error {
	if frames < 0 || width < 0 || height < 0 {
		return fmt.Errorf("%w: negative buffer size %d x %dx%d", ErrInvalidRequest, frames, width, height)
	}
	limit := int64(min(MaxBufferBytes, math.MaxInt)) / ports.BytesPerPixel
	n := int64(1)
	for _, d := range []int{width, height, frames} {
		if d == 0 {
			return nil
		}
		if int64(d) > limit/n {
			return fmt.Errorf("%w: buffer of %d frames at %dx%d exceeds %d bytes", ErrInvalidRequest, frames, width, height, int64(MaxBufferBytes))
		}
		n *= int64(d)
	}
	return nil
}

// NewBuffer allocates a zero-filled buffer. Callers check the size with
// CheckBufferSize first.
func NewBuffer(frames, width, height int, pf ports.PixelFormat) *Buffer {
	return &Buffer{
		Data:   make([]byte, frames*width*height*ports.BytesPerPixel),
		Frames: frames,
		Width:  width,
		Height: height,
		Format: pf,
	}
}

// FrameSize returns the number of bytes per frame.
func (b *Buffer) FrameSize() int {
	return b.Width * b.Height * ports.BytesPerPixel
}

// Slot returns the bytes of frame i.
func (b *Buffer) Slot(i int) []byte {
	n := b.FrameSize()
	return b.Data[i*n : (i+1)*n]
}

// ResolveSize applies the geometry rules: 0x0 keeps the native size, a
// single zero is derived from the native aspect ratio.
func ResolveSize(nativeWidth, nativeHeight, width, height int) (int, int, error) {
	if width < 0 || height < 0 {
		return 0, 0, fmt.Errorf("%w: negative output size %dx%d", ErrInvalidRequest, width, height)
	}
	switch {
	case width == 0 && height == 0:
		return nativeWidth, nativeHeight, nil
	case width == 0:
		if nativeHeight <= 0 {
			return 0, 0, fmt.Errorf("%w: cannot derive width without native size", ErrInvalidRequest)
		}
		w := int(math.Round(float64(height) * float64(nativeWidth) / float64(nativeHeight)))
		return max(w, 1), height, nil
	case height == 0:
		if nativeWidth <= 0 {
			return 0, 0, fmt.Errorf("%w: cannot derive height without native size", ErrInvalidRequest)
		}
		h := int(math.Round(float64(width) * float64(nativeHeight) / float64(nativeWidth)))
		return width, max(h, 1), nil
	default:
		return width, height, nil
	}
}
