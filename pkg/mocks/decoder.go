package mocks

import (
	"fmt"
	"image"

	"github.com/user/vidsample/pkg/ports"
)

// PayloadDecoder is a ports.FrameDecoder for files built by FragmentedMP4.
// Sample i decodes to a solid FrameColor(i) picture.
type PayloadDecoder struct {
	Width, Height int

	queue   []payloadFrame
	flushed bool
	resets  int
	closed  bool
}

type payloadFrame struct {
	idx int
	pts int64
}

// SendPacket implements ports.FrameDecoder.
func (d *PayloadDecoder) SendPacket(data []byte, pts int64, keyframe bool) error {
	if d.closed {
		return ErrClosed
	}
	if len(data) != 3 || data[2] != 0xa1 {
		return fmt.Errorf("mocks: not a synthetic sample: %x", data)
	}
	d.queue = append(d.queue, payloadFrame{idx: int(data[0]) | int(data[1])<<8, pts: pts})
	return nil
}

// ReceiveFrame implements ports.FrameDecoder.
func (d *PayloadDecoder) ReceiveFrame() (image.Image, int64, error) {
	if d.closed {
		return nil, 0, ErrClosed
	}
	if len(d.queue) == 0 {
		if d.flushed {
			return nil, 0, ports.ErrEndOfStream
		}
		return nil, 0, ports.ErrNeedMoreInput
	}
	f := d.queue[0]
	d.queue = d.queue[1:]

	img := image.NewRGBA(image.Rect(0, 0, d.Width, d.Height))
	c := FrameColor(f.idx)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, f.pts, nil
}

// Flush implements ports.FrameDecoder.
func (d *PayloadDecoder) Flush() error {
	d.flushed = true
	return nil
}

// Reset implements ports.FrameDecoder.
func (d *PayloadDecoder) Reset() error {
	d.queue = nil
	d.flushed = false
	d.resets++
	return nil
}

// Close implements ports.FrameDecoder.
func (d *PayloadDecoder) Close() error {
	d.closed = true
	return nil
}

// Resets returns the number of Reset calls.
func (d *PayloadDecoder) Resets() int {
	return d.resets
}

// Closed reports whether Close was called.
func (d *PayloadDecoder) Closed() bool {
	return d.closed
}

var _ ports.FrameDecoder = (*PayloadDecoder)(nil)
