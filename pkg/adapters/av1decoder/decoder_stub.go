//go:build !libaom

package av1decoder

import (
	"image"

	"github.com/user/vidsample/pkg/ports"
)

// Available reports whether libaom support is compiled in.
const Available = false

// Decoder is a placeholder when built without the libaom tag.
type Decoder struct{}

// New always fails with ErrUnavailable.
func New() (*Decoder, error) {
	return nil, ErrUnavailable
}

func (d *Decoder) SendPacket(data []byte, pts int64, keyframe bool) error { return ErrUnavailable }
func (d *Decoder) ReceiveFrame() (image.Image, int64, error)                { return nil, 0, ErrUnavailable }
func (d *Decoder) Flush() error                                             { return ErrUnavailable }
func (d *Decoder) Reset() error                                             { return ErrUnavailable }
func (d *Decoder) Close() error                                             { return nil }

var _ ports.FrameDecoder = (*Decoder)(nil)
