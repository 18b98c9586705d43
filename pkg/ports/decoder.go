// Package ports defines interfaces for external dependencies.
package ports

import (
	"errors"
	"image"
	"io"
	"strconv"
)

var (
	// ErrNeedMoreInput is returned by DecoderBackend.ReceiveFrame when the
	// decoder has no buffered frame and must be fed another packet.
	ErrNeedMoreInput = errors.New("ports: decoder needs more input")

	// ErrEndOfStream is returned by DecoderBackend.ReceiveFrame once the
	// decoder has been flushed and every buffered frame was drained.
	ErrEndOfStream = errors.New("ports: end of stream")

	// ErrNoVideoStream is returned by BackendOpener.Open when the source
	// holds no decodable video stream.
	ErrNoVideoStream = errors.New("ports: no video stream")

	// ErrStaleFrame is returned by Convert when the frame is no longer the
	// backend's live frame.
	ErrStaleFrame = errors.New("ports: frame is no longer live")
)

// PixelFormat is the packed output layout produced by Convert.
type PixelFormat int

const (
	// PixelFormatRGB24 packs pixels as R, G, B.
	PixelFormatRGB24 PixelFormat = iota
	// PixelFormatBGR24 packs pixels as B, G, R.
	PixelFormatBGR24
)

// String returns the string representation of the pixel format.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatBGR24:
		return "bgr24"
	default:
		return "unknown"
	}
}

// ParsePixelFormat parses a string into a PixelFormat.
// Unknown values fall back to RGB24.
func ParsePixelFormat(s string) PixelFormat {
	switch s {
	case "bgr24", "bgr":
		return PixelFormatBGR24
	default:
		return PixelFormatRGB24
	}
}

// BytesPerPixel is the size of one packed output pixel.
const BytesPerPixel = 3

// Rational is a fraction, used for time bases and frame rates.
type Rational struct {
	Num int64
	Den int64
}

// Float64 returns the rational as a float, or 0 for a zero denominator.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Valid reports whether the rational is strictly positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

// StreamInfo describes the selected video stream as reported by a backend.
// Zero values mean "unknown"; the sampler derives what it needs.
type StreamInfo struct {
	StreamIndex int
	Codec       string

	// TimeBase is the number of seconds per timestamp unit.
	TimeBase  Rational
	StartTime int64
	Duration  int64 // in TimeBase units
	FrameRate Rational

	FrameCount int64

	// ContainerDurationUs is the container-level duration in microseconds.
	ContainerDurationUs int64

	Width  int
	Height int
}

// Packet is one demuxed, still encoded access unit.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Keyframe    bool
	Data        []byte

	// Native carries a backend-owned handle. It is only valid until the
	// next ReadPacket call on the same backend.
	Native any
}

// Frame is one decoded picture. It stays valid until the next
// ReceiveFrame call on the backend that produced it.
type Frame struct {
	PTS      int64
	Keyframe bool
	Width    int
	Height   int

	// Image holds the decoded pixels for backends that decode into Go
	// memory. Backends that keep native frames leave it nil.
	Image image.Image

	// Native carries a backend-owned handle.
	Native any
}

// DecoderBackend is one opened demux+decode pipeline over a byte source.
// Implementations are not safe for concurrent use.
type DecoderBackend interface {
	// Info returns the selected video stream's properties.
	Info() StreamInfo

	// SeekKeyframe moves the demuxer to the nearest keyframe at or before ts,
	// expressed in the stream time base, and resets the decoder.
	SeekKeyframe(ts int64) error

	// ReadPacket returns the next demuxed packet, or io.EOF.
	ReadPacket() (*Packet, error)

	// SendPacket feeds one packet to the decoder.
	SendPacket(pkt *Packet) error

	// Flush signals the end of input so the decoder releases buffered frames.
	Flush() error

	// ReceiveFrame drains one decoded frame without blocking on input.
	// It returns ErrNeedMoreInput or ErrEndOfStream when no frame is available.
	ReceiveFrame() (*Frame, error)

	// Convert scales the frame to width x height and writes packed pixels
	// of format pf into dst, which must hold width*height*3 bytes.
	Convert(f *Frame, dst []byte, width, height int, pf PixelFormat) error

	// Close releases every resource held by the backend.
	Close() error
}

// FrameDecoder decodes the elementary stream of one codec. Frames come out
// in presentation order. It is the codec half of container-based backends.
type FrameDecoder interface {
	// SendPacket feeds one access unit in decode order. Keyframe packets
	// start a decodable run.
	SendPacket(data []byte, pts int64, keyframe bool) error

	// ReceiveFrame returns the next decoded picture and its PTS, or
	// ErrNeedMoreInput / ErrEndOfStream.
	ReceiveFrame() (image.Image, int64, error)

	// Flush signals the end of input.
	Flush() error

	// Reset discards buffered input and output, e.g. after a seek.
	Reset() error

	Close() error
}

// BackendOpener opens a DecoderBackend over an encoded byte source.
type BackendOpener interface {
	Open(src io.ReadSeeker) (DecoderBackend, error)
}

// BackendOpenerFunc adapts a function to BackendOpener.
type BackendOpenerFunc func(src io.ReadSeeker) (DecoderBackend, error)

// Open calls f(src).
func (f BackendOpenerFunc) Open(src io.ReadSeeker) (DecoderBackend, error) {
	return f(src)
}
