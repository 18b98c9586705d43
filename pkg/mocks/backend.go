package mocks

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

// ErrClosed is returned by Backend methods after Close.
var ErrClosed = errors.New("mocks: backend closed")

// BackendConfig describes the synthetic stream produced by Backend.
// Zero values select a 25 fps, 1/12800 time base, 8x6 stream.
type BackendConfig struct {
	Frames    int
	FrameRate ports.Rational
	TimeBase  ports.Rational
	StartTime int64
	Width     int
	Height    int

	// Timestamps overrides the generated constant-rate PTS values.
	// Its length must equal Frames.
	Timestamps []int64

	// KeyframeInterval marks every n-th frame as a keyframe (0 = every frame).
	KeyframeInterval int

	// ReorderDelay is the number of packets the decoder holds back before
	// emitting a frame, like B-frame reordering latency.
	ReorderDelay int

	// DuplicateFirst makes the decoder emit the first frame after every
	// (re)start twice with the same PTS.
	DuplicateFirst bool

	// InterleaveAudio inserts a packet of stream 1 after every video packet.
	InterleaveAudio bool

	// HideFrameCount and HideDuration blank the stream-level metadata so the
	// caller must derive it from ContainerDurationUs.
	HideFrameCount   bool
	HideDuration     bool
	HideFrameRate    bool
	HideContainerDur bool

	// DecodeErrAt fails SendPacket for the packet of this frame (when > 0).
	DecodeErrAt int
	SeekErr     error

	// SeekLandsLate moves every seek past the chosen keyframe by this many
	// frames, like demuxers that seek on DTS. Seeks to frame 0 are exact.
	SeekLandsLate int
}

func (c BackendConfig) withDefaults() BackendConfig {
	if !c.FrameRate.Valid() {
		c.FrameRate = ports.Rational{Num: 25, Den: 1}
	}
	if !c.TimeBase.Valid() {
		c.TimeBase = ports.Rational{Num: 1, Den: 12800}
	}
	if c.Width == 0 {
		c.Width = 8
	}
	if c.Height == 0 {
		c.Height = 6
	}
	return c
}

// FrameDuration returns the constant frame duration in time base units.
func (c BackendConfig) FrameDuration() float64 {
	c = c.withDefaults()
	return float64(c.TimeBase.Den*c.FrameRate.Den) / float64(c.TimeBase.Num*c.FrameRate.Num)
}

// PTS returns the presentation timestamp of frame i.
func (c BackendConfig) PTS(i int) int64 {
	if c.Timestamps != nil {
		return c.Timestamps[i]
	}
	c = c.withDefaults()
	return c.StartTime + int64(math.Round(float64(i)*c.FrameDuration()))
}

// Backend is a deterministic in-memory ports.DecoderBackend. Every frame is
// a solid color that encodes its index, see FrameIndex.
type Backend struct {
	cfg     BackendConfig
	packets []ports.Packet

	pos     int
	queue   []int
	flushed bool
	emitted int
	dup     int
	live    *ports.Frame
	closed  bool

	mu        sync.Mutex
	seekCalls []int64
	decoded   int
}

// NewBackend creates a synthetic backend.
func NewBackend(cfg BackendConfig) *Backend {
	cfg = cfg.withDefaults()
	b := &Backend{cfg: cfg, dup: -1}
	for i := 0; i < cfg.Frames; i++ {
		b.packets = append(b.packets, ports.Packet{
			StreamIndex: 0,
			PTS:         cfg.PTS(i),
			DTS:         cfg.PTS(i),
			Keyframe:    b.isKeyframe(i),
			Native:      i,
		})
		if cfg.InterleaveAudio {
			b.packets = append(b.packets, ports.Packet{StreamIndex: 1, PTS: cfg.PTS(i)})
		}
	}
	return b
}

func (b *Backend) isKeyframe(i int) bool {
	return b.cfg.KeyframeInterval <= 1 || i%b.cfg.KeyframeInterval == 0
}

// Info implements ports.DecoderBackend.
func (b *Backend) Info() ports.StreamInfo {
	cfg := b.cfg
	info := ports.StreamInfo{
		StreamIndex: 0,
		Codec:       "mock",
		TimeBase:    cfg.TimeBase,
		StartTime:   cfg.StartTime,
		FrameRate:   cfg.FrameRate,
		FrameCount:  int64(cfg.Frames),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}
	total := float64(cfg.Frames) * cfg.FrameDuration()
	info.Duration = int64(math.Round(total))
	if !cfg.HideContainerDur {
		info.ContainerDurationUs = int64(math.Round(total * cfg.TimeBase.Float64() * 1e6))
	}
	if cfg.HideFrameCount {
		info.FrameCount = 0
	}
	if cfg.HideDuration {
		info.Duration = 0
	}
	if cfg.HideFrameRate {
		info.FrameRate = ports.Rational{}
	}
	return info
}

// SeekKeyframe implements ports.DecoderBackend. It positions on the last
// keyframe whose PTS is at or before ts.
func (b *Backend) SeekKeyframe(ts int64) error {
	if b.closed {
		return ErrClosed
	}
	b.mu.Lock()
	b.seekCalls = append(b.seekCalls, ts)
	b.mu.Unlock()
	if b.cfg.SeekErr != nil {
		return b.cfg.SeekErr
	}

	target := 0
	for i := 0; i < b.cfg.Frames; i++ {
		if b.cfg.PTS(i) > ts {
			break
		}
		if b.isKeyframe(i) {
			target = i
		}
	}
	if target > 0 {
		target = min(target+b.cfg.SeekLandsLate, b.cfg.Frames-1)
	}
	b.pos = 0
	for b.pos < len(b.packets) {
		p := b.packets[b.pos]
		if p.StreamIndex == 0 && p.Native.(int) == target {
			break
		}
		b.pos++
	}
	b.queue = nil
	b.flushed = false
	b.emitted = 0
	b.dup = -1
	b.live = nil
	return nil
}

// ReadPacket implements ports.DecoderBackend.
func (b *Backend) ReadPacket() (*ports.Packet, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.pos >= len(b.packets) {
		return nil, io.EOF
	}
	p := b.packets[b.pos]
	b.pos++
	return &p, nil
}

// SendPacket implements ports.DecoderBackend.
func (b *Backend) SendPacket(pkt *ports.Packet) error {
	if b.closed {
		return ErrClosed
	}
	if pkt.StreamIndex != 0 {
		return fmt.Errorf("mocks: packet of stream %d sent to video decoder", pkt.StreamIndex)
	}
	idx := pkt.Native.(int)
	if b.cfg.DecodeErrAt > 0 && idx == b.cfg.DecodeErrAt {
		return fmt.Errorf("mocks: corrupt packet %d", idx)
	}
	b.queue = append(b.queue, idx)
	return nil
}

// Flush implements ports.DecoderBackend.
func (b *Backend) Flush() error {
	if b.closed {
		return ErrClosed
	}
	b.flushed = true
	return nil
}

// ReceiveFrame implements ports.DecoderBackend.
func (b *Backend) ReceiveFrame() (*ports.Frame, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.dup >= 0 {
		idx := b.dup
		b.dup = -1
		return b.emit(idx), nil
	}
	if len(b.queue) > b.cfg.ReorderDelay || (b.flushed && len(b.queue) > 0) {
		idx := b.queue[0]
		b.queue = b.queue[1:]
		if b.cfg.DuplicateFirst && b.emitted == 0 {
			b.dup = idx
		}
		b.emitted++
		b.mu.Lock()
		b.decoded++
		b.mu.Unlock()
		return b.emit(idx), nil
	}
	if b.flushed {
		return nil, ports.ErrEndOfStream
	}
	return nil, ports.ErrNeedMoreInput
}

func (b *Backend) emit(idx int) *ports.Frame {
	img := image.NewRGBA(image.Rect(0, 0, b.cfg.Width, b.cfg.Height))
	c := FrameColor(idx)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	b.live = &ports.Frame{
		PTS:      b.cfg.PTS(idx),
		Keyframe: b.isKeyframe(idx),
		Width:    b.cfg.Width,
		Height:   b.cfg.Height,
		Image:    img,
		Native:   idx,
	}
	return b.live
}

// Convert implements ports.DecoderBackend. Only the most recently received
// frame may be converted.
func (b *Backend) Convert(f *ports.Frame, dst []byte, width, height int, pf ports.PixelFormat) error {
	if b.closed {
		return ErrClosed
	}
	if f == nil || f != b.live {
		return ports.ErrStaleFrame
	}
	c := pixconv.NewConverter(pixconv.ScalerNearest)
	return c.Pack(f.Image, dst, width, height, pf)
}

// Close implements ports.DecoderBackend.
func (b *Backend) Close() error {
	b.closed = true
	b.live = nil
	return nil
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	return b.closed
}

// SeekCalls returns the timestamps passed to SeekKeyframe.
func (b *Backend) SeekCalls() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.seekCalls...)
}

// Decoded returns the number of frames the decoder produced, excluding
// duplicates.
func (b *Backend) Decoded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decoded
}

// FrameColor is the solid color of synthetic frame idx.
func FrameColor(idx int) color.RGBA {
	return color.RGBA{R: uint8(idx % 256), G: uint8(idx / 256 % 256), B: 0x5a, A: 0xff}
}

// FrameIndex recovers the synthetic frame index from one RGB24 pixel.
func FrameIndex(rgb []byte) int {
	return int(rgb[0]) + int(rgb[1])*256
}

// Opener opens synthetic backends and remembers the last one.
type Opener struct {
	Config BackendConfig
	Err    error

	mu   sync.Mutex
	last *Backend
}

// Open implements ports.BackendOpener. The source is ignored.
func (o *Opener) Open(src io.ReadSeeker) (ports.DecoderBackend, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	b := NewBackend(o.Config)
	o.mu.Lock()
	o.last = b
	o.mu.Unlock()
	return b, nil
}

// Last returns the most recently opened backend.
func (o *Opener) Last() *Backend {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

var (
	_ ports.DecoderBackend = (*Backend)(nil)
	_ ports.BackendOpener  = (*Opener)(nil)
)
