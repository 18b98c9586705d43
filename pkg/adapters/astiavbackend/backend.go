//go:build astiav

// Package astiavbackend implements ports.DecoderBackend on libav through
// go-astiav. It handles every container and codec the linked FFmpeg does.
package astiavbackend

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/asticode/go-astiav"

	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

const ioBufferSize = 32 * 1024

// ErrClosed is returned after Close.
var ErrClosed = errors.New("astiavbackend: backend closed")

// Opener implements ports.BackendOpener.
type Opener struct {
	Scaler pixconv.Scaler
}

// Backend is one opened libav demux and decode pipeline.
type Backend struct {
	src    io.ReadSeeker
	ioCtx  *astiav.IOContext
	fc     *astiav.FormatContext
	stream *astiav.Stream
	cc     *astiav.CodecContext

	pkt   *astiav.Packet
	frame *astiav.Frame
	live  *ports.Frame
	keys  map[int64]bool

	sws    *astiav.SoftwareScaleContext
	swsKey swsKey
	dst    *astiav.Frame
	flags  astiav.SoftwareScaleContextFlags

	closed bool
}

type swsKey struct {
	srcW, srcH int
	srcFmt     astiav.PixelFormat
	dstW, dstH int
	dstFmt     astiav.PixelFormat
}

// Open reads src through a custom IO context and opens the first video
// stream's decoder.
func (o *Opener) Open(src io.ReadSeeker) (_ ports.DecoderBackend, err error) {
	b := &Backend{
		src:   src,
		keys:  make(map[int64]bool),
		flags: scaleFlags(o.Scaler),
	}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("astiavbackend: seek: %w", err)
	}
	b.ioCtx, err = astiav.AllocIOContext(ioBufferSize, false, b.read, b.seek, nil)
	if err != nil {
		return nil, fmt.Errorf("astiavbackend: alloc io context: %w", err)
	}
	if b.fc = astiav.AllocFormatContext(); b.fc == nil {
		return nil, errors.New("astiavbackend: alloc format context failed")
	}
	b.fc.SetPb(b.ioCtx)

	if err := b.fc.OpenInput("", nil, nil); err != nil {
		return nil, fmt.Errorf("astiavbackend: open input: %w", err)
	}
	if err := b.fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("astiavbackend: find stream info: %w", err)
	}

	for _, s := range b.fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			b.stream = s
			break
		}
	}
	if b.stream == nil {
		return nil, fmt.Errorf("astiavbackend: %w", ports.ErrNoVideoStream)
	}

	codec := astiav.FindDecoder(b.stream.CodecParameters().CodecID())
	if codec == nil {
		return nil, fmt.Errorf("astiavbackend: no decoder for codec %s", b.stream.CodecParameters().CodecID())
	}
	if b.cc = astiav.AllocCodecContext(codec); b.cc == nil {
		return nil, errors.New("astiavbackend: alloc codec context failed")
	}
	if err := b.stream.CodecParameters().ToCodecContext(b.cc); err != nil {
		return nil, fmt.Errorf("astiavbackend: codec parameters: %w", err)
	}
	b.cc.SetFramerate(b.fc.GuessFrameRate(b.stream, nil))
	if err := b.cc.Open(codec, nil); err != nil {
		return nil, fmt.Errorf("astiavbackend: open codec: %w", err)
	}

	b.pkt = astiav.AllocPacket()
	b.frame = astiav.AllocFrame()
	b.dst = astiav.AllocFrame()
	return b, nil
}

func (b *Backend) read(p []byte) (int, error) {
	n, err := b.src.Read(p)
	if n > 0 {
		return n, nil
	}
	if errors.Is(err, io.EOF) || (err == nil && n == 0) {
		return 0, astiav.ErrEof
	}
	return 0, err
}

func (b *Backend) seek(offset int64, whence int) (int64, error) {
	return b.src.Seek(offset, whence)
}

func scaleFlags(s pixconv.Scaler) astiav.SoftwareScaleContextFlags {
	switch s {
	case pixconv.ScalerNearest:
		return astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagPoint)
	case pixconv.ScalerCatmullRom:
		return astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic)
	default:
		return astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear)
	}
}

func rational(r astiav.Rational) ports.Rational {
	return ports.Rational{Num: int64(r.Num()), Den: int64(r.Den())}
}

// Info implements ports.DecoderBackend.
func (b *Backend) Info() ports.StreamInfo {
	s := b.stream
	par := s.CodecParameters()
	info := ports.StreamInfo{
		StreamIndex: s.Index(),
		Codec:       par.CodecID().Name(),
		TimeBase:    rational(s.TimeBase()),
		Duration:    s.Duration(),
		FrameRate:   rational(s.AvgFrameRate()),
		FrameCount:  s.NbFrames(),
		Width:       par.Width(),
		Height:      par.Height(),
	}
	if start := s.StartTime(); start != math.MinInt64 {
		info.StartTime = start
	}
	if info.Duration == math.MinInt64 {
		info.Duration = 0
	}
	if d := b.fc.Duration(); d > 0 {
		info.ContainerDurationUs = d
	}
	return info
}

// SeekKeyframe implements ports.DecoderBackend.
func (b *Backend) SeekKeyframe(ts int64) error {
	if b.closed {
		return ErrClosed
	}
	flags := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if err := b.fc.SeekFrame(b.stream.Index(), ts, flags); err != nil {
		return fmt.Errorf("astiavbackend: seek frame: %w", err)
	}
	b.cc.FlushBuffers()
	b.live = nil
	return nil
}

// ReadPacket implements ports.DecoderBackend. The packet stays valid until
// the next call.
func (b *Backend) ReadPacket() (*ports.Packet, error) {
	if b.closed {
		return nil, ErrClosed
	}
	b.pkt.Unref()
	if err := b.fc.ReadFrame(b.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("astiavbackend: read frame: %w", err)
	}

	key := b.pkt.Flags().Has(astiav.PacketFlagKey)
	if key && b.pkt.StreamIndex() == b.stream.Index() {
		b.keys[b.pkt.Pts()] = true
	}
	return &ports.Packet{
		StreamIndex: b.pkt.StreamIndex(),
		PTS:         b.pkt.Pts(),
		DTS:         b.pkt.Dts(),
		Duration:    b.pkt.Duration(),
		Keyframe:    key,
		Native:      b.pkt,
	}, nil
}

// SendPacket implements ports.DecoderBackend.
func (b *Backend) SendPacket(pkt *ports.Packet) error {
	if b.closed {
		return ErrClosed
	}
	p, ok := pkt.Native.(*astiav.Packet)
	if !ok || p != b.pkt {
		return errors.New("astiavbackend: packet not read from this backend")
	}
	if err := b.cc.SendPacket(p); err != nil {
		return fmt.Errorf("astiavbackend: send packet: %w", err)
	}
	return nil
}

// Flush implements ports.DecoderBackend.
func (b *Backend) Flush() error {
	if b.closed {
		return ErrClosed
	}
	if err := b.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("astiavbackend: flush: %w", err)
	}
	return nil
}

// ReceiveFrame implements ports.DecoderBackend.
func (b *Backend) ReceiveFrame() (*ports.Frame, error) {
	if b.closed {
		return nil, ErrClosed
	}
	b.frame.Unref()
	if err := b.cc.ReceiveFrame(b.frame); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return nil, ports.ErrNeedMoreInput
		case errors.Is(err, astiav.ErrEof):
			return nil, ports.ErrEndOfStream
		}
		return nil, fmt.Errorf("astiavbackend: receive frame: %w", err)
	}

	pts := b.frame.Pts()
	if pts == math.MinInt64 {
		pts = b.frame.PktDts()
	}
	b.live = &ports.Frame{
		PTS:      pts,
		Keyframe: b.keys[pts],
		Width:    b.frame.Width(),
		Height:   b.frame.Height(),
		Native:   b.frame,
	}
	return b.live, nil
}

// Convert implements ports.DecoderBackend with swscale.
func (b *Backend) Convert(f *ports.Frame, dst []byte, width, height int, pf ports.PixelFormat) error {
	if b.closed {
		return ErrClosed
	}
	if f == nil || f != b.live {
		return ports.ErrStaleFrame
	}
	if len(dst) != width*height*3 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", pixconv.ErrBufferSize, len(dst), width, height)
	}

	dstFmt := astiav.PixelFormatRgb24
	if pf == ports.PixelFormatBGR24 {
		dstFmt = astiav.PixelFormatBgr24
	}
	key := swsKey{
		srcW: b.frame.Width(), srcH: b.frame.Height(), srcFmt: b.frame.PixelFormat(),
		dstW: width, dstH: height, dstFmt: dstFmt,
	}
	if b.sws == nil || key != b.swsKey {
		if err := b.resetScaler(key); err != nil {
			return err
		}
	}

	if err := b.sws.ScaleFrame(b.frame, b.dst); err != nil {
		return fmt.Errorf("astiavbackend: scale frame: %w", err)
	}
	packed, err := b.dst.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("astiavbackend: frame bytes: %w", err)
	}
	copy(dst, packed)
	return nil
}

func (b *Backend) resetScaler(k swsKey) error {
	if b.sws != nil {
		b.sws.Free()
		b.sws = nil
	}
	b.dst.Unref()
	b.dst.SetWidth(k.dstW)
	b.dst.SetHeight(k.dstH)
	b.dst.SetPixelFormat(k.dstFmt)
	if err := b.dst.AllocBuffer(1); err != nil {
		return fmt.Errorf("astiavbackend: alloc frame buffer: %w", err)
	}

	sws, err := astiav.CreateSoftwareScaleContext(k.srcW, k.srcH, k.srcFmt, k.dstW, k.dstH, k.dstFmt, b.flags)
	if err != nil {
		return fmt.Errorf("astiavbackend: create scale context: %w", err)
	}
	b.sws = sws
	b.swsKey = k
	return nil
}

// Close implements ports.DecoderBackend.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.live = nil
	if b.sws != nil {
		b.sws.Free()
	}
	if b.dst != nil {
		b.dst.Free()
	}
	if b.frame != nil {
		b.frame.Free()
	}
	if b.pkt != nil {
		b.pkt.Free()
	}
	if b.cc != nil {
		b.cc.Free()
	}
	if b.fc != nil {
		b.fc.CloseInput()
		b.fc.Free()
	}
	if b.ioCtx != nil {
		b.ioCtx.Free()
	}
	return nil
}

var (
	_ ports.DecoderBackend = (*Backend)(nil)
	_ ports.BackendOpener  = (*Opener)(nil)
)
