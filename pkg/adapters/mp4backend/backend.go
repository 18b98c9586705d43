// Package mp4backend implements ports.DecoderBackend for MP4 files by
// pairing the mp4demux sample index with a codec-specific frame decoder.
package mp4backend

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/vidsample/pkg/adapters/codecdetect"
	"github.com/user/vidsample/pkg/adapters/mp4demux"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

var (
	// ErrUnsupportedCodec is returned when no decoder is registered for the
	// track's codec.
	ErrUnsupportedCodec = errors.New("mp4backend: unsupported codec")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mp4backend: backend closed")
)

// DecoderFactory creates a frame decoder for an indexed track.
type DecoderFactory func(track *mp4demux.Track) (ports.FrameDecoder, error)

// Opener opens MP4 sources. It implements ports.BackendOpener.
type Opener struct {
	// Decoders maps a codec to the factory of its frame decoder.
	Decoders map[codecdetect.Codec]DecoderFactory

	// Scaler selects the kernel used by Convert.
	Scaler pixconv.Scaler
}

// Open indexes src and creates a decoder for its video track.
func (o *Opener) Open(src io.ReadSeeker) (ports.DecoderBackend, error) {
	demux, err := mp4demux.Open(src)
	if err != nil {
		return nil, err
	}
	track := demux.Track()

	factory, ok := o.Decoders[track.Codec]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, track.Codec)
	}
	dec, err := factory(track)
	if err != nil {
		return nil, fmt.Errorf("mp4backend: create %s decoder: %w", track.Codec, err)
	}

	b := &Backend{
		demux: demux,
		track: track,
		dec:   dec,
		conv:  pixconv.NewConverter(o.Scaler),
		sync:  make(map[int64]bool, track.SyncCount()),
	}
	for _, s := range track.Samples {
		if s.Sync {
			b.sync[s.PTS] = true
		}
	}
	return b, nil
}

// Backend decodes the video track of one MP4 file.
type Backend struct {
	demux *mp4demux.Demuxer
	track *mp4demux.Track
	dec   ports.FrameDecoder
	conv  *pixconv.Converter

	// sync holds the PTS of sync samples.
	sync   map[int64]bool
	live   *ports.Frame
	closed bool
}

// Info implements ports.DecoderBackend.
func (b *Backend) Info() ports.StreamInfo {
	t := b.track
	return ports.StreamInfo{
		StreamIndex:         t.Index,
		Codec:               string(t.Codec),
		TimeBase:            ports.Rational{Num: 1, Den: int64(t.Timescale)},
		StartTime:           t.StartTime(),
		Duration:            t.Duration,
		FrameRate:           t.FrameRate(),
		FrameCount:          int64(len(t.Samples)),
		ContainerDurationUs: t.MovieDurationUs,
		Width:               t.Width,
		Height:              t.Height,
	}
}

// SeekKeyframe implements ports.DecoderBackend.
func (b *Backend) SeekKeyframe(ts int64) error {
	if b.closed {
		return ErrClosed
	}
	if _, err := b.demux.SeekKeyframeFunc(ts, randomAccess(b.track.Codec)); err != nil {
		return err
	}
	b.live = nil
	return b.dec.Reset()
}

// randomAccess returns the filter for seek targets of codec. H.264 sync
// samples may be recovery points whose leading pictures the decoder drops,
// so only IDR access units qualify.
func randomAccess(codec codecdetect.Codec) func(*mp4demux.Sample, []byte) bool {
	if codec != codecdetect.CodecH264 {
		return nil
	}
	return func(_ *mp4demux.Sample, data []byte) bool {
		return len(data) > 4 && avc.IsIDRSample(data)
	}
}

// ReadPacket implements ports.DecoderBackend.
func (b *Backend) ReadPacket() (*ports.Packet, error) {
	if b.closed {
		return nil, ErrClosed
	}
	s, data, err := b.demux.ReadSample()
	if err != nil {
		return nil, err
	}
	return &ports.Packet{
		StreamIndex: b.track.Index,
		PTS:         s.PTS,
		DTS:         s.DTS,
		Duration:    int64(s.Dur),
		Keyframe:    s.Sync,
		Data:        data,
		Native:      s.Number,
	}, nil
}

// SendPacket implements ports.DecoderBackend.
func (b *Backend) SendPacket(pkt *ports.Packet) error {
	if b.closed {
		return ErrClosed
	}
	return b.dec.SendPacket(pkt.Data, pkt.PTS, pkt.Keyframe)
}

// Flush implements ports.DecoderBackend.
func (b *Backend) Flush() error {
	if b.closed {
		return ErrClosed
	}
	return b.dec.Flush()
}

// ReceiveFrame implements ports.DecoderBackend.
func (b *Backend) ReceiveFrame() (*ports.Frame, error) {
	if b.closed {
		return nil, ErrClosed
	}
	img, pts, err := b.dec.ReceiveFrame()
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	b.live = &ports.Frame{
		PTS:      pts,
		Keyframe: b.sync[pts],
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Image:    img,
	}
	return b.live, nil
}

// Convert implements ports.DecoderBackend.
func (b *Backend) Convert(f *ports.Frame, dst []byte, width, height int, pf ports.PixelFormat) error {
	if b.closed {
		return ErrClosed
	}
	if f == nil || f != b.live {
		return ports.ErrStaleFrame
	}
	return b.conv.Pack(f.Image, dst, width, height, pf)
}

// Close implements ports.DecoderBackend.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.live = nil
	return b.dec.Close()
}

var (
	_ ports.DecoderBackend = (*Backend)(nil)
	_ ports.BackendOpener  = (*Opener)(nil)
)
