// Package sampler turns a decoder backend into fixed-size frame buffers.
//
// A Session wraps one opened backend and exposes a pull-style decode loop.
// SampleUniform and SampleIndices drive a Session to fill a Buffer and pad
// it when the stream runs out of frames.
package sampler

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/ports"
)

// Session is a single-use decode session over one source. It is not safe
// for concurrent use.
type Session struct {
	id      string
	backend ports.DecoderBackend
	meta    Metadata
	log     ports.Logger

	// pending holds a frame peeked by SkipUntil.
	pending *ports.Frame
	// flushed is set once the decoder was flushed in the current decode run.
	flushed bool

	lastPTS  int64
	hasLast  bool
	received int
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Sessions log at debug level under the
// "sampler" component.
func WithLogger(l ports.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionID overrides the generated session id used in log lines.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// Open opens src with the opener and derives the stream metadata. Any
// failure is reported as ErrStreamOpen and leaves nothing open.
func Open(opener ports.BackendOpener, src io.ReadSeeker, opts ...Option) (*Session, error) {
	s := &Session{log: logger.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()[:8]
	}
	s.log = s.log.WithComponent("sampler:" + s.id)

	backend, err := opener.Open(src)
	if err != nil {
		s.log.Debug("Failed to open stream: %s", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrStreamOpen, err)
	}

	meta, err := deriveMetadata(backend.Info())
	if err != nil {
		backend.Close()
		s.log.Debug("Failed to open stream: %s", err.Error())
		return nil, err
	}

	s.backend = backend
	s.meta = meta
	s.log.Debug("Opened stream %d (%s): %dx%d, %d frames, duration %d at %d/%d",
		meta.StreamIndex, meta.Codec, meta.Width, meta.Height, meta.FrameCount,
		meta.Duration, meta.TimeBase.Num, meta.TimeBase.Den)
	return s, nil
}

// ID returns the session id used in log lines.
func (s *Session) ID() string {
	return s.id
}

// Metadata returns the derived stream metadata.
func (s *Session) Metadata() Metadata {
	return s.meta
}

// ReceiveFrame returns the next decoded frame in presentation order, or
// ErrEndOfStream once both the demuxer and the decoder are exhausted.
// The frame is valid until the next call.
func (s *Session) ReceiveFrame() (*ports.Frame, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.pending != nil {
		f := s.pending
		s.pending = nil
		return f, nil
	}

	f, err := s.drain()
	if f != nil || err != nil {
		return f, err
	}
	if s.flushed {
		return nil, ErrEndOfStream
	}

	for {
		pkt, err := s.backend.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read packet: %w", ErrBackendDecode, err)
		}
		if pkt.StreamIndex != s.meta.StreamIndex {
			continue
		}
		if err := s.backend.SendPacket(pkt); err != nil {
			return nil, fmt.Errorf("%w: send packet at %d: %w", ErrBackendDecode, pkt.PTS, err)
		}
		f, err := s.drain()
		if f != nil || err != nil {
			return f, err
		}
	}

	if err := s.backend.Flush(); err != nil {
		return nil, fmt.Errorf("%w: flush: %w", ErrBackendDecode, err)
	}
	s.flushed = true
	s.log.Debug("Demuxer exhausted after %d frames, decoder flushed", s.received)

	f, err = s.drain()
	if f != nil || err != nil {
		return f, err
	}
	return nil, ErrEndOfStream
}

// drain returns (nil, nil) when the decoder needs more input.
func (s *Session) drain() (*ports.Frame, error) {
	f, err := s.backend.ReceiveFrame()
	switch {
	case err == nil:
		s.received++
		return f, nil
	case errors.Is(err, ports.ErrNeedMoreInput):
		if s.flushed {
			return nil, ErrEndOfStream
		}
		return nil, nil
	case errors.Is(err, ports.ErrEndOfStream):
		return nil, ErrEndOfStream
	default:
		return nil, fmt.Errorf("%w: receive frame: %w", ErrBackendDecode, err)
	}
}

// SkipUntil discards frames whose PTS precedes ts. The first frame at or
// after ts is kept and returned by the next ReceiveFrame.
func (s *Session) SkipUntil(ts int64) (int, error) {
	skipped := 0
	for {
		f, err := s.ReceiveFrame()
		if err != nil {
			return skipped, err
		}
		if f.PTS >= ts {
			s.pending = f
			return skipped, nil
		}
		skipped++
	}
}

// SeekKeyframe repositions the backend on the nearest keyframe at or before
// ts and starts a new decode run.
func (s *Session) SeekKeyframe(ts int64) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.backend.SeekKeyframe(ts); err != nil {
		return fmt.Errorf("%w: to %d: %w", ErrSeek, ts, err)
	}
	s.pending = nil
	s.flushed = false
	s.hasLast = false
	s.log.Debug("Seeked to %d", ts)
	return nil
}

// ScanPackets passes every remaining packet of the video stream to fn
// without decoding it. It leaves the demuxer at the end of the stream.
func (s *Session) ScanPackets(fn func(*ports.Packet)) error {
	if s.closed {
		return ErrClosed
	}
	s.pending = nil
	for {
		pkt, err := s.backend.ReadPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read packet: %w", ErrBackendDecode, err)
		}
		if pkt.StreamIndex == s.meta.StreamIndex {
			fn(pkt)
		}
	}
}

// Convert scales f into dst as packed pixels.
func (s *Session) Convert(f *ports.Frame, dst []byte, width, height int, pf ports.PixelFormat) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.backend.Convert(f, dst, width, height, pf); err != nil {
		return fmt.Errorf("%w: convert frame at %d: %w", ErrBackendDecode, f.PTS, err)
	}
	return nil
}

// advance records f as accepted when its PTS is strictly greater than the
// last accepted one. Decoders may emit the first frame of a run twice.
func (s *Session) advance(f *ports.Frame) bool {
	if s.hasLast && f.PTS <= s.lastPTS {
		return false
	}
	s.lastPTS = f.PTS
	s.hasLast = true
	return true
}

// Close releases the backend. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
