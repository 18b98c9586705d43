// Package vidsample is the caller-facing entry point: it turns an encoded
// video held in memory into a fixed-size frame buffer.
package vidsample

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/adapters/nullsink"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

// UniformOptions requests Frames frames at no more than FPSCap frames per
// second. Width and Height of 0 keep the native size.
type UniformOptions struct {
	Width      int
	Height     int
	Frames     int
	FPSCap     float64
	RandomSeek bool
}

// IndexOptions requests the frames at Indices.
type IndexOptions struct {
	Width   int
	Height  int
	Indices []int64
	Seek    bool
}

// Result is a sampled frame buffer. Frames holds Count pictures of
// Width x Height pixels in Format, 3 bytes per pixel.
type Result struct {
	Frames []byte
	Count  int
	Width  int
	Height int
	Format ports.PixelFormat

	SessionID string
	Stats     sampler.Stats
	// Metadata is zero when the stream could not be opened.
	Metadata sampler.Metadata
	Elapsed  time.Duration
}

// UniformResult is returned by LoadUniform.
type UniformResult struct {
	Result
	// SeekDistance is the random start offset in seconds, 0 without seek.
	SeekDistance float64
}

// IndexResult is returned by LoadFrames.
type IndexResult struct {
	Result
}

// Loader samples videos through a backend opener. It is safe for
// concurrent use; every call runs its own session.
type Loader struct {
	opener ports.BackendOpener
	log    ports.Logger
	format ports.PixelFormat
	sink   ports.FrameSink

	// 0 is unlimited.
	maxFrames int
	maxPixels int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithPixelFormat selects the output channel order. The default is RGB24.
func WithPixelFormat(pf ports.PixelFormat) Option {
	return func(ld *Loader) {
		ld.format = pf
	}
}

// WithSeed makes random seek points reproducible. Seed 0 keeps the
// time-based seed.
func WithSeed(seed uint64) Option {
	return func(ld *Loader) {
		if seed != 0 {
			ld.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithSink hands every sampled buffer to sink, one image per slot.
func WithSink(sink ports.FrameSink) Option {
	return func(ld *Loader) {
		if sink != nil {
			ld.sink = sink
		}
	}
}

// WithLimits caps the frames per request and the pixels per output frame.
// Zero leaves a limit off; buffers are always bounded by
// sampler.MaxBufferBytes.
func WithLimits(maxFrames, maxPixels int) Option {
	return func(ld *Loader) {
		ld.maxFrames = max(maxFrames, 0)
		ld.maxPixels = max(maxPixels, 0)
	}
}

// New creates a Loader.
func New(opener ports.BackendOpener, opts ...Option) *Loader {
	now := uint64(time.Now().UnixNano())
	l := &Loader{
		opener: opener,
		log:    logger.NewNoop(),
		format: ports.PixelFormatRGB24,
		sink:   nullsink.New(),
		rng:    rand.New(rand.NewPCG(now, now>>1|1)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// requestRand derives a per-request generator so concurrent requests never
// share one.
func (l *Loader) requestRand() *rand.Rand {
	l.mu.Lock()
	defer l.mu.Unlock()
	return rand.New(rand.NewPCG(l.rng.Uint64(), l.rng.Uint64()))
}

// LoadUniform samples frames at a capped rate. When the stream cannot be
// opened it returns a zero-filled buffer of the requested size together
// with an error wrapping sampler.ErrStreamOpen.
func (l *Loader) LoadUniform(video []byte, opts UniformOptions) (*UniformResult, error) {
	req := sampler.UniformRequest{
		Frames:     opts.Frames,
		FPSCap:     opts.FPSCap,
		RandomSeek: opts.RandomSeek,
		Rand:       l.requestRand(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := &UniformResult{}
	err := l.run(video, opts.Width, opts.Height, opts.Frames, &res.Result, func(s *sampler.Session, buf *sampler.Buffer) (sampler.Stats, error) {
		return sampler.SampleUniform(s, buf, req)
	})
	if res.Frames == nil {
		return nil, err
	}
	res.SeekDistance = res.Stats.Seek.Distance
	return res, err
}

// LoadFrames samples the frames at the given strictly increasing indices.
// Stream open failures behave as in LoadUniform.
func (l *Loader) LoadFrames(video []byte, opts IndexOptions) (*IndexResult, error) {
	req := sampler.IndexRequest{Indices: opts.Indices, Seek: opts.Seek}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := &IndexResult{}
	err := l.run(video, opts.Width, opts.Height, len(opts.Indices), &res.Result, func(s *sampler.Session, buf *sampler.Buffer) (sampler.Stats, error) {
		return sampler.SampleIndices(s, buf, req)
	})
	if res.Frames == nil {
		return nil, err
	}
	return res, err
}

type sampleFunc func(*sampler.Session, *sampler.Buffer) (sampler.Stats, error)

// run opens a session, allocates the buffer and samples into it. res.Frames
// stays nil when the caller must not use the result.
func (l *Loader) run(video []byte, width, height, frames int, res *Result, sample sampleFunc) error {
	if err := l.checkSize(frames, width, height); err != nil {
		return err
	}

	started := time.Now()
	s, err := sampler.Open(l.opener, memsource.New(video), sampler.WithLogger(l.log))
	if err != nil {
		if !errors.Is(err, sampler.ErrStreamOpen) {
			return err
		}
		// Without a stream the native size is unknown; a partly native
		// request collapses to an empty frame.
		if width == 0 || height == 0 {
			width, height = 0, 0
		}
		l.log.Warn("Could not open video, returning %d blank frames: %s", frames, err.Error())
		l.fill(res, sampler.NewBuffer(frames, width, height, l.format), "")
		return err
	}
	defer s.Close()

	meta := s.Metadata()
	w, h, err := sampler.ResolveSize(meta.Width, meta.Height, width, height)
	if err != nil {
		return err
	}
	if err := l.checkSize(frames, w, h); err != nil {
		return err
	}
	buf := sampler.NewBuffer(frames, w, h, l.format)

	st, err := sample(s, buf)
	if err != nil {
		l.log.Error("Sampling failed: %s", err.Error())
		return err
	}

	l.fill(res, buf, s.ID())
	res.Stats = st
	res.Metadata = meta
	res.Elapsed = time.Since(started)
	l.dump(res)
	l.log.Info("Sampled %d frames at %dx%d (%d dropped, %d padded) in %d ms",
		st.Written, w, h, st.Dropped, st.Padded, res.Elapsed.Milliseconds())
	return nil
}

// checkSize applies the loader limits and the buffer bound. A zero side
// is resolved later and only checked once known.
func (l *Loader) checkSize(frames, width, height int) error {
	if err := sampler.CheckBufferSize(frames, width, height); err != nil {
		return err
	}
	if l.maxFrames > 0 && frames > l.maxFrames {
		return fmt.Errorf("%w: %d frames requested, limit is %d", sampler.ErrInvalidRequest, frames, l.maxFrames)
	}
	if l.maxPixels > 0 && width*height > l.maxPixels {
		return fmt.Errorf("%w: %dx%d frames exceed %d pixels", sampler.ErrInvalidRequest, width, height, l.maxPixels)
	}
	return nil
}

func (l *Loader) fill(res *Result, buf *sampler.Buffer, id string) {
	res.Frames = buf.Data
	res.Count = buf.Frames
	res.Width = buf.Width
	res.Height = buf.Height
	res.Format = buf.Format
	res.SessionID = id
}
