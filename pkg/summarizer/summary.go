// Package summarizer provides summary generation for sampling runs.
package summarizer

import (
	"time"

	"github.com/user/vidsample/pkg/vidsample"
)

// Summary contains all data collected during one sampling run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Input video
	Source SourceInfo

	// Stream as reported by the backend
	Stream StreamInfo

	// Request settings
	Request RequestInfo

	// Sampling results
	Result ResultInfo
}

// SourceInfo describes the input file.
type SourceInfo struct {
	Path    string
	Size    int64
	Backend string
}

// StreamInfo describes the decoded video stream.
type StreamInfo struct {
	Codec       string
	Width       int
	Height      int
	FrameCount  int64
	DurationSec float64
	FrameRate   float64
}

// RequestInfo contains the sampling request.
type RequestInfo struct {
	// Mode is "uniform" or "frames".
	Mode        string
	Width       int
	Height      int
	Frames      int
	PixelFormat string

	// Uniform requests
	FPSCap     float64
	RandomSeek bool

	// Index requests
	Indices []int64
	Seek    bool
}

// ResultInfo contains the outcome of the run.
type ResultInfo struct {
	SessionID    string
	Written      int
	Dropped      int
	Padded       int
	SeekDistance float64
	Fallback     bool
	ElapsedMs    int64
	BufferBytes  int

	// Warning is set when the stream could not be opened and the buffer
	// is blank.
	Warning string
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets the input file information.
func (b *Builder) WithSource(path string, size int64, backend string) *Builder {
	b.summary.Source = SourceInfo{
		Path:    path,
		Size:    size,
		Backend: backend,
	}
	return b
}

// WithRequest sets the request settings.
func (b *Builder) WithRequest(req RequestInfo) *Builder {
	b.summary.Request = req
	return b
}

// WithResult copies stream metadata and statistics from a loader result.
// openErr is the stream open failure that produced a blank buffer, if any.
func (b *Builder) WithResult(res *vidsample.Result, openErr error) *Builder {
	meta := res.Metadata
	b.summary.Stream = StreamInfo{
		Codec:       meta.Codec,
		Width:       meta.Width,
		Height:      meta.Height,
		FrameCount:  meta.FrameCount,
		DurationSec: meta.DurationSeconds(),
		FrameRate:   meta.NativeRate(),
	}

	st := res.Stats
	b.summary.Result = ResultInfo{
		SessionID:    res.SessionID,
		Written:      st.Written,
		Dropped:      st.Dropped,
		Padded:       st.Padded,
		SeekDistance: st.Seek.Distance,
		Fallback:     st.Fallback,
		ElapsedMs:    res.Elapsed.Milliseconds(),
		BufferBytes:  len(res.Frames),
	}
	if openErr != nil {
		b.summary.Result.Warning = openErr.Error()
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
