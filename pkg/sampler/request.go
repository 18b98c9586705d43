package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// UniformRequest asks for Frames frames at no more than FPSCap frames per
// second.
type UniformRequest struct {
	Frames     int
	FPSCap     float64
	RandomSeek bool

	// Rand drives the seek point. Nil uses the package-level generator.
	Rand *rand.Rand
}

// Validate checks the request.
func (r UniformRequest) Validate() error {
	if r.Frames <= 0 {
		return fmt.Errorf("%w: frame count must be positive, got %d", ErrInvalidRequest, r.Frames)
	}
	if !(r.FPSCap > 0) || math.IsInf(r.FPSCap, 0) {
		return fmt.Errorf("%w: fps cap must be positive, got %v", ErrInvalidRequest, r.FPSCap)
	}
	return nil
}

// IndexRequest asks for the frames at the given zero-based indices.
type IndexRequest struct {
	Indices []int64

	// Seek starts decoding at the keyframe before the first index instead
	// of the stream start.
	Seek bool
}

// Validate checks that indices are non-empty, non-negative and strictly
// increasing.
func (r IndexRequest) Validate() error {
	if len(r.Indices) == 0 {
		return fmt.Errorf("%w: no frame indices", ErrInvalidRequest)
	}
	for i, idx := range r.Indices {
		if idx < 0 {
			return fmt.Errorf("%w: negative frame index %d", ErrInvalidRequest, idx)
		}
		if i > 0 && idx <= r.Indices[i-1] {
			return fmt.Errorf("%w: frame indices must be strictly increasing (%d after %d)", ErrInvalidRequest, idx, r.Indices[i-1])
		}
	}
	return nil
}

// Stats summarizes a sampling run.
type Stats struct {
	Written int
	Dropped int
	Padded  int

	// Seek is the keypoint used by a uniform request.
	Seek SeekTarget
	// Fallback is set when an index request had to restart from the
	// stream start because the approximate seek overshot.
	Fallback bool
}
