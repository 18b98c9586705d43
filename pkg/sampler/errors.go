package sampler

import "errors"

var (
	// ErrStreamOpen means the source could not be opened or its stream
	// metadata could not be derived. Callers still receive a correctly
	// sized, zero-filled buffer.
	ErrStreamOpen = errors.New("sampler: failed to open stream")

	// ErrBackendDecode means the backend failed while demuxing, decoding or
	// converting a frame.
	ErrBackendDecode = errors.New("sampler: backend decode failed")

	// ErrSeek means the backend rejected a seek.
	ErrSeek = errors.New("sampler: seek failed")

	// ErrEndOfStream means no further frame can be decoded. Samplers turn
	// it into padding; it never reaches callers of SampleUniform or
	// SampleIndices.
	ErrEndOfStream = errors.New("sampler: end of stream")

	// ErrInvalidRequest means the sampling request was rejected before any
	// decoding.
	ErrInvalidRequest = errors.New("sampler: invalid request")

	// ErrClosed is returned by Session methods after Close.
	ErrClosed = errors.New("sampler: session closed")
)
