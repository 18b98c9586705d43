package ports

import (
	"image"
)

// FrameSink stores the frames and statistics of sampling runs for
// inspection. A run is identified by its session id. Implementations are
// called from concurrent sessions.
type FrameSink interface {
	// Enabled returns true if frames should be handed to the sink.
	Enabled() bool

	// SaveFrame saves slot index of run.
	SaveFrame(run string, index int, img image.Image) error

	// SaveStats saves the JSON statistics of run.
	SaveStats(run string, data []byte) error
}
