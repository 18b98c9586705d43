package mocks

import (
	"image"
	"sync"

	"github.com/user/vidsample/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink that keeps
// everything in memory.
type FrameSink struct {
	mu sync.RWMutex

	enabled bool
	Err     error

	frames map[string]map[int]image.Image
	stats  map[string][]byte
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink(enabled bool) *FrameSink {
	return &FrameSink{
		enabled: enabled,
		frames:  make(map[string]map[int]image.Image),
		stats:   make(map[string][]byte),
	}
}

func (m *FrameSink) Enabled() bool {
	return m.enabled
}

func (m *FrameSink) SaveFrame(run string, index int, img image.Image) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames[run] == nil {
		m.frames[run] = make(map[int]image.Image)
	}
	m.frames[run][index] = img
	return nil
}

func (m *FrameSink) SaveStats(run string, data []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[run] = data
	return nil
}

// Frames returns the frames saved for run.
func (m *FrameSink) Frames(run string) map[int]image.Image {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]image.Image, len(m.frames[run]))
	for k, v := range m.frames[run] {
		out[k] = v
	}
	return out
}

// Stats returns the statistics saved for run.
func (m *FrameSink) Stats(run string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.stats[run]
	return data, ok
}

// Runs returns the number of runs that saved anything.
func (m *FrameSink) Runs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return max(len(m.frames), len(m.stats))
}

var _ ports.FrameSink = (*FrameSink)(nil)
