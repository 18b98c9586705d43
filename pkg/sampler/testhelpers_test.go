package sampler

import (
	"testing"

	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
)

// slotIndices decodes the synthetic frame index stored in every slot.
func slotIndices(t *testing.T, buf *Buffer) []int {
	t.Helper()
	out := make([]int, buf.Frames)
	for i := range out {
		out[i] = mocks.FrameIndex(buf.Slot(i))
	}
	return out
}

func nativeBuffer(s *Session, frames int) *Buffer {
	m := s.Metadata()
	return NewBuffer(frames, m.Width, m.Height, ports.PixelFormatRGB24)
}
