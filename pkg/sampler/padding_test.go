package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPad(t *testing.T) {
	tests := []struct {
		name      string
		written   int
		requested int
		want      []byte
	}{
		{"cyclic with truncated tail", 3, 8, []byte{1, 2, 3, 1, 2, 3, 1, 2}},
		{"single frame repeated", 1, 4, []byte{1, 1, 1, 1}},
		{"already full", 4, 4, []byte{1, 2, 3, 4}},
		{"nothing written zero-fills", 0, 4, []byte{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// frameSize 1: each byte is one frame; unwritten bytes hold junk.
			buf := []byte{1, 2, 3, 4, 9, 9, 9, 9}[:tt.requested]
			if tt.written < tt.requested {
				for i := tt.written; i < tt.requested; i++ {
					buf[i] = 9
				}
			}
			Pad(buf, tt.written, tt.requested, 1)
			assert.Equal(t, tt.want, buf)
		})
	}
}

func TestPad_MultiByteFrames(t *testing.T) {
	buf := []byte{1, 1, 2, 2, 0, 0, 0, 0, 0, 0}
	Pad(buf, 2, 5, 2)
	assert.Equal(t, []byte{1, 1, 2, 2, 1, 1, 2, 2, 1, 1}, buf)
}

func TestResolveSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{0, 0, 640, 360},
		{320, 0, 320, 180},
		{0, 90, 160, 90},
		{100, 100, 100, 100},
		{1, 0, 1, 1},
	}
	for _, tt := range tests {
		w, h, err := ResolveSize(640, 360, tt.w, tt.h)
		require.NoError(t, err)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}

	_, _, err := ResolveSize(640, 360, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuffer_Slots(t *testing.T) {
	buf := NewBuffer(3, 2, 2, 0)
	assert.Len(t, buf.Data, 3*2*2*3)
	assert.Equal(t, 12, buf.FrameSize())

	buf.Slot(1)[0] = 7
	assert.Equal(t, byte(7), buf.Data[12])
}

func TestCheckBufferSize(t *testing.T) {
	assert.NoError(t, CheckBufferSize(32, 256, 256))
	assert.NoError(t, CheckBufferSize(4, 0, 0))
	assert.NoError(t, CheckBufferSize(1, 1<<30, 0))

	for _, tt := range [][3]int{
		{-1, 2, 2},
		{1, -2, 2},
		{1 << 22, 1 << 21, 1 << 21},
		{2, 1 << 15, 1 << 15},
		{1, math.MaxInt, math.MaxInt},
	} {
		assert.ErrorIs(t, CheckBufferSize(tt[0], tt[1], tt[2]), ErrInvalidRequest, "%v", tt)
	}
}
