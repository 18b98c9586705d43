package sampler

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
)

func TestSampleUniform_SequentialAtNativeRate(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 40, ReorderDelay: 2})
	buf := nativeBuffer(s, 6)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 6, FPSCap: 25})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, slotIndices(t, buf))
	assert.Equal(t, 6, st.Written)
	assert.Zero(t, st.Dropped)
	assert.False(t, st.Seek.Seek)
}

func TestSampleUniform_HalfRateDropsEveryOtherFrame(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 100, FrameRate: ports.Rational{Num: 50, Den: 1}}
	s, _ := openMock(t, cfg)
	buf := nativeBuffer(s, 10)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 10, FPSCap: 25})
	require.NoError(t, err)
	assert.Equal(t, 10, st.Written)
	assert.Equal(t, 10, st.Dropped)
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, slotIndices(t, buf))
}

func TestSampleUniform_FractionalRatio(t *testing.T) {
	// 30 fps capped to 20 fps keeps two of every three frames.
	cfg := mocks.BackendConfig{Frames: 100, FrameRate: ports.Rational{Num: 30, Den: 1}, TimeBase: ports.Rational{Num: 1, Den: 15360}}
	s, _ := openMock(t, cfg)
	buf := nativeBuffer(s, 6)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 6, FPSCap: 20})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Dropped)
	assert.Equal(t, []int{0, 2, 3, 5, 6, 8}, slotIndices(t, buf))
}

func TestSampleUniform_SlowStreamNeverDrops(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 20, FrameRate: ports.Rational{Num: 10, Den: 1}}
	s, _ := openMock(t, cfg)
	buf := nativeBuffer(s, 5)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 5, FPSCap: 25})
	require.NoError(t, err)
	assert.Zero(t, st.Dropped)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, slotIndices(t, buf))
}

func TestSampleUniform_PadsCyclically(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 3, ReorderDelay: 1})
	buf := nativeBuffer(s, 8)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 8, FPSCap: 25})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Written)
	assert.Equal(t, 5, st.Padded)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1}, slotIndices(t, buf))
	assert.Len(t, buf.Data, 8*8*6*3)
}

func TestSampleUniform_RandomSeekStartsAtTarget(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 250, KeyframeInterval: 12, ReorderDelay: 2}
	s, b := openMock(t, cfg)
	buf := nativeBuffer(s, 10)

	rng := rand.New(rand.NewPCG(7, 11))
	st, err := SampleUniform(s, buf, UniformRequest{Frames: 10, FPSCap: 25, RandomSeek: true, Rand: rng})
	require.NoError(t, err)
	require.True(t, st.Seek.Seek)
	assert.GreaterOrEqual(t, st.Seek.Distance, 0.0)
	assert.Less(t, st.Seek.Distance, 10.0-10.0/25)
	assert.Equal(t, []int64{st.Seek.Timestamp}, b.SeekCalls())

	// The first slot holds the first frame at or after the target.
	first := int((st.Seek.Timestamp + 511) / 512)
	got := slotIndices(t, buf)
	for i := range got {
		assert.Equal(t, first+i, got[i])
	}
}

func TestSampleUniform_ShortStreamDoesNotSeek(t *testing.T) {
	s, b := openMock(t, mocks.BackendConfig{Frames: 10})
	buf := nativeBuffer(s, 10)

	st, err := SampleUniform(s, buf, UniformRequest{Frames: 10, FPSCap: 25, RandomSeek: true})
	require.NoError(t, err)
	assert.False(t, st.Seek.Seek)
	assert.Empty(t, b.SeekCalls())
}

func TestSampleUniform_BGR(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 5})
	m := s.Metadata()
	buf := NewBuffer(2, m.Width, m.Height, ports.PixelFormatBGR24)

	_, err := SampleUniform(s, buf, UniformRequest{Frames: 2, FPSCap: 25})
	require.NoError(t, err)
	c := mocks.FrameColor(1)
	assert.Equal(t, []byte{c.B, c.G, c.R}, buf.Slot(1)[:3])
}

func TestSampleUniform_ScalesToRequestedSize(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 5, Width: 32, Height: 16})
	buf := NewBuffer(3, 4, 2, ports.PixelFormatRGB24)

	_, err := SampleUniform(s, buf, UniformRequest{Frames: 3, FPSCap: 25})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, slotIndices(t, buf))
}

func TestSampleUniform_InvalidRequest(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 5})

	_, err := SampleUniform(s, nativeBuffer(s, 1), UniformRequest{Frames: 0, FPSCap: 25})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = SampleUniform(s, nativeBuffer(s, 1), UniformRequest{Frames: 1, FPSCap: 0})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = SampleUniform(s, nativeBuffer(s, 2), UniformRequest{Frames: 1, FPSCap: 25})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSampleUniform_DecodeErrorIsFatal(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 10, DecodeErrAt: 2})
	_, err := SampleUniform(s, nativeBuffer(s, 5), UniformRequest{Frames: 5, FPSCap: 25})
	assert.ErrorIs(t, err, ErrBackendDecode)
}
