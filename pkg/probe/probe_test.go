package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

func TestProbe_ConstantRate(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{
		Frames:           50,
		KeyframeInterval: 10,
		ReorderDelay:     2,
		InterleaveAudio:  true,
	}}

	r, err := Probe(opener, memsource.New(nil), sampler.WithSessionID("probe"))
	require.NoError(t, err)

	assert.Equal(t, "mock", r.Codec)
	assert.Equal(t, "1/12800", r.TimeBase)
	assert.Equal(t, int64(50), r.FrameCount)
	assert.InDelta(t, 2.0, r.DurationSeconds, 1e-9)
	assert.InDelta(t, 25.0, r.FrameRate, 1e-9)
	assert.Equal(t, 50, r.Packets)
	assert.Equal(t, 5, r.GOPs)
	assert.InDelta(t, 10.0, r.MeanGOPLength, 1e-9)
	assert.InDelta(t, 0.04, r.MeanFrameDuration, 1e-9)
	assert.InDelta(t, 0, r.StdDevFrameDuration, 1e-12)
	assert.False(t, r.VariableFrameRate)
	assert.True(t, opener.Last().Closed())
	assert.Zero(t, opener.Last().Decoded())
}

func TestProbe_VariableRate(t *testing.T) {
	ts := []int64{0, 512, 1024, 2048, 2560, 4096, 4608, 5120}
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: len(ts), Timestamps: ts}}

	r, err := Probe(opener, memsource.New(nil))
	require.NoError(t, err)
	assert.True(t, r.VariableFrameRate)
	assert.Greater(t, r.StdDevFrameDuration, 0.0)
}

func TestProbe_SingleFrame(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: 1}}

	r, err := Probe(opener, memsource.New(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Packets)
	assert.Zero(t, r.MeanFrameDuration)
	assert.False(t, r.VariableFrameRate)
}

func TestProbe_OpenFailure(t *testing.T) {
	opener := &mocks.Opener{Err: ports.ErrNoVideoStream}

	_, err := Probe(opener, memsource.New(nil))
	assert.True(t, errors.Is(err, sampler.ErrStreamOpen))
	assert.True(t, errors.Is(err, ports.ErrNoVideoStream))
}

func TestFrameDurations(t *testing.T) {
	got := frameDurations([]int64{0, 1024, 512, 1536}, ports.Rational{Num: 1, Den: 12800})
	assert.Equal(t, []float64{0.04, 0.04, 0.04}, got)
}
