package sampler

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/vidsample/pkg/ports"
)

func seekMeta(seconds int64) Metadata {
	return Metadata{
		TimeBase:   ports.Rational{Num: 1, Den: 1000},
		StartTime:  100,
		Duration:   seconds * 1000,
		FrameRate:  ports.Rational{Num: 30, Den: 1},
		FrameCount: seconds * 30,
		Width:      4,
		Height:     4,
	}
}

func TestComputeSeekTarget_Disabled(t *testing.T) {
	got := ComputeSeekTarget(seekMeta(60), 16, 25, false, nil)
	assert.False(t, got.Seek)
	assert.Equal(t, int64(100), got.Timestamp)
}

func TestComputeSeekTarget_ShortStream(t *testing.T) {
	// 16 frames at min(30, 8) fps need 2 s; the stream has exactly 2 s.
	got := ComputeSeekTarget(seekMeta(2), 16, 8, true, rand.New(rand.NewPCG(1, 2)))
	assert.False(t, got.Seek)
	assert.Zero(t, got.Distance)
}

func TestComputeSeekTarget_Window(t *testing.T) {
	meta := seekMeta(10)
	rng := rand.New(rand.NewPCG(42, 42))

	// Effective rate is the cap (25 < 30): window = 10 - 50/25 = 8 s.
	for i := 0; i < 500; i++ {
		got := ComputeSeekTarget(meta, 50, 25, true, rng)
		assert.True(t, got.Seek)
		assert.GreaterOrEqual(t, got.Distance, 0.0)
		assert.Less(t, got.Distance, 8.0)
		assert.GreaterOrEqual(t, got.Timestamp, int64(100))
		assert.LessOrEqual(t, got.Timestamp, int64(100+8000))
	}
}

func TestComputeSeekTarget_NativeRateBelowCap(t *testing.T) {
	meta := seekMeta(10)
	// Effective rate is native (30 < 60): window = 10 - 60/30 = 8 s.
	got := ComputeSeekTarget(meta, 60, 60, true, rand.New(rand.NewPCG(3, 4)))
	assert.Less(t, got.Distance, 8.0)
}

func TestComputeSeekTarget_Deterministic(t *testing.T) {
	a := ComputeSeekTarget(seekMeta(30), 8, 25, true, rand.New(rand.NewPCG(9, 9)))
	b := ComputeSeekTarget(seekMeta(30), 8, 25, true, rand.New(rand.NewPCG(9, 9)))
	assert.Equal(t, a, b)
}
