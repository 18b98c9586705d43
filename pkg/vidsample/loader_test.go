package vidsample

import (
	"encoding/json"
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

func TestLoader_LoadUniform(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: 100, Width: 32, Height: 24}}
	l := New(opener, WithSeed(1))

	res, err := l.LoadUniform([]byte("video"), UniformOptions{Width: 16, Height: 12, Frames: 8, FPSCap: 25, RandomSeek: true})
	require.NoError(t, err)
	assert.Len(t, res.Frames, 8*16*12*3)
	assert.Equal(t, 8, res.Count)
	assert.Equal(t, 16, res.Width)
	assert.Equal(t, 12, res.Height)
	assert.Equal(t, ports.PixelFormatRGB24, res.Format)
	assert.GreaterOrEqual(t, res.SeekDistance, 0.0)
	assert.Less(t, res.SeekDistance, 4.0-8.0/25)
	assert.NotEmpty(t, res.SessionID)
	assert.True(t, opener.Last().Closed(), "session must release the backend")
}

func TestLoader_SeedIsReproducible(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 500}
	opts := UniformOptions{Frames: 4, FPSCap: 25, RandomSeek: true}

	a, err := New(&mocks.Opener{Config: cfg}, WithSeed(99)).LoadUniform(nil, opts)
	require.NoError(t, err)
	b, err := New(&mocks.Opener{Config: cfg}, WithSeed(99)).LoadUniform(nil, opts)
	require.NoError(t, err)
	assert.Equal(t, a.SeekDistance, b.SeekDistance)
	assert.Equal(t, a.Frames, b.Frames)
}

func TestLoader_NativeSize(t *testing.T) {
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 10, Width: 20, Height: 10}})

	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{0, 3}})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 10, res.Height)

	res, err = l.LoadFrames(nil, IndexOptions{Width: 8, Indices: []int64{0, 3}})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Width)
	assert.Equal(t, 4, res.Height)
	assert.Equal(t, 3, mocks.FrameIndex(res.Frames[8*4*3:]))
}

func TestLoader_StreamOpenErrorReturnsBlankBuffer(t *testing.T) {
	l := New(&mocks.Opener{Err: ports.ErrNoVideoStream})

	res, err := l.LoadFrames([]byte("not a video"), IndexOptions{Width: 4, Height: 2, Indices: []int64{0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sampler.ErrStreamOpen))
	require.NotNil(t, res)
	assert.Equal(t, make([]byte, 4*2*3), res.Frames)

	res, err = l.LoadFrames(nil, IndexOptions{Indices: []int64{0, 1}})
	assert.ErrorIs(t, err, sampler.ErrStreamOpen)
	require.NotNil(t, res)
	assert.Empty(t, res.Frames)
	assert.Equal(t, 2, res.Count)
}

func TestLoader_InvalidRequest(t *testing.T) {
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 10}})

	res, err := l.LoadUniform(nil, UniformOptions{Frames: 0, FPSCap: 25})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)

	res2, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{5, 1}})
	assert.Nil(t, res2)
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)

	res2, err = l.LoadFrames(nil, IndexOptions{Width: -1, Indices: []int64{1}})
	assert.Nil(t, res2)
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)
}

func TestLoader_RejectsOversizedBuffer(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: 10}}
	l := New(opener)

	assert.NotPanics(t, func() {
		res, err := l.LoadUniform(nil, UniformOptions{Width: 1 << 21, Height: 1 << 21, Frames: 1 << 22, FPSCap: 25})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, sampler.ErrInvalidRequest)
	})
	assert.Nil(t, opener.Last(), "nothing should be opened")

	// A failing open must not allocate the blank buffer either.
	blank := New(&mocks.Opener{Err: ports.ErrNoVideoStream})
	res, err := blank.LoadFrames(nil, IndexOptions{Width: 1 << 20, Height: 1 << 20, Indices: []int64{0, 1}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)
}

func TestLoader_Limits(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: 10, Width: 100, Height: 100}}
	l := New(opener, WithLimits(4, 5000))

	_, err := l.LoadUniform(nil, UniformOptions{Width: 8, Height: 8, Frames: 5, FPSCap: 25})
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)

	_, err = l.LoadFrames(nil, IndexOptions{Width: 100, Height: 60, Indices: []int64{0}})
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)
	assert.Nil(t, opener.Last())

	// The native size is only known after opening.
	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{0}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, sampler.ErrInvalidRequest)
	require.NotNil(t, opener.Last())
	assert.True(t, opener.Last().Closed())

	res, err = l.LoadFrames(nil, IndexOptions{Width: 50, Height: 50, Indices: []int64{0, 1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestLoader_DecodeErrorReturnsNoBuffer(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{Frames: 10, DecodeErrAt: 1}}
	res, err := New(opener).LoadUniform(nil, UniformOptions{Frames: 4, FPSCap: 25})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, sampler.ErrBackendDecode)
	assert.True(t, opener.Last().Closed())
}

func TestLoader_BGR(t *testing.T) {
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 10}}, WithPixelFormat(ports.PixelFormatBGR24))
	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{2}})
	require.NoError(t, err)
	c := mocks.FrameColor(2)
	assert.Equal(t, []byte{c.B, c.G, c.R}, res.Frames[:3])
}

func TestLoader_Concurrent(t *testing.T) {
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 200}}, WithSeed(5))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.LoadUniform(nil, UniformOptions{Frames: 16, FPSCap: 10, RandomSeek: true})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestLoader_ResultMetadata(t *testing.T) {
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 30, Width: 8, Height: 6}})
	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "mock", res.Metadata.Codec)
	assert.Equal(t, int64(30), res.Metadata.FrameCount)
	assert.Equal(t, 8, res.Metadata.Width)
	assert.GreaterOrEqual(t, res.Elapsed.Nanoseconds(), int64(0))
}

func TestLoader_SinkReceivesFramesAndStats(t *testing.T) {
	sink := mocks.NewFrameSink(true)
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 5}}, WithSink(sink))

	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{1, 3, 8}})
	require.NoError(t, err)

	frames := sink.Frames(res.SessionID)
	require.Len(t, frames, 3)
	c := mocks.FrameColor(3)
	assert.Equal(t, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}, frames[1].At(0, 0))

	data, ok := sink.Stats(res.SessionID)
	require.True(t, ok)
	var st struct {
		Session string `json:"session"`
		Written int    `json:"written"`
		Padded  int    `json:"padded"`
	}
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, res.SessionID, st.Session)
	assert.Equal(t, 2, st.Written)
	assert.Equal(t, 1, st.Padded)
}

func TestLoader_DisabledSinkAndSinkErrors(t *testing.T) {
	disabled := mocks.NewFrameSink(false)
	l := New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 5}}, WithSink(disabled))
	_, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{0}})
	require.NoError(t, err)
	assert.Zero(t, disabled.Runs())

	broken := mocks.NewFrameSink(true)
	broken.Err = errors.New("disk full")
	l = New(&mocks.Opener{Config: mocks.BackendConfig{Frames: 5}}, WithSink(broken))
	res, err := l.LoadFrames(nil, IndexOptions{Indices: []int64{0}})
	require.NoError(t, err, "sink failures must not fail the request")
	assert.Len(t, res.Frames, 8*6*3)
}
