package sampler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
)

func openMock(t *testing.T, cfg mocks.BackendConfig) (*Session, *mocks.Backend) {
	t.Helper()
	opener := &mocks.Opener{Config: cfg}
	s, err := Open(opener, memsource.New(nil), WithSessionID("test"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, opener.Last()
}

func decodeAll(t *testing.T, s *Session) []int64 {
	t.Helper()
	var pts []int64
	for {
		f, err := s.ReceiveFrame()
		if errors.Is(err, ErrEndOfStream) {
			return pts
		}
		require.NoError(t, err)
		pts = append(pts, f.PTS)
	}
}

func TestSession_ReceiveFrameDecodesEverything(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 12, ReorderDelay: 3, InterleaveAudio: true}
	s, b := openMock(t, cfg)

	pts := decodeAll(t, s)
	require.Len(t, pts, 12)
	for i, p := range pts {
		assert.Equal(t, cfg.PTS(i), p)
	}
	assert.Equal(t, 12, b.Decoded())

	// Stays at end of stream.
	_, err := s.ReceiveFrame()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestSession_OpenFailure(t *testing.T) {
	opener := &mocks.Opener{Err: ports.ErrNoVideoStream}
	s, err := Open(opener, memsource.New([]byte("junk")))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrStreamOpen)
	assert.ErrorIs(t, err, ports.ErrNoVideoStream)
}

func TestSession_OpenUnderivableMetadataClosesBackend(t *testing.T) {
	opener := &mocks.Opener{Config: mocks.BackendConfig{
		Frames:           10,
		HideFrameCount:   true,
		HideDuration:     true,
		HideContainerDur: true,
	}}
	_, err := Open(opener, memsource.New(nil))
	assert.ErrorIs(t, err, ErrStreamOpen)
	require.NotNil(t, opener.Last())
	assert.True(t, opener.Last().Closed())
}

func TestSession_DerivesMissingMetadata(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 50, HideFrameCount: true, HideDuration: true}
	s, _ := openMock(t, cfg)

	meta := s.Metadata()
	assert.Equal(t, int64(50), meta.FrameCount)
	assert.Equal(t, int64(50*512), meta.Duration)
	assert.InDelta(t, 2.0, meta.DurationSeconds(), 1e-9)
}

func TestSession_SkipUntilKeepsFirstFrameAtTarget(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 20}
	s, _ := openMock(t, cfg)

	skipped, err := s.SkipUntil(cfg.PTS(5))
	require.NoError(t, err)
	assert.Equal(t, 5, skipped)

	f, err := s.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, cfg.PTS(5), f.PTS)

	f, err = s.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, cfg.PTS(6), f.PTS)
}

func TestSession_SkipUntilBetweenFrames(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 20}
	s, _ := openMock(t, cfg)

	_, err := s.SkipUntil(cfg.PTS(5) + 1)
	require.NoError(t, err)
	f, err := s.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, cfg.PTS(6), f.PTS)
}

func TestSession_SeekRestartsDecodeRun(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 30, KeyframeInterval: 10, ReorderDelay: 2}
	s, b := openMock(t, cfg)

	decodeAll(t, s)

	require.NoError(t, s.SeekKeyframe(cfg.PTS(15)))
	assert.Equal(t, []int64{cfg.PTS(15)}, b.SeekCalls())

	f, err := s.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, cfg.PTS(10), f.PTS, "backward seek lands on the previous keyframe")
}

func TestSession_SeekError(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 5, SeekErr: errors.New("boom")})
	err := s.SeekKeyframe(100)
	assert.ErrorIs(t, err, ErrSeek)
}

func TestSession_DecodeError(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 10, DecodeErrAt: 3})
	for i := 0; i < 3; i++ {
		_, err := s.ReceiveFrame()
		require.NoError(t, err)
	}
	_, err := s.ReceiveFrame()
	assert.ErrorIs(t, err, ErrBackendDecode)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, b := openMock(t, mocks.BackendConfig{Frames: 5})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, b.Closed())

	_, err := s.ReceiveFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_ConvertStaleFrame(t *testing.T) {
	s, _ := openMock(t, mocks.BackendConfig{Frames: 5})
	f1, err := s.ReceiveFrame()
	require.NoError(t, err)
	_, err = s.ReceiveFrame()
	require.NoError(t, err)

	err = s.Convert(f1, make([]byte, 8*6*3), 8, 6, ports.PixelFormatRGB24)
	assert.ErrorIs(t, err, ErrBackendDecode)
	assert.ErrorIs(t, err, ports.ErrStaleFrame)
}

func TestSession_ScanPacketsSkipsOtherStreams(t *testing.T) {
	cfg := mocks.BackendConfig{Frames: 12, KeyframeInterval: 4, InterleaveAudio: true}
	s, _ := openMock(t, cfg)

	var packets, keys int
	require.NoError(t, s.ScanPackets(func(p *ports.Packet) {
		packets++
		if p.Keyframe {
			keys++
		}
	}))
	assert.Equal(t, 12, packets)
	assert.Equal(t, 3, keys)

	_, err := s.ReceiveFrame()
	assert.True(t, errors.Is(err, ErrEndOfStream))
}
