package mp4backend

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/adapters/codecdetect"
	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/adapters/mp4demux"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/mocks"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

func fixture(t *testing.T, frames int) []byte {
	t.Helper()
	data, err := mocks.FragmentedMP4(mocks.MP4Config{
		Frames:           frames,
		FramesPerFrag:    10,
		KeyframeInterval: 10,
	})
	require.NoError(t, err)
	return data
}

func payloadOpener(dec **mocks.PayloadDecoder) *Opener {
	return &Opener{
		Decoders: map[codecdetect.Codec]DecoderFactory{
			codecdetect.CodecAV1: func(track *mp4demux.Track) (ports.FrameDecoder, error) {
				d := &mocks.PayloadDecoder{Width: track.Width, Height: track.Height}
				*dec = d
				return d, nil
			},
		},
		Scaler: pixconv.ScalerNearest,
	}
}

func TestOpener_Info(t *testing.T) {
	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(fixture(t, 30)))
	require.NoError(t, err)
	defer b.Close()

	info := b.Info()
	assert.Equal(t, "av1", info.Codec)
	assert.Equal(t, ports.Rational{Num: 1, Den: 12800}, info.TimeBase)
	assert.Equal(t, int64(30), info.FrameCount)
	assert.Equal(t, int64(30*512), info.Duration)
	assert.Equal(t, ports.Rational{Num: 25, Den: 1}, info.FrameRate)
	assert.Equal(t, int64(1_200_000), info.ContainerDurationUs)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
}

func TestOpener_UnsupportedCodec(t *testing.T) {
	o := &Opener{}
	_, err := o.Open(memsource.New(fixture(t, 5)))
	assert.True(t, errors.Is(err, ErrUnsupportedCodec))
}

func TestOpener_NotMP4(t *testing.T) {
	var dec *mocks.PayloadDecoder
	_, err := payloadOpener(&dec).Open(memsource.New([]byte("definitely not a video")))
	assert.Error(t, err)
}

func TestBackend_DecodeLoop(t *testing.T) {
	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(fixture(t, 12)))
	require.NoError(t, err)
	defer b.Close()

	var got []int64
	for {
		pkt, err := b.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, b.SendPacket(pkt))
		f, err := b.ReceiveFrame()
		require.NoError(t, err)
		assert.Equal(t, pkt.Keyframe, f.Keyframe)
		got = append(got, f.PTS)
	}
	require.NoError(t, b.Flush())
	_, err = b.ReceiveFrame()
	assert.True(t, errors.Is(err, ports.ErrEndOfStream))
	assert.Len(t, got, 12)
	assert.Equal(t, int64(11*512), got[11])
}

func TestBackend_ConvertRejectsStaleFrame(t *testing.T) {
	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(fixture(t, 3)))
	require.NoError(t, err)
	defer b.Close()

	dst := make([]byte, 64*48*3)
	for i := 0; i < 2; i++ {
		pkt, err := b.ReadPacket()
		require.NoError(t, err)
		require.NoError(t, b.SendPacket(pkt))
	}
	first, err := b.ReceiveFrame()
	require.NoError(t, err)
	second, err := b.ReceiveFrame()
	require.NoError(t, err)

	assert.True(t, errors.Is(b.Convert(first, dst, 64, 48, ports.PixelFormatRGB24), ports.ErrStaleFrame))
	require.NoError(t, b.Convert(second, dst, 64, 48, ports.PixelFormatRGB24))
	assert.Equal(t, 1, mocks.FrameIndex(dst))
}

func TestBackend_SeekResetsDecoder(t *testing.T) {
	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(fixture(t, 30)))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SeekKeyframe(int64(25*512)))
	assert.Equal(t, 1, dec.Resets())

	pkt, err := b.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(20*512), pkt.PTS)
	assert.True(t, pkt.Keyframe)
}

func TestBackend_CloseClosesDecoder(t *testing.T) {
	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(fixture(t, 3)))
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, dec.Closed())
	_, err = b.ReadPacket()
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSampler_IndicesThroughMP4(t *testing.T) {
	var dec *mocks.PayloadDecoder
	s, err := sampler.Open(payloadOpener(&dec), memsource.New(fixture(t, 30)), sampler.WithSessionID("mp4"))
	require.NoError(t, err)
	defer s.Close()

	buf := sampler.NewBuffer(3, 16, 12, ports.PixelFormatRGB24)
	st, err := sampler.SampleIndices(s, buf, sampler.IndexRequest{Indices: []int64{12, 13, 25}, Seek: true})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Written)
	assert.False(t, st.Fallback)
	assert.Equal(t, 1, dec.Resets())
	for i, want := range []int{12, 13, 25} {
		assert.Equal(t, want, mocks.FrameIndex(buf.Slot(i)), "slot %d", i)
	}
}

func TestSampler_UniformThroughMP4(t *testing.T) {
	var dec *mocks.PayloadDecoder
	s, err := sampler.Open(payloadOpener(&dec), memsource.New(fixture(t, 8)), sampler.WithSessionID("mp4"))
	require.NoError(t, err)
	defer s.Close()

	buf := sampler.NewBuffer(10, 64, 48, ports.PixelFormatRGB24)
	st, err := sampler.SampleUniform(s, buf, sampler.UniformRequest{Frames: 10, FPSCap: 25})
	require.NoError(t, err)
	assert.Equal(t, 8, st.Written)
	assert.Equal(t, 2, st.Padded)
	assert.Equal(t, 0, mocks.FrameIndex(buf.Slot(8)))
	assert.Equal(t, 1, mocks.FrameIndex(buf.Slot(9)))
}

func TestBackend_ProgressiveReorderedPTS(t *testing.T) {
	data, err := mocks.ProgressiveMP4(mocks.ProgressiveConfig{Frames: 8, KeyframeInterval: 4})
	require.NoError(t, err)

	var dec *mocks.PayloadDecoder
	b, err := payloadOpener(&dec).Open(memsource.New(data))
	require.NoError(t, err)
	defer b.Close()

	info := b.Info()
	assert.Equal(t, int64(8), info.FrameCount)
	assert.Equal(t, int64(512), info.StartTime)
	assert.Equal(t, int64(8*512), info.Duration)

	// Sync samples 1 and 5 are shown at 1024 and 3072.
	require.NoError(t, b.SeekKeyframe(3500))
	pkt, err := b.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(3072), pkt.PTS)
	assert.Equal(t, int64(4*512), pkt.DTS)
	assert.True(t, pkt.Keyframe)

	pkt, err = b.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(5*512), pkt.PTS)
	assert.False(t, pkt.Keyframe)
}

func TestRandomAccess(t *testing.T) {
	assert.Nil(t, randomAccess(codecdetect.CodecAV1))

	accept := randomAccess(codecdetect.CodecH264)
	require.NotNil(t, accept)
	idr := []byte{0, 0, 0, 2, 0x09, 0xf0, 0, 0, 0, 2, 0x65, 0x88}
	recovery := []byte{0, 0, 0, 2, 0x06, 0x05, 0, 0, 0, 2, 0x41, 0x9a}
	assert.True(t, accept(nil, idr))
	assert.False(t, accept(nil, recovery))
	assert.False(t, accept(nil, []byte{0, 0}))
}
