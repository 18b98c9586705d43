package codecdetect

import (
	"errors"
	"io"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/mocks"
)

func TestDetectFromBytes_AV1(t *testing.T) {
	data, err := mocks.FragmentedMP4(mocks.MP4Config{Frames: 4})
	require.NoError(t, err)

	codec, err := DetectFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, CodecAV1, codec)
}

func TestDetectFromReader_Rewinds(t *testing.T) {
	data, err := mocks.FragmentedMP4(mocks.MP4Config{Frames: 4})
	require.NoError(t, err)
	src := memsource.New(data)

	_, err = DetectFromReader(src)
	require.NoError(t, err)
	pos, err := src.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestDetectFromBytes_NotMP4(t *testing.T) {
	codec, err := DetectFromBytes([]byte("definitely not a video"))
	assert.Error(t, err)
	assert.Equal(t, CodecUnknown, codec)
}

func TestDetectFromFile_NoVideoTrack(t *testing.T) {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "en")

	codec, err := DetectFromFile(&mp4.File{Moov: init.Moov})
	assert.True(t, errors.Is(err, ErrNoVideoTrack))
	assert.Equal(t, CodecUnknown, codec)
}

func TestFromTrack(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  Codec
	}{
		{"avc1", "avc1", CodecH264},
		{"avc3", "avc3", CodecH264},
		{"hvc1", "hvc1", CodecHEVC},
		{"av01", "av01", CodecAV1},
		{"vp09", "vp09", CodecUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			init := mp4.CreateEmptyInit()
			init.AddEmptyTrack(12800, "video", "und")
			trak := init.Moov.Trak
			trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox(tt.entry, 64, 48, nil))

			assert.Equal(t, tt.want, FromTrack(trak))
		})
	}
}
