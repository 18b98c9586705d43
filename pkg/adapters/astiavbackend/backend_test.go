//go:build astiav

package astiavbackend

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsample/pkg/adapters/h264decoder"
	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

// mkvFixture encodes 30 MPEG-4 Part 2 frames into Matroska, or skips.
func mkvFixture(t *testing.T) []byte {
	t.Helper()
	ffmpeg, err := h264decoder.FindFFmpeg()
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	out := filepath.Join(t.TempDir(), "testsrc.mkv")
	cmd := exec.Command(ffmpeg, "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=25",
		"-frames:v", "30", "-c:v", "mpeg4", "-g", "10", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("encode fixture: %v: %s", err, output)
	}
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data
}

func TestOpen_Info(t *testing.T) {
	o := &Opener{Scaler: pixconv.ScalerBilinear}
	b, err := o.Open(memsource.New(mkvFixture(t)))
	require.NoError(t, err)
	defer b.Close()

	info := b.Info()
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Greater(t, info.ContainerDurationUs, int64(0))
	assert.True(t, info.TimeBase.Valid())
}

func TestOpen_NotAVideo(t *testing.T) {
	o := &Opener{}
	_, err := o.Open(memsource.New([]byte("plain text is not a container")))
	assert.Error(t, err)
}

func TestSampleIndices(t *testing.T) {
	o := &Opener{Scaler: pixconv.ScalerNearest}
	s, err := sampler.Open(o, memsource.New(mkvFixture(t)), sampler.WithSessionID("astiav"))
	require.NoError(t, err)
	defer s.Close()

	buf := sampler.NewBuffer(3, 32, 24, ports.PixelFormatRGB24)
	st, err := sampler.SampleIndices(s, buf, sampler.IndexRequest{Indices: []int64{0, 10, 20}, Seek: true})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Written)
	assert.Zero(t, st.Padded)
	assert.NotEqual(t, make([]byte, buf.FrameSize()), buf.Slot(1))
}

func TestConvertRejectsStaleFrame(t *testing.T) {
	o := &Opener{}
	b, err := o.Open(memsource.New(mkvFixture(t)))
	require.NoError(t, err)
	defer b.Close()

	err = b.Convert(&ports.Frame{}, make([]byte, 12), 2, 2, ports.PixelFormatRGB24)
	assert.True(t, errors.Is(err, ports.ErrStaleFrame))
}
