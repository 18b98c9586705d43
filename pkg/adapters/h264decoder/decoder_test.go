package h264decoder

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/user/vidsample/pkg/adapters/mp4demux"
	"github.com/user/vidsample/pkg/ports"
)

func TestAvccToAnnexB(t *testing.T) {
	avcc := []byte{
		0, 0, 0, 2, 0x65, 0x88,
		0, 0, 0, 3, 0x41, 0x9a, 0x01,
	}
	want := []byte{
		0, 0, 0, 1, 0x65, 0x88,
		0, 0, 0, 1, 0x41, 0x9a, 0x01,
	}
	if got := avccToAnnexB(avcc); !bytes.Equal(got, want) {
		t.Errorf("avccToAnnexB() = %x, want %x", got, want)
	}
}

func TestAvccToAnnexBTruncated(t *testing.T) {
	avcc := []byte{0, 0, 0, 2, 0x65, 0x88, 0, 0, 0, 9, 0x41}
	want := []byte{0, 0, 0, 1, 0x65, 0x88}
	if got := avccToAnnexB(avcc); !bytes.Equal(got, want) {
		t.Errorf("avccToAnnexB() = %x, want %x", got, want)
	}
}

func TestParameterSetsAnnexB(t *testing.T) {
	got := parameterSetsAnnexB([][]byte{{0x67, 0x42}, {0x68}})
	want := []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68}
	if !bytes.Equal(got, want) {
		t.Errorf("parameterSetsAnnexB() = %x, want %x", got, want)
	}
}

func TestPTSHeapOrdersTimestamps(t *testing.T) {
	var h ptsHeap
	for _, pts := range []int64{0, 1536, 512, 1024, 3072, 2048, 2560} {
		h.push(pts)
	}
	var got []int64
	for {
		pts, ok := h.pop()
		if !ok {
			break
		}
		got = append(got, pts)
	}
	want := []int64{0, 512, 1024, 1536, 2048, 2560, 3072}
	if len(got) != len(want) {
		t.Fatalf("popped %d timestamps, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pop %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFindFFmpegCustomPathMissing(t *testing.T) {
	SetFFmpegPath(filepath.Join(t.TempDir(), "no-ffmpeg"))
	defer SetFFmpegPath("")

	if _, err := FindFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("FindFFmpeg() error = %v, want ErrFFmpegNotFound", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("New(zero size) error = %v, want ErrInvalidSize", err)
	}
	if _, err := New(Options{Width: 64, Height: 48, ExtraArgs: `-threads "1`}); err == nil {
		t.Error("New() with unterminated quote should fail")
	}
}

func TestReceiveBeforeInput(t *testing.T) {
	if !IsAvailable() {
		t.Skip("ffmpeg not available")
	}
	dec, err := New(Options{Width: 64, Height: 48})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer dec.Close()

	if _, _, err := dec.ReceiveFrame(); !errors.Is(err, ports.ErrNeedMoreInput) {
		t.Errorf("ReceiveFrame() error = %v, want ErrNeedMoreInput", err)
	}
	if err := dec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if _, _, err := dec.ReceiveFrame(); !errors.Is(err, ports.ErrEndOfStream) {
		t.Errorf("ReceiveFrame() after flush error = %v, want ErrEndOfStream", err)
	}
}

// encodeTestMP4 writes a B-frame H.264 MP4 with libx264, or skips.
func encodeTestMP4(t *testing.T, frames int) string {
	t.Helper()
	path, err := FindFFmpeg()
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	out := filepath.Join(t.TempDir(), "testsrc.mp4")
	cmd := exec.Command(path, "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=25",
		"-frames:v", strconv.Itoa(frames), "-c:v", "libx264", "-g", "10", "-bf", "2",
		"-pix_fmt", "yuv420p", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("libx264 encode failed: %v: %s", err, output)
	}
	return out
}

func TestDecodeMP4(t *testing.T) {
	path := encodeTestMP4(t, 50)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	demux, err := mp4demux.Open(f)
	if err != nil {
		t.Fatalf("mp4demux.Open() error = %v", err)
	}
	track := demux.Track()

	dec, err := New(Options{
		Width:         track.Width,
		Height:        track.Height,
		ParameterSets: track.ParameterSets,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer dec.Close()

	var got []int64
	receive := func() bool {
		for {
			img, pts, err := dec.ReceiveFrame()
			switch {
			case errors.Is(err, ports.ErrNeedMoreInput):
				return true
			case errors.Is(err, ports.ErrEndOfStream):
				return false
			case err != nil:
				t.Fatalf("ReceiveFrame() error = %v", err)
			}
			if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
				t.Fatalf("frame size = %v, want 64x48", b)
			}
			got = append(got, pts)
		}
	}

	for {
		s, data, err := demux.ReadSample()
		if err != nil {
			break
		}
		if err := dec.SendPacket(data, s.PTS, s.Sync); err != nil {
			t.Fatalf("SendPacket(%d) error = %v", s.Number, err)
		}
		receive()
	}
	if err := dec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	for receive() {
	}

	if len(got) != 50 {
		t.Fatalf("decoded %d frames, want 50", len(got))
	}
	var want []int64
	for _, s := range track.Samples {
		want = append(want, s.PTS)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d pts = %d, want %d", i, got[i], want[i])
		}
	}
}
