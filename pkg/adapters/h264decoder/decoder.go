// Package h264decoder decodes H.264 elementary streams with an external
// ffmpeg process.
//
// One ffmpeg process lives for a decode run: access units are written to its
// stdin as Annex B and RGBA frames are read back from stdout. Reset kills the
// process, and the next keyframe starts a new one.
//
// Raw output carries no timestamps. Each frame takes the smallest pending
// PTS, so a picture ffmpeg drops shifts every later PTS of the run by one
// slot. Decode runs must therefore start on an IDR access unit, where
// ffmpeg drops nothing; mp4backend seeks H.264 tracks accordingly.
package h264decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/user/vidsample/pkg/ports"
)

var (
	// ErrDecodeFailed is returned when the ffmpeg process fails.
	ErrDecodeFailed = errors.New("h264decoder: decode failed")

	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("h264decoder: decoder closed")

	// ErrInvalidSize is returned for non-positive output dimensions.
	ErrInvalidSize = errors.New("h264decoder: invalid frame size")
)

const (
	defaultLookahead = 16
	defaultWait      = 2 * time.Second
	frameQueue       = 64
)

// Options configures a Decoder.
type Options struct {
	// Width and Height are the coded picture size. Frames are scaled to it.
	Width  int
	Height int

	// ParameterSets are the SPS and PPS NAL units from the container. They
	// are repeated in front of every keyframe.
	ParameterSets [][]byte

	// ExtraArgs are additional ffmpeg input arguments, split like a shell.
	ExtraArgs string

	// Lookahead is the number of packets allowed in flight before
	// ReceiveFrame waits for output. Zero selects 16.
	Lookahead int

	// Wait bounds how long ReceiveFrame waits once Lookahead is exceeded.
	Wait time.Duration
}

// Decoder implements ports.FrameDecoder. It is not safe for concurrent use.
type Decoder struct {
	opts      Options
	path      string
	extra     []string
	frameSize int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	frames chan []byte

	pts      ptsHeap
	lastPTS  int64
	inflight int
	flushed  bool
	closed   bool
}

// New locates ffmpeg and prepares a decoder. The process starts with the
// first packet.
func New(opts Options) (*Decoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = defaultLookahead
	}
	if opts.Wait <= 0 {
		opts.Wait = defaultWait
	}

	extra, err := shlex.Split(opts.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("h264decoder: parse ffmpeg args: %w", err)
	}
	path, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}

	return &Decoder{
		opts:      opts,
		path:      path,
		extra:     extra,
		frameSize: opts.Width * opts.Height * 4,
		lastPTS:   -1,
	}, nil
}

func (d *Decoder) args() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
	}
	args = append(args, d.extra...)
	return append(args,
		"-f", "h264",
		"-i", "pipe:0",
		"-vsync", "passthrough",
		"-vf", "scale="+strconv.Itoa(d.opts.Width)+":"+strconv.Itoa(d.opts.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)
}

func (d *Decoder) start() error {
	cmd := exec.Command(d.path, d.args()...)
	d.stderr.Reset()
	cmd.Stderr = &d.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("h264decoder: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("h264decoder: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("h264decoder: start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.frames = make(chan []byte, frameQueue)
	go readFrames(stdout, d.frameSize, d.frames)
	return nil
}

func readFrames(r io.Reader, size int, out chan<- []byte) {
	defer close(out)
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		out <- buf
	}
}

// SendPacket writes one AVCC access unit to ffmpeg.
func (d *Decoder) SendPacket(data []byte, pts int64, keyframe bool) error {
	if d.closed {
		return ErrClosed
	}
	if d.flushed {
		return fmt.Errorf("%w: packet after flush", ErrDecodeFailed)
	}
	if d.cmd == nil {
		if err := d.start(); err != nil {
			return err
		}
	}

	var unit []byte
	if keyframe {
		unit = parameterSetsAnnexB(d.opts.ParameterSets)
	}
	unit = append(unit, avccToAnnexB(data)...)
	if _, err := d.stdin.Write(unit); err != nil {
		return d.fail(err)
	}
	d.pts.push(pts)
	d.inflight++
	return nil
}

// ReceiveFrame returns the next frame in presentation order.
func (d *Decoder) ReceiveFrame() (image.Image, int64, error) {
	if d.closed {
		return nil, 0, ErrClosed
	}
	if d.cmd == nil {
		if d.flushed {
			return nil, 0, ports.ErrEndOfStream
		}
		return nil, 0, ports.ErrNeedMoreInput
	}

	var buf []byte
	var ok bool
	switch {
	case d.flushed:
		buf, ok = <-d.frames
	case d.inflight > d.opts.Lookahead:
		select {
		case buf, ok = <-d.frames:
		case <-time.After(d.opts.Wait):
			return nil, 0, ports.ErrNeedMoreInput
		}
	default:
		select {
		case buf, ok = <-d.frames:
		default:
			return nil, 0, ports.ErrNeedMoreInput
		}
	}
	if !ok {
		return nil, 0, d.finish()
	}

	img := &image.RGBA{
		Pix:    buf,
		Stride: d.opts.Width * 4,
		Rect:   image.Rect(0, 0, d.opts.Width, d.opts.Height),
	}
	pts, ok := d.pts.pop()
	if !ok {
		pts = d.lastPTS + 1
	}
	d.lastPTS = pts
	d.inflight--
	return img, pts, nil
}

// finish reaps a process whose output ended.
func (d *Decoder) finish() error {
	err := d.cmd.Wait()
	flushed := d.flushed
	d.cmd, d.stdin, d.frames = nil, nil, nil
	if err != nil {
		return fmt.Errorf("%w: %w: %s", ErrDecodeFailed, err, bytes.TrimSpace(d.stderr.Bytes()))
	}
	if !flushed {
		return fmt.Errorf("%w: ffmpeg exited before end of input", ErrDecodeFailed)
	}
	return ports.ErrEndOfStream
}

// fail kills the process after a write error and reports its stderr.
func (d *Decoder) fail(werr error) error {
	d.kill()
	return fmt.Errorf("%w: %w: %s", ErrDecodeFailed, werr, bytes.TrimSpace(d.stderr.Bytes()))
}

// Flush closes ffmpeg's input so it drains the remaining frames.
func (d *Decoder) Flush() error {
	if d.closed {
		return ErrClosed
	}
	d.flushed = true
	if d.stdin == nil {
		return nil
	}
	if err := d.stdin.Close(); err != nil {
		return fmt.Errorf("h264decoder: close stdin: %w", err)
	}
	return nil
}

// Reset stops the running process and clears pending timestamps.
func (d *Decoder) Reset() error {
	if d.closed {
		return ErrClosed
	}
	d.kill()
	d.pts = d.pts[:0]
	d.lastPTS = -1
	d.inflight = 0
	d.flushed = false
	return nil
}

func (d *Decoder) kill() {
	if d.cmd == nil {
		return
	}
	d.stdin.Close()
	d.cmd.Process.Kill()
	for range d.frames {
	}
	d.cmd.Wait()
	d.cmd, d.stdin, d.frames = nil, nil, nil
}

// Close stops ffmpeg. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.kill()
	d.closed = true
	return nil
}

var _ ports.FrameDecoder = (*Decoder)(nil)
