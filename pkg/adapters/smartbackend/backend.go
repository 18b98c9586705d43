// Package smartbackend picks a decoder backend for a video by probing its
// container and codec.
//
// MP4 files with H.264 or AV1 video are decoded through mp4backend with the
// ffmpeg pipe or libaom decoder. Everything else goes to a backend
// registered under the "astiav" name, when the binary was built with one.
package smartbackend

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/user/vidsample/pkg/adapters/av1decoder"
	"github.com/user/vidsample/pkg/adapters/codecdetect"
	"github.com/user/vidsample/pkg/adapters/h264decoder"
	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/adapters/mp4backend"
	"github.com/user/vidsample/pkg/adapters/mp4demux"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

// Backend names a decoding backend.
type Backend string

const (
	// BackendAuto selects a backend per video.
	BackendAuto Backend = "auto"
	// BackendMP4 is mp4backend with the built-in codec decoders.
	BackendMP4 Backend = "mp4"
	// BackendAstiav is the libav backend, available in astiav builds.
	BackendAstiav Backend = "astiav"
)

var (
	// ErrUnsupportedCodec is returned when no backend handles the codec.
	ErrUnsupportedCodec = errors.New("smartbackend: unsupported codec")
	// ErrNoDecoderAvailable is returned when the selected backend is not
	// available in this build or environment.
	ErrNoDecoderAvailable = errors.New("smartbackend: no decoder available")
)

var (
	registryMu sync.RWMutex
	registry   = map[Backend]ports.BackendOpener{}
)

// Register makes an opener available under name. Build-tagged files call
// it from init.
func Register(name Backend, opener ports.BackendOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = opener
}

func registered(name Backend) (ports.BackendOpener, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	o, ok := registry[name]
	return o, ok
}

// Available lists the backends usable in this build.
func Available() []Backend {
	out := []Backend{BackendAuto}
	if h264decoder.IsAvailable() || av1decoder.Available {
		out = append(out, BackendMP4)
	}
	registryMu.RLock()
	for name := range registry {
		out = append(out, name)
	}
	registryMu.RUnlock()
	rest := out[1:]
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return out
}

// Options configures backend selection.
type Options struct {
	// Backend forces a backend. Empty means BackendAuto.
	Backend Backend
	Scaler  pixconv.Scaler

	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// FFmpegArgs are extra ffmpeg input arguments for the H.264 decoder.
	FFmpegArgs string
}

// Selection reports the backend chosen for a video.
type Selection struct {
	Codec   codecdetect.Codec
	Backend Backend
}

// Opener implements ports.BackendOpener.
type Opener struct {
	opts Options
	mp4  *mp4backend.Opener
	log  ports.Logger
}

// New creates an opener. A nil logger discards messages.
func New(opts Options, log ports.Logger) *Opener {
	if opts.Backend == "" {
		opts.Backend = BackendAuto
	}
	if opts.FFmpegPath != "" {
		h264decoder.SetFFmpegPath(opts.FFmpegPath)
	}
	if log == nil {
		log = logger.NewNoop()
	}

	o := &Opener{opts: opts, log: log.WithComponent("backend")}
	o.mp4 = &mp4backend.Opener{
		Decoders: map[codecdetect.Codec]mp4backend.DecoderFactory{
			codecdetect.CodecH264: o.newH264,
			codecdetect.CodecAV1:  newAV1,
		},
		Scaler: opts.Scaler,
	}
	return o
}

func (o *Opener) newH264(track *mp4demux.Track) (ports.FrameDecoder, error) {
	return h264decoder.New(h264decoder.Options{
		Width:         track.Width,
		Height:        track.Height,
		ParameterSets: track.ParameterSets,
		ExtraArgs:     o.opts.FFmpegArgs,
	})
}

func newAV1(*mp4demux.Track) (ports.FrameDecoder, error) {
	return av1decoder.New()
}

// Select decides which backend decodes src and rewinds it.
func (o *Opener) Select(src io.ReadSeeker) (Selection, error) {
	switch o.opts.Backend {
	case BackendAuto:
	case BackendMP4:
		codec, err := codecdetect.DetectFromReader(src)
		if err != nil {
			return Selection{Codec: codec}, err
		}
		return Selection{Codec: codec, Backend: BackendMP4}, nil
	default:
		if _, ok := registered(o.opts.Backend); !ok {
			return Selection{}, fmt.Errorf("%w: backend %q", ErrNoDecoderAvailable, o.opts.Backend)
		}
		return Selection{Codec: codecdetect.CodecUnknown, Backend: o.opts.Backend}, nil
	}

	codec, err := codecdetect.DetectFromReader(src)
	if err == nil && mp4Supports(codec) {
		return Selection{Codec: codec, Backend: BackendMP4}, nil
	}
	if _, ok := registered(BackendAstiav); ok {
		return Selection{Codec: codec, Backend: BackendAstiav}, nil
	}

	switch {
	case errors.Is(err, codecdetect.ErrNoVideoTrack):
		return Selection{Codec: codec}, fmt.Errorf("smartbackend: %w", ports.ErrNoVideoStream)
	case err != nil:
		return Selection{Codec: codec}, fmt.Errorf("%w: not an MP4 file: %w", ErrNoDecoderAvailable, err)
	case codec == codecdetect.CodecH264 || codec == codecdetect.CodecAV1:
		return Selection{Codec: codec}, fmt.Errorf("%w: %s", ErrNoDecoderAvailable, codec)
	default:
		return Selection{Codec: codec}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
}

func mp4Supports(codec codecdetect.Codec) bool {
	switch codec {
	case codecdetect.CodecH264:
		return h264decoder.IsAvailable()
	case codecdetect.CodecAV1:
		return av1decoder.Available
	}
	return false
}

// Open implements ports.BackendOpener.
func (o *Opener) Open(src io.ReadSeeker) (ports.DecoderBackend, error) {
	sel, err := o.Select(src)
	if err != nil {
		return nil, err
	}
	o.log.Debug("Selected %s backend for %s", string(sel.Backend), string(sel.Codec))

	if sel.Backend == BackendMP4 {
		return o.mp4.Open(src)
	}
	opener, _ := registered(sel.Backend)
	return opener.Open(src)
}

var _ ports.BackendOpener = (*Opener)(nil)
