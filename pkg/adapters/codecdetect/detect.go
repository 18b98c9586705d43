// Package codecdetect identifies the video codec of an MP4 file from its
// sample descriptions.
package codecdetect

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/vidsample/pkg/adapters/memsource"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when the file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// DetectFromReader detects the video codec from an io.ReadSeeker. The
// reader is rewound to the start afterwards, also on failure.
func DetectFromReader(reader io.ReadSeeker) (codec Codec, err error) {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}
	defer func() {
		if _, serr := reader.Seek(0, io.SeekStart); serr != nil && err == nil {
			codec, err = CodecUnknown, fmt.Errorf("seek: %w", serr)
		}
	}()

	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}
	return DetectFromFile(mp4File)
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(memsource.New(data))
}

// DetectFromFile detects the codec of the first video track of a parsed file.
func DetectFromFile(mp4File *mp4.File) (Codec, error) {
	var traks []*mp4.TrakBox
	if mp4File.IsFragmented() && mp4File.Init != nil && mp4File.Init.Moov != nil {
		traks = mp4File.Init.Moov.Traks
	} else if mp4File.Moov != nil {
		traks = mp4File.Moov.Traks
	}

	for _, trak := range traks {
		if !IsVideoTrack(trak) {
			continue
		}
		return FromTrack(trak), nil
	}

	return CodecUnknown, ErrNoVideoTrack
}

// IsVideoTrack reports whether trak has a "vide" handler and a sample
// description.
func IsVideoTrack(trak *mp4.TrakBox) bool {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return false
	}
	return trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil
}

// FromTrack maps the sample entry type of a video track to a Codec.
func FromTrack(trak *mp4.TrakBox) Codec {
	if !IsVideoTrack(trak) {
		return CodecUnknown
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return CodecH264
		case "hvc1", "hev1":
			return CodecHEVC
		case "av01":
			return CodecAV1
		}
	}

	return CodecUnknown
}
