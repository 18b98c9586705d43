// Package probe reports stream metadata and cadence statistics of a video
// without decoding it.
package probe

import (
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sampler"
)

// vfrTolerance is the relative frame duration spread above which a stream
// counts as variable frame rate.
const vfrTolerance = 0.01

// Report describes one video stream.
type Report struct {
	Codec       string `json:"codec" yaml:"codec"`
	StreamIndex int    `json:"stream_index" yaml:"stream_index"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`

	TimeBase        string  `json:"time_base" yaml:"time_base"`
	StartTime       int64   `json:"start_time" yaml:"start_time"`
	Duration        int64   `json:"duration" yaml:"duration"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	FrameCount      int64   `json:"frame_count" yaml:"frame_count"`
	FrameRate       float64 `json:"frame_rate" yaml:"frame_rate"`

	// Packets is the number of demuxed video packets.
	Packets int `json:"packets" yaml:"packets"`
	// GOPs is the number of keyframes, i.e. independently decodable runs.
	GOPs int `json:"gops" yaml:"gops"`
	// MeanGOPLength is Packets / GOPs.
	MeanGOPLength float64 `json:"mean_gop_length" yaml:"mean_gop_length"`

	// Frame duration statistics in seconds, from sorted packet PTS.
	MeanFrameDuration   float64 `json:"mean_frame_duration" yaml:"mean_frame_duration"`
	StdDevFrameDuration float64 `json:"stddev_frame_duration" yaml:"stddev_frame_duration"`
	VariableFrameRate   bool    `json:"variable_frame_rate" yaml:"variable_frame_rate"`
}

// Probe opens src, scans its video packets and summarizes them.
func Probe(opener ports.BackendOpener, src io.ReadSeeker, opts ...sampler.Option) (*Report, error) {
	s, err := sampler.Open(opener, src, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	m := s.Metadata()
	r := &Report{
		Codec:           m.Codec,
		StreamIndex:     m.StreamIndex,
		Width:           m.Width,
		Height:          m.Height,
		TimeBase:        m.TimeBase.String(),
		StartTime:       m.StartTime,
		Duration:        m.Duration,
		DurationSeconds: m.DurationSeconds(),
		FrameCount:      m.FrameCount,
		FrameRate:       m.NativeRate(),
	}

	var pts []int64
	err = s.ScanPackets(func(p *ports.Packet) {
		r.Packets++
		if p.Keyframe {
			r.GOPs++
		}
		pts = append(pts, p.PTS)
	})
	if err != nil {
		return nil, err
	}

	if r.GOPs > 0 {
		r.MeanGOPLength = float64(r.Packets) / float64(r.GOPs)
	}
	durations := frameDurations(pts, m.TimeBase)
	if len(durations) > 0 {
		r.MeanFrameDuration, r.StdDevFrameDuration = stat.MeanStdDev(durations, nil)
		if len(durations) == 1 {
			r.StdDevFrameDuration = 0
		}
		r.VariableFrameRate = r.MeanFrameDuration > 0 &&
			r.StdDevFrameDuration/r.MeanFrameDuration > vfrTolerance
	}
	return r, nil
}

// frameDurations returns the gaps between consecutive presentation
// timestamps in seconds.
func frameDurations(pts []int64, tb ports.Rational) []float64 {
	if len(pts) < 2 {
		return nil
	}
	sorted := append([]int64(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		d := float64((sorted[i]-sorted[i-1])*tb.Num) / float64(tb.Den)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		out = append(out, d)
	}
	return out
}
