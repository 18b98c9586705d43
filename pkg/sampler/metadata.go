package sampler

import (
	"fmt"
	"math"

	"github.com/user/vidsample/pkg/ports"
)

// Metadata describes the selected video stream after derivation. Once a
// Session is open, Duration and FrameCount are positive.
type Metadata struct {
	StreamIndex int
	Codec       string

	TimeBase  ports.Rational
	StartTime int64
	Duration  int64 // in TimeBase units
	FrameRate ports.Rational

	FrameCount int64

	Width  int
	Height int
}

// DurationSeconds returns the stream duration in seconds.
func (m Metadata) DurationSeconds() float64 {
	if m.TimeBase.Den == 0 {
		return 0
	}
	return float64(m.Duration*m.TimeBase.Num) / float64(m.TimeBase.Den)
}

// NativeRate returns the stream's average frame rate in frames per second.
// When the backend reported none it is derived from count and duration.
func (m Metadata) NativeRate() float64 {
	if m.FrameRate.Valid() {
		return m.FrameRate.Float64()
	}
	if d := m.DurationSeconds(); d > 0 {
		return float64(m.FrameCount) / d
	}
	return 0
}

// AvgFrameDuration returns Duration / FrameCount in time base units.
func (m Metadata) AvgFrameDuration() float64 {
	return float64(m.Duration) / float64(m.FrameCount)
}

// deriveMetadata fills missing duration and frame count from the container
// duration and the average frame rate.
func deriveMetadata(info ports.StreamInfo) (Metadata, error) {
	m := Metadata{
		StreamIndex: info.StreamIndex,
		Codec:       info.Codec,
		TimeBase:    info.TimeBase,
		StartTime:   info.StartTime,
		Duration:    info.Duration,
		FrameRate:   info.FrameRate,
		FrameCount:  info.FrameCount,
		Width:       info.Width,
		Height:      info.Height,
	}

	if !m.TimeBase.Valid() {
		return m, fmt.Errorf("%w: invalid time base %d/%d", ErrStreamOpen, m.TimeBase.Num, m.TimeBase.Den)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return m, fmt.Errorf("%w: invalid frame size %dx%d", ErrStreamOpen, m.Width, m.Height)
	}

	us := float64(info.ContainerDurationUs)

	if m.FrameCount <= 0 && m.FrameRate.Valid() && us > 0 {
		n := us * float64(m.FrameRate.Num) / (float64(m.FrameRate.Den) * 1e6)
		if n > 0 {
			m.FrameCount = int64(math.Max(1, math.Floor(n)))
		}
	}
	if m.Duration <= 0 && us > 0 {
		m.Duration = int64(math.Floor(us * float64(m.TimeBase.Den) / (float64(m.TimeBase.Num) * 1e6)))
	}

	if m.FrameCount <= 0 || m.Duration <= 0 {
		return m, fmt.Errorf("%w: cannot determine frame count (%d) or duration (%d)", ErrStreamOpen, m.FrameCount, m.Duration)
	}
	return m, nil
}
