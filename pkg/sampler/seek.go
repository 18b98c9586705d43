package sampler

import (
	"errors"
	"math"
	"math/rand/v2"
)

// SeekTarget is a keypoint chosen for a uniform request.
type SeekTarget struct {
	// Timestamp is the target in stream time base units.
	Timestamp int64
	// Distance is the offset from the stream start in seconds.
	Distance float64
	// Seek is false when the request starts at the beginning.
	Seek bool
}

// ComputeSeekTarget picks a random start so that the requested frames at
// the effective rate still fit before the end of the stream. A nil rng
// uses the package-level generator.
func ComputeSeekTarget(meta Metadata, frames int, fpsCap float64, randomSeek bool, rng *rand.Rand) SeekTarget {
	none := SeekTarget{Timestamp: meta.StartTime}
	if !randomSeek {
		return none
	}

	rate := meta.NativeRate()
	if fpsCap > 0 && fpsCap < rate {
		rate = fpsCap
	}
	if rate <= 0 {
		return none
	}

	window := meta.DurationSeconds() - float64(frames)/rate
	if window <= 0 {
		return none
	}

	var u float64
	if rng != nil {
		u = rng.Float64()
	} else {
		u = rand.Float64()
	}
	distance := u * window
	return SeekTarget{
		Timestamp: meta.StartTime + int64(math.Round(distance*float64(meta.TimeBase.Den)/float64(meta.TimeBase.Num))),
		Distance:  distance,
		Seek:      true,
	}
}

// SeekToKeypoint seeks backward to the keyframe before t and discards
// frames preceding t.Timestamp. Running out of frames while skipping is
// not an error; the next ReceiveFrame reports it.
func (s *Session) SeekToKeypoint(t SeekTarget) error {
	if !t.Seek {
		return nil
	}
	if err := s.SeekKeyframe(t.Timestamp); err != nil {
		return err
	}
	skipped, err := s.SkipUntil(t.Timestamp)
	if err != nil && !errors.Is(err, ErrEndOfStream) {
		return err
	}
	s.log.Debug("Skipped %d frames to reach %d (%.3fs)", skipped, t.Timestamp, t.Distance)
	return nil
}
