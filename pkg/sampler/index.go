package sampler

import (
	"fmt"
	"math"
)

// indexTolerance absorbs floating point error when mapping a PTS onto a
// frame index.
const indexTolerance = 1e-6

// SampleIndices fills buf with the frames at req.Indices. Frames are
// decoded forward only; an index at or past the frame count, or the end of
// the stream, pads the rest of the buffer.
func SampleIndices(s *Session, buf *Buffer, req IndexRequest) (Stats, error) {
	var st Stats
	if err := req.Validate(); err != nil {
		return st, err
	}
	if buf.Frames != len(req.Indices) {
		return st, fmt.Errorf("%w: buffer holds %d frames, request wants %d", ErrInvalidRequest, buf.Frames, len(req.Indices))
	}

	meta := s.Metadata()
	avg := meta.AvgFrameDuration()
	frameIndex := func(pts int64) int64 {
		return int64(math.Floor(float64(pts-meta.StartTime)/avg + indexTolerance))
	}

	// cur is the index of the last accepted frame.
	cur := int64(-1)
	first := req.Indices[0]

	if req.Seek && first > 0 && first < meta.FrameCount {
		ts := meta.StartTime + int64(math.Floor(float64(first)*avg))
		if err := s.SeekKeyframe(ts); err != nil {
			return st, err
		}
		f, err := s.ReceiveFrame()
		if err != nil {
			return finish(s, buf, st, err)
		}
		s.advance(f)
		cur = frameIndex(f.PTS)

		switch {
		case cur > first:
			// Variable frame rate streams can land past the target.
			s.log.Warn("Seek for frame %d landed on frame %d, decoding from the start", first, cur)
			st.Fallback = true
			if err := s.SeekKeyframe(meta.StartTime); err != nil {
				return st, err
			}
			cur = -1
		case cur == first:
			if err := s.Convert(f, buf.Slot(0), buf.Width, buf.Height, buf.Format); err != nil {
				return st, err
			}
			st.Written++
		}
		s.log.Debug("Seeked to %d for frame %d, now at frame %d", ts, first, cur)
	}

	for slot := st.Written; slot < len(req.Indices); slot++ {
		target := req.Indices[slot]
		if target >= meta.FrameCount {
			s.log.Debug("Frame %d is past the last frame %d", target, meta.FrameCount-1)
			return finish(s, buf, st, ErrEndOfStream)
		}
		for cur < target {
			f, err := s.ReceiveFrame()
			if err != nil {
				return finish(s, buf, st, err)
			}
			if !s.advance(f) {
				st.Dropped++
				continue
			}
			cur++
			if cur == target {
				if err := s.Convert(f, buf.Slot(slot), buf.Width, buf.Height, buf.Format); err != nil {
					return st, err
				}
				st.Written++
			}
		}
	}
	return st, nil
}
