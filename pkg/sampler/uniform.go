package sampler

import (
	"errors"
	"fmt"
)

// SampleUniform fills buf with req.Frames frames spaced to the effective
// rate min(native, FPSCap), optionally starting from a random keypoint.
// Running out of frames pads the buffer and is not an error.
func SampleUniform(s *Session, buf *Buffer, req UniformRequest) (Stats, error) {
	var st Stats
	if err := req.Validate(); err != nil {
		return st, err
	}
	if buf.Frames != req.Frames {
		return st, fmt.Errorf("%w: buffer holds %d frames, request wants %d", ErrInvalidRequest, buf.Frames, req.Frames)
	}

	meta := s.Metadata()
	st.Seek = ComputeSeekTarget(meta, req.Frames, req.FPSCap, req.RandomSeek, req.Rand)
	if err := s.SeekToKeypoint(st.Seek); err != nil {
		return st, err
	}

	ratio := 1.0
	if native := meta.NativeRate(); native > 0 {
		ratio = native / req.FPSCap
	}
	excess := ratio - 1
	s.log.Debug("Sampling %d frames, native %.3f fps, cap %.3f fps, ratio %.3f",
		req.Frames, meta.NativeRate(), req.FPSCap, ratio)

	acc := 0.0
	for i := 0; i < buf.Frames; i++ {
		acc += excess
		for acc >= 1 {
			if _, err := s.ReceiveFrame(); err != nil {
				return finish(s, buf, st, err)
			}
			st.Dropped++
			acc--
		}

		f, err := s.ReceiveFrame()
		if err != nil {
			return finish(s, buf, st, err)
		}
		if err := s.Convert(f, buf.Slot(i), buf.Width, buf.Height, buf.Format); err != nil {
			return st, err
		}
		st.Written++
	}
	return st, nil
}

// finish pads on end of stream and passes any other error through.
func finish(s *Session, buf *Buffer, st Stats, err error) (Stats, error) {
	if !errors.Is(err, ErrEndOfStream) {
		return st, err
	}
	Pad(buf.Data, st.Written, buf.Frames, buf.FrameSize())
	st.Padded = buf.Frames - st.Written
	if st.Padded > 0 {
		if st.Written == 0 {
			s.log.Warn("No frames decoded, %d frames zero-filled", st.Padded)
		} else {
			s.log.Warn("Ran out of frames after %d of %d, looping", st.Written, buf.Frames)
		}
	}
	return st, nil
}
