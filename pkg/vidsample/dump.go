package vidsample

import (
	"encoding/json"

	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

// runStats is saved next to the dumped frames of a run.
type runStats struct {
	Session   string  `json:"session"`
	Codec     string  `json:"codec"`
	Frames    int     `json:"frames"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Format    string  `json:"pixel_format"`
	Written   int     `json:"written"`
	Dropped   int     `json:"dropped"`
	Padded    int     `json:"padded"`
	Seek      bool    `json:"seek"`
	SeekPTS   int64   `json:"seek_pts"`
	Distance  float64 `json:"seek_distance"`
	Fallback  bool    `json:"fallback"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// dump hands res to the sink. Sink failures are logged and never fail the
// request.
func (l *Loader) dump(res *Result) {
	if !l.sink.Enabled() {
		return
	}
	frameSize := res.Width * res.Height * ports.BytesPerPixel
	for i := 0; i < res.Count; i++ {
		img, err := pixconv.Unpack(res.Frames[i*frameSize:(i+1)*frameSize], res.Width, res.Height, res.Format)
		if err == nil {
			err = l.sink.SaveFrame(res.SessionID, i, img)
		}
		if err != nil {
			l.log.Warn("Failed to save frame %d of %s: %s", i, res.SessionID, err.Error())
			return
		}
	}

	st := res.Stats
	data, err := json.MarshalIndent(runStats{
		Session:   res.SessionID,
		Codec:     res.Metadata.Codec,
		Frames:    res.Count,
		Width:     res.Width,
		Height:    res.Height,
		Format:    res.Format.String(),
		Written:   st.Written,
		Dropped:   st.Dropped,
		Padded:    st.Padded,
		Seek:      st.Seek.Seek,
		SeekPTS:   st.Seek.Timestamp,
		Distance:  st.Seek.Distance,
		Fallback:  st.Fallback,
		ElapsedMs: res.Elapsed.Milliseconds(),
	}, "", "  ")
	if err == nil {
		err = l.sink.SaveStats(res.SessionID, data)
	}
	if err != nil {
		l.log.Warn("Failed to save stats of %s: %s", res.SessionID, err.Error())
	}
}
