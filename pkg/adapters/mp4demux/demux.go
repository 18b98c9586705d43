// Package mp4demux indexes the first video track of a progressive or
// fragmented MP4 file and reads its samples in decode order.
package mp4demux

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/vidsample/pkg/adapters/codecdetect"
	"github.com/user/vidsample/pkg/ports"
)

var (
	// ErrNoVideoTrack is returned when the file has no usable video track.
	ErrNoVideoTrack = fmt.Errorf("mp4demux: %w", ports.ErrNoVideoStream)

	// ErrNoSamples is returned when the video track holds no samples.
	ErrNoSamples = errors.New("mp4demux: video track has no samples")
)

// Sample is one access unit of the video track.
type Sample struct {
	Number int // 1-based, decode order
	DTS    int64
	PTS    int64
	Dur    uint32
	Sync   bool

	// Progressive files are read lazily from offset; fragmented files keep
	// the data decoded by mp4ff.
	offset int64
	size   uint32
	data   []byte
}

// Track describes the indexed video track. Times are in Timescale units.
type Track struct {
	// Index is the position of the track in the moov box.
	Index     int
	ID        uint32
	Codec     codecdetect.Codec
	Timescale uint32
	Width     int
	Height    int

	// Duration is the media duration; 0 when neither mdhd nor the samples
	// give one.
	Duration int64
	// MovieDurationUs is the mvhd duration in microseconds, 0 if absent.
	MovieDurationUs int64

	// ParameterSets holds out-of-band codec configuration: SPS and PPS NAL
	// units for H.264, config OBUs for AV1.
	ParameterSets [][]byte

	Samples []Sample
}

// StartTime returns the smallest presentation timestamp.
func (t *Track) StartTime() int64 {
	if len(t.Samples) == 0 {
		return 0
	}
	start := int64(math.MaxInt64)
	for _, s := range t.Samples {
		start = min(start, s.PTS)
	}
	return start
}

// FrameRate returns the average frame rate as samples per duration.
func (t *Track) FrameRate() ports.Rational {
	if t.Duration <= 0 || len(t.Samples) == 0 {
		return ports.Rational{}
	}
	return reduce(ports.Rational{Num: int64(len(t.Samples)) * int64(t.Timescale), Den: t.Duration})
}

// SyncCount returns the number of sync samples, i.e. GOPs.
func (t *Track) SyncCount() int {
	n := 0
	for _, s := range t.Samples {
		if s.Sync {
			n++
		}
	}
	return n
}

// Demuxer reads samples of one track. It is not safe for concurrent use.
type Demuxer struct {
	r     io.ReadSeeker
	track *Track
	next  int
}

// Open parses the file and indexes its first video track.
func Open(r io.ReadSeeker) (*Demuxer, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mp4demux: seek: %w", err)
	}
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("mp4demux: decode mp4: %w", err)
	}

	var track *Track
	if f.IsFragmented() {
		track, err = indexFragmented(f)
	} else {
		track, err = indexProgressive(f)
	}
	if err != nil {
		return nil, err
	}
	if len(track.Samples) == 0 {
		return nil, ErrNoSamples
	}
	return &Demuxer{r: r, track: track}, nil
}

// Track returns the indexed track.
func (d *Demuxer) Track() *Track {
	return d.track
}

// ReadSample returns the next sample and its data, or io.EOF.
func (d *Demuxer) ReadSample() (*Sample, []byte, error) {
	if d.next >= len(d.track.Samples) {
		return nil, nil, io.EOF
	}
	s := &d.track.Samples[d.next]
	d.next++

	data, err := d.sampleData(s)
	if err != nil {
		return nil, nil, err
	}
	return s, data, nil
}

func (d *Demuxer) sampleData(s *Sample) ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	data := make([]byte, s.size)
	if _, err := d.r.Seek(s.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mp4demux: seek to sample %d: %w", s.Number, err)
	}
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, fmt.Errorf("mp4demux: read sample %d: %w", s.Number, err)
	}
	return data, nil
}

// SeekKeyframe positions the demuxer on the last sync sample whose PTS is
// at or before pts, or on the first sample. It returns the sample number.
func (d *Demuxer) SeekKeyframe(pts int64) int {
	n, _ := d.SeekKeyframeFunc(pts, nil)
	return n
}

// SeekKeyframeFunc is SeekKeyframe restricted to sync samples accepted by
// accept, which sees the sample data. A nil accept takes every sync sample.
func (d *Demuxer) SeekKeyframeFunc(pts int64, accept func(s *Sample, data []byte) bool) (int, error) {
	target := 0
	for i := len(d.track.Samples) - 1; i >= 0; i-- {
		s := &d.track.Samples[i]
		if !s.Sync || s.PTS > pts {
			continue
		}
		if accept != nil {
			data, err := d.sampleData(s)
			if err != nil {
				return 0, err
			}
			if !accept(s, data) {
				continue
			}
		}
		target = i
		break
	}
	d.next = target
	return d.track.Samples[target].Number, nil
}

func findVideoTrack(traks []*mp4.TrakBox) (int, *mp4.TrakBox) {
	for i, trak := range traks {
		if codecdetect.IsVideoTrack(trak) {
			return i, trak
		}
	}
	return -1, nil
}

func newTrack(index int, trak *mp4.TrakBox, mvhd *mp4.MvhdBox) *Track {
	t := &Track{
		Index:     index,
		ID:        trak.Tkhd.TrackID,
		Codec:     codecdetect.FromTrack(trak),
		Timescale: 1000,
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		t.Timescale = trak.Mdia.Mdhd.Timescale
		t.Duration = int64(trak.Mdia.Mdhd.Duration)
	}
	if mvhd != nil && mvhd.Timescale > 0 {
		t.MovieDurationUs = int64(mvhd.Duration) * 1_000_000 / int64(mvhd.Timescale)
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		vse, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		t.Width, t.Height = int(vse.Width), int(vse.Height)
		for _, c := range vse.Children {
			switch cfg := c.(type) {
			case *mp4.AvcCBox:
				t.ParameterSets = append(t.ParameterSets, cfg.SPSnalus...)
				t.ParameterSets = append(t.ParameterSets, cfg.PPSnalus...)
			case *mp4.Av1CBox:
				if len(cfg.ConfigOBUs) > 0 {
					t.ParameterSets = append(t.ParameterSets, cfg.ConfigOBUs)
				}
			}
		}
		break
	}
	return t
}

func indexProgressive(f *mp4.File) (*Track, error) {
	if f.Moov == nil {
		return nil, fmt.Errorf("mp4demux: no moov box found")
	}
	idx, trak := findVideoTrack(f.Moov.Traks)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}
	t := newTrack(idx, trak, f.Moov.Mvhd)

	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil || stbl.Stts == nil {
		return nil, fmt.Errorf("mp4demux: incomplete sample table")
	}
	if stbl.Stco == nil && stbl.Co64 == nil {
		return nil, fmt.Errorf("mp4demux: no stco or co64 box")
	}

	count := int(stbl.Stsz.SampleNumber)
	t.Samples = make([]Sample, 0, count)

	var offset int64
	for nr := 1; nr <= count; nr++ {
		chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(nr)
		if err != nil {
			return nil, fmt.Errorf("mp4demux: sample %d: %w", nr, err)
		}
		if nr == firstInChunk {
			co, err := chunkOffset(stbl, chunkNr)
			if err != nil {
				return nil, fmt.Errorf("mp4demux: sample %d: %w", nr, err)
			}
			offset = int64(co)
		}

		size := stbl.Stsz.GetSampleSize(nr)
		dts, dur := stbl.Stts.GetDecodeTime(uint32(nr))
		pts := int64(dts)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(uint32(nr)))
		}

		t.Samples = append(t.Samples, Sample{
			Number: nr,
			DTS:    int64(dts),
			PTS:    pts,
			Dur:    dur,
			Sync:   stbl.Stss == nil || stbl.Stss.IsSyncSample(uint32(nr)), // no stss: all sync
			offset: offset,
			size:   size,
		})
		offset += int64(size)
	}

	if t.Duration <= 0 {
		t.Duration = sampleSpan(t.Samples)
	}
	return t, nil
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (uint64, error) {
	if stbl.Stco != nil {
		return stbl.Stco.GetOffset(chunkNr)
	}
	if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
		return 0, fmt.Errorf("chunk nr %d out of range", chunkNr)
	}
	return stbl.Co64.ChunkOffset[chunkNr-1], nil
}

func indexFragmented(f *mp4.File) (*Track, error) {
	if f.Init == nil || f.Init.Moov == nil {
		return nil, fmt.Errorf("mp4demux: no init segment found")
	}
	moov := f.Init.Moov
	idx, trak := findVideoTrack(moov.Traks)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}
	t := newTrack(idx, trak, moov.Mvhd)

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, tr := range moov.Mvex.Trexs {
			if tr.TrackID == t.ID {
				trex = tr
				break
			}
		}
	}

	nr := 0
	var next uint64
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != t.ID {
					continue
				}
				if traf.Tfdt != nil {
					next = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("mp4demux: get samples: %w", err)
				}
				for _, s := range samples {
					nr++
					t.Samples = append(t.Samples, Sample{
						Number: nr,
						DTS:    int64(next),
						PTS:    int64(next) + int64(s.CompositionTimeOffset),
						Dur:    s.Dur,
						Sync:   mp4.IsSyncSampleFlags(s.Flags),
						size:   uint32(len(s.Data)),
						data:   s.Data,
					})
					next += uint64(s.Dur)
				}
			}
		}
	}

	// mdhd of a fragmented file usually says 0.
	if span := sampleSpan(t.Samples); span > t.Duration {
		t.Duration = span
	}
	if t.MovieDurationUs <= 0 && t.Timescale > 0 {
		t.MovieDurationUs = t.Duration * 1_000_000 / int64(t.Timescale)
	}
	return t, nil
}

// sampleSpan is the presentation span of the samples.
func sampleSpan(samples []Sample) int64 {
	if len(samples) == 0 {
		return 0
	}
	first, last := int64(math.MaxInt64), int64(math.MinInt64)
	for _, s := range samples {
		first = min(first, s.PTS)
		last = max(last, s.PTS+int64(s.Dur))
	}
	return last - first
}

func reduce(r ports.Rational) ports.Rational {
	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return r
	}
	return ports.Rational{Num: r.Num / a, Den: r.Den / a}
}
