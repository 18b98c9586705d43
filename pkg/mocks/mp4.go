package mocks

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

// MP4Config describes a synthetic fragmented AV1 MP4 file. Sample payloads
// are opaque bytes; the file demuxes but does not decode.
type MP4Config struct {
	Frames           int
	FramesPerFrag    int
	KeyframeInterval int
	Timescale        uint32
	SampleDur        uint32
	Width, Height    uint16
}

// FragmentedMP4 builds the file described by cfg. Sample i carries the
// payload {byte(i), byte(i >> 8), 0xa1}.
func FragmentedMP4(cfg MP4Config) ([]byte, error) {
	if cfg.FramesPerFrag <= 0 {
		cfg.FramesPerFrag = cfg.Frames
	}
	if cfg.Timescale == 0 {
		cfg.Timescale = 12800
	}
	if cfg.SampleDur == 0 {
		cfg.SampleDur = 512
	}
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 64, 48
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(cfg.Timescale, "video", "en")
	trak := init.Moov.Trak

	av1C := &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:            1,
			ChromaSubsamplingX: 1,
			ChromaSubsamplingY: 1,
			ConfigOBUs:         []byte{0x0a, 0x0b, 0x00},
		},
	}
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("av01", cfg.Width, cfg.Height, av1C))
	trak.Tkhd.Width = mp4.Fixed32(uint32(cfg.Width) << 16)
	trak.Tkhd.Height = mp4.Fixed32(uint32(cfg.Height) << 16)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	for start, seq := 0, uint32(1); start < cfg.Frames; start, seq = start+cfg.FramesPerFrag, seq+1 {
		frag, err := mp4.CreateFragment(seq, trak.Tkhd.TrackID)
		if err != nil {
			return nil, fmt.Errorf("create fragment: %w", err)
		}
		for i := start; i < min(start+cfg.FramesPerFrag, cfg.Frames); i++ {
			flags := mp4.NonSyncSampleFlags
			if cfg.KeyframeInterval <= 1 || i%cfg.KeyframeInterval == 0 {
				flags = mp4.SyncSampleFlags
			}
			data := []byte{byte(i), byte(i >> 8), 0xa1}
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags: flags,
					Size:  uint32(len(data)),
					Dur:   cfg.SampleDur,
				},
				DecodeTime: uint64(i) * uint64(cfg.SampleDur),
				Data:       data,
			})
		}
		if err := frag.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode fragment: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ProgressiveConfig describes a synthetic progressive AV1 MP4 file with
// reordered presentation times.
type ProgressiveConfig struct {
	Frames int
	// SamplesPerChunk groups samples into stsc chunks. Defaults to 4.
	SamplesPerChunk int
	// KeyframeInterval lists every n-th sample in stss. It should be even
	// so that keyframes carry the larger composition offset.
	KeyframeInterval int
	Timescale        uint32
	SampleDur        uint32
	Width, Height    uint16
	// Co64 writes 64-bit chunk offsets instead of stco.
	Co64 bool
}

// ProgressiveDefaults fills the zero fields of cfg.
func ProgressiveDefaults(cfg ProgressiveConfig) ProgressiveConfig {
	if cfg.SamplesPerChunk <= 0 {
		cfg.SamplesPerChunk = 4
	}
	if cfg.Timescale == 0 {
		cfg.Timescale = 12800
	}
	if cfg.SampleDur == 0 {
		cfg.SampleDur = 512
	}
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 64, 48
	}
	return cfg
}

// ProgressiveCompOffset is the ctts offset of the 0-based sample i. Even
// samples are shown one slot after their odd successor, giving the
// decode/presentation order 1 0 3 2 5 4 ...
func ProgressiveCompOffset(i int, dur uint32) int32 {
	if i%2 == 0 {
		return int32(2 * dur)
	}
	return 0
}

// ProgressiveMP4 builds the file described by cfg with moov ahead of a
// single mdat. Sample i carries the same payload as in FragmentedMP4.
func ProgressiveMP4(cfg ProgressiveConfig) ([]byte, error) {
	cfg = ProgressiveDefaults(cfg)
	if cfg.Frames <= 0 {
		return nil, errors.New("progressive mp4 needs frames")
	}

	moov := mp4.NewMoovBox()
	mvhd := mp4.CreateMvhd()
	mvhd.Timescale = cfg.Timescale
	mvhd.Duration = uint64(cfg.Frames) * uint64(cfg.SampleDur)
	moov.AddChild(mvhd)
	trak := mp4.CreateEmptyTrak(1, cfg.Timescale, "video", "und")
	moov.AddChild(trak)

	av1C := &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:            1,
			ChromaSubsamplingX: 1,
			ChromaSubsamplingY: 1,
			ConfigOBUs:         []byte{0x0a, 0x0b, 0x00},
		},
	}
	stbl := trak.Mdia.Minf.Stbl
	stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("av01", cfg.Width, cfg.Height, av1C))
	trak.Tkhd.Width = mp4.Fixed32(uint32(cfg.Width) << 16)
	trak.Tkhd.Height = mp4.Fixed32(uint32(cfg.Height) << 16)
	trak.Mdia.Mdhd.Duration = mvhd.Duration

	stbl.Stts.SampleCount = []uint32{uint32(cfg.Frames)}
	stbl.Stts.SampleTimeDelta = []uint32{cfg.SampleDur}

	var payload []byte
	counts := make([]uint32, cfg.Frames)
	offsets := make([]int32, cfg.Frames)
	stss := &mp4.StssBox{}
	for i := 0; i < cfg.Frames; i++ {
		data := []byte{byte(i), byte(i >> 8), 0xa1}
		payload = append(payload, data...)
		stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(data)))
		counts[i], offsets[i] = 1, ProgressiveCompOffset(i, cfg.SampleDur)
		if cfg.KeyframeInterval <= 1 || i%cfg.KeyframeInterval == 0 {
			stss.SampleNumber = append(stss.SampleNumber, uint32(i+1))
		}
	}
	stbl.Stsz.SampleNumber = uint32(cfg.Frames)

	ctts := &mp4.CttsBox{}
	if err := ctts.AddSampleCountsAndOffset(counts, offsets); err != nil {
		return nil, fmt.Errorf("ctts: %w", err)
	}
	stbl.AddChild(ctts)
	stbl.AddChild(stss)

	if err := stbl.Stsc.AddEntry(1, uint32(cfg.SamplesPerChunk), 1); err != nil {
		return nil, fmt.Errorf("stsc: %w", err)
	}
	chunks := (cfg.Frames + cfg.SamplesPerChunk - 1) / cfg.SamplesPerChunk
	var co64 *mp4.Co64Box
	if cfg.Co64 {
		co64 = &mp4.Co64Box{ChunkOffset: make([]uint64, chunks)}
		for i, c := range stbl.Children {
			if _, ok := c.(*mp4.StcoBox); ok {
				stbl.Children[i] = co64
			}
		}
		stbl.Stco, stbl.Co64 = nil, co64
	} else {
		stbl.Stco.ChunkOffset = make([]uint32, chunks)
	}

	// Offsets do not change box sizes, so the layout is known up front.
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	mdat := &mp4.MdatBox{}
	mdat.SetData(payload)
	base := ftyp.Size() + moov.Size() + mdat.HeaderSize()
	for c := 0; c < chunks; c++ {
		off := base + uint64(c*cfg.SamplesPerChunk*3)
		if co64 != nil {
			co64.ChunkOffset[c] = off
		} else {
			stbl.Stco.ChunkOffset[c] = uint32(off)
		}
	}

	var buf bytes.Buffer
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := mdat.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mdat: %w", err)
	}
	return buf.Bytes(), nil
}
