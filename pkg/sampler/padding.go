package sampler

// Pad fills the frames after the first written ones. With nothing written
// the remainder is zeroed; otherwise the written block is repeated
// cyclically and the last copy truncated.
func Pad(buf []byte, written, requested, frameSize int) {
	if written >= requested || frameSize <= 0 {
		return
	}
	end := requested * frameSize
	if written <= 0 {
		clear(buf[:end])
		return
	}
	block := buf[:written*frameSize]
	for off := len(block); off < end; {
		off += copy(buf[off:end], block)
	}
}
