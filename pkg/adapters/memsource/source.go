// Package memsource exposes an in-memory encoded video as a seekable byte
// source for decoder backends.
package memsource

import (
	"errors"
	"fmt"
	"io"
)

// SeekSize is the libav AVSEEK_SIZE whence value. Seeking with it reports
// the total size without moving the cursor.
const SeekSize = 0x10000

// ErrInvalidWhence is returned by Seek for an unknown whence value.
var ErrInvalidWhence = errors.New("memsource: invalid whence")

// Source reads from a byte slice the caller keeps alive for the lifetime
// of the Source. The bytes are never copied or modified.
type Source struct {
	data []byte
	pos  int64
}

// New wraps data without copying it.
func New(data []byte) *Source {
	return &Source{data: data}
}

// Size returns the total byte length.
func (s *Source) Size() int64 {
	return int64(len(s.data))
}

// Bytes returns the underlying slice.
func (s *Source) Bytes() []byte {
	return s.data
}

// Read copies up to len(p) bytes from the cursor. A short read at the end
// is followed by io.EOF on the next call.
func (s *Source) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt without moving the cursor.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("memsource: negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek moves the cursor. Besides the io.Seek* values it accepts SeekSize.
// Positions past the end are allowed and read as EOF.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence &^ 0x20000 { // AVSEEK_FORCE
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	case SeekSize:
		return int64(len(s.data)), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("memsource: negative position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

var (
	_ io.ReadSeeker = (*Source)(nil)
	_ io.ReaderAt   = (*Source)(nil)
)
