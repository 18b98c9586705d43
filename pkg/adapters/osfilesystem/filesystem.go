// Package osfilesystem provides a filesystem implementation using the os package.
// The path "-" names the standard streams.
package osfilesystem

import (
	"io"
	"os"
	"path/filepath"

	"github.com/user/vidsample/pkg/ports"
)

// Stdio is the path that reads stdin and writes stdout.
const Stdio = "-"

// FileSystem implements ports.FileSystem using the os package.
type FileSystem struct {
	stdin  io.Reader
	stdout io.Writer
}

// New creates a new FileSystem bound to the process streams.
func New() *FileSystem {
	return &FileSystem{stdin: os.Stdin, stdout: os.Stdout}
}

// NewWithStdio creates a FileSystem that maps "-" to the given streams.
func NewWithStdio(stdin io.Reader, stdout io.Writer) *FileSystem {
	return &FileSystem{stdin: stdin, stdout: stdout}
}

// ReadFile reads the entire contents of a file, or stdin for "-".
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	if path == Stdio {
		return io.ReadAll(fs.stdin)
	}
	return os.ReadFile(path)
}

// WriteFile writes data to a file, or stdout for "-".
func (fs *FileSystem) WriteFile(path string, data []byte) error {
	if path == Stdio {
		_, err := fs.stdout.Write(data)
		return err
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// MkdirAll creates a directory and all parent directories.
func (fs *FileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// Exists checks if a file or directory exists. "-" always exists.
func (fs *FileSystem) Exists(path string) (bool, error) {
	if path == Stdio {
		return true, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Ensure FileSystem implements ports.FileSystem
var _ ports.FileSystem = (*FileSystem)(nil)
