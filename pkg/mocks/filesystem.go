package mocks

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/user/vidsample/pkg/ports"
)

// Stdio mirrors osfilesystem.Stdio: reading it returns Stdin, writing it
// appends to Stdout.
const Stdio = "-"

// FileSystem is an in-memory ports.FileSystem. Like the OS adapter it
// creates parent directories on write and maps "-" to the standard streams.
type FileSystem struct {
	mu     sync.RWMutex
	files  map[string][]byte
	dirs   map[string]bool
	order  []string
	stdin  []byte
	stdout []byte

	// WriteErr fails every write when set.
	WriteErr error
}

// NewFileSystem creates an empty FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// SetStdin sets what reading "-" returns.
func (m *FileSystem) SetStdin(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdin = data
}

func (m *FileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == Stdio {
		return m.stdin, nil
	}
	if data, ok := m.files[filepath.Clean(path)]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
}

func (m *FileSystem) WriteFile(path string, data []byte) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == Stdio {
		m.stdout = append(m.stdout, data...)
		return nil
	}
	path = filepath.Clean(path)
	m.mkdirLocked(filepath.Dir(path))
	m.files[path] = append([]byte(nil), data...)
	m.order = append(m.order, path)
	return nil
}

func (m *FileSystem) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirLocked(path)
	return nil
}

func (m *FileSystem) mkdirLocked(path string) {
	for p := filepath.Clean(path); p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		m.dirs[p] = true
	}
}

func (m *FileSystem) Exists(path string) (bool, error) {
	if path == Stdio {
		return true, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	_, isFile := m.files[path]
	return isFile || m.dirs[path], nil
}

// GetFile returns the contents of a file.
func (m *FileSystem) GetFile(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(path)]
	return data, ok
}

// GetAllFiles returns a copy of every file.
func (m *FileSystem) GetAllFiles() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		result[k] = v
	}
	return result
}

// Written returns the paths in write order, repeated writes included.
func (m *FileSystem) Written() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Stdout returns everything written to "-".
func (m *FileSystem) Stdout() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stdout
}

var _ ports.FileSystem = (*FileSystem)(nil)
