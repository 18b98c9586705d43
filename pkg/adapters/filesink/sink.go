// Package filesink provides a file-based frame sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/vidsample/pkg/ports"
)

// Sink saves every sampled frame of a run as PNG under baseDir/<run>/.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame saves slot index of run as frame-NNNN.png.
func (s *Sink) SaveFrame(run string, index int, img image.Image) error {
	dir, err := s.runDir(run)
	if err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", index))
	return s.fs.WriteFile(path, data)
}

// SaveStats saves the run statistics as stats.json.
func (s *Sink) SaveStats(run string, data []byte) error {
	dir, err := s.runDir(run)
	if err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(dir, "stats.json"), data)
}

func (s *Sink) runDir(run string) (string, error) {
	if run == "" {
		run = "unnamed"
	}
	dir := filepath.Join(s.baseDir, run)
	if err := s.fs.MkdirAll(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
