// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/adapters/smartbackend"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/sheet"
	"github.com/user/vidsample/pkg/vidsample"
)

// Config represents the full configuration for vidsample.
type Config struct {
	Sampling SamplingConfig `yaml:"sampling"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Server   ServerConfig   `yaml:"server"`
	Sheet    SheetConfig    `yaml:"sheet"`

	LogLevel string `yaml:"log_level"`
	// DumpDir receives a PNG of every sampled frame per run when set.
	DumpDir string `yaml:"dump_dir"`
}

// SamplingConfig holds request defaults.
type SamplingConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Frames     int     `yaml:"frames"`
	FPSCap     float64 `yaml:"fps_cap"`
	RandomSeek bool    `yaml:"random_seek"`
	IndexSeek  bool    `yaml:"index_seek"`

	// PixelFormat is "rgb24" or "bgr24".
	PixelFormat string `yaml:"pixel_format"`

	// Seed fixes the random seek points. 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// DecoderConfig selects and tunes the decoder backend.
type DecoderConfig struct {
	// Backend is "auto", "mp4" or "astiav".
	Backend string `yaml:"backend"`
	// Scaler is "nearest", "bilinear" or "catmullrom".
	Scaler string `yaml:"scaler"`

	FFmpegPath string `yaml:"ffmpeg_path"`
	// FFmpegArgs are extra input arguments, split like a shell would.
	FFmpegArgs string `yaml:"ffmpeg_args"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	MaxBodyMiB int    `yaml:"max_body_mib"`

	// MaxFrames and MaxPixels bound a single request: frames per buffer
	// and width*height per frame. 0 disables the limit.
	MaxFrames int `yaml:"max_frames"`
	MaxPixels int `yaml:"max_pixels"`
}

// SheetConfig configures contact sheet previews.
type SheetConfig struct {
	Columns         int    `yaml:"columns"`
	Gap             int    `yaml:"gap"`
	BackgroundColor string `yaml:"background_color"`
	Labels          bool   `yaml:"labels"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Sampling: SamplingConfig{
			Width:       256,
			Height:      256,
			Frames:      32,
			FPSCap:      25,
			RandomSeek:  true,
			IndexSeek:   false,
			PixelFormat: "rgb24",
		},
		Decoder: DecoderConfig{
			Backend: "auto",
			Scaler:  "bilinear",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			MaxBodyMiB: 256,
			MaxFrames:  1024,
			MaxPixels:  4096 * 4096,
		},
		Sheet: SheetConfig{
			Columns:         8,
			Gap:             4,
			BackgroundColor: "#1a1a2e",
			Labels:          true,
		},
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail deep inside a request.
func (c Config) Validate() error {
	s := c.Sampling
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("config: negative output size %dx%d", s.Width, s.Height)
	}
	if s.Frames <= 0 {
		return fmt.Errorf("config: frames must be positive, got %d", s.Frames)
	}
	if s.FPSCap <= 0 {
		return fmt.Errorf("config: fps_cap must be positive, got %v", s.FPSCap)
	}
	switch s.PixelFormat {
	case "", "rgb24", "rgb", "bgr24", "bgr":
	default:
		return fmt.Errorf("config: unknown pixel_format %q", s.PixelFormat)
	}
	switch c.Decoder.Backend {
	case "", "auto", "mp4", "astiav":
	default:
		return fmt.Errorf("config: unknown decoder backend %q", c.Decoder.Backend)
	}
	if c.Server.MaxBodyMiB < 0 {
		return fmt.Errorf("config: max_body_mib must not be negative")
	}
	if c.Server.MaxFrames < 0 || c.Server.MaxPixels < 0 {
		return fmt.Errorf("config: max_frames and max_pixels must not be negative")
	}
	return nil
}

// PixelFormat returns the parsed output pixel format.
func (c Config) PixelFormat() ports.PixelFormat {
	return ports.ParsePixelFormat(c.Sampling.PixelFormat)
}

// UniformOptions converts the sampling defaults into a uniform request.
func (c Config) UniformOptions() vidsample.UniformOptions {
	return vidsample.UniformOptions{
		Width:      c.Sampling.Width,
		Height:     c.Sampling.Height,
		Frames:     c.Sampling.Frames,
		FPSCap:     c.Sampling.FPSCap,
		RandomSeek: c.Sampling.RandomSeek,
	}
}

// IndexOptions converts the sampling defaults into an index request.
func (c Config) IndexOptions(indices []int64) vidsample.IndexOptions {
	return vidsample.IndexOptions{
		Width:   c.Sampling.Width,
		Height:  c.Sampling.Height,
		Indices: indices,
		Seek:    c.Sampling.IndexSeek,
	}
}

// LoaderOptions returns the vidsample options implied by the config.
func (c Config) LoaderOptions(log ports.Logger) []vidsample.Option {
	return []vidsample.Option{
		vidsample.WithLogger(log),
		vidsample.WithPixelFormat(c.PixelFormat()),
		vidsample.WithSeed(c.Sampling.Seed),
	}
}

// ServerLoaderOptions adds the request limits of the HTTP service.
func (c Config) ServerLoaderOptions(log ports.Logger) []vidsample.Option {
	return append(c.LoaderOptions(log), vidsample.WithLimits(c.Server.MaxFrames, c.Server.MaxPixels))
}

// BackendOptions returns the backend selection options.
func (c Config) BackendOptions() smartbackend.Options {
	return smartbackend.Options{
		Backend:    smartbackend.Backend(c.Decoder.Backend),
		Scaler:     pixconv.Scaler(c.Decoder.Scaler),
		FFmpegPath: c.Decoder.FFmpegPath,
		FFmpegArgs: c.Decoder.FFmpegArgs,
	}
}

// SheetOptions returns the contact sheet options. Sheets are always PNG.
func (c Config) SheetOptions() sheet.Options {
	return sheet.Options{
		Columns:    c.Sheet.Columns,
		Gap:        c.Sheet.Gap,
		Background: ParseColor(c.Sheet.BackgroundColor),
		Labels:     c.Sheet.Labels,
		Format:     ports.FormatPNG,
	}
}

// ParseColor parses a "#rrggbb" string. Invalid input yields black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}

	var rgb [3]uint8
	for i := range rgb {
		rgb[i] = hexValue(hex[2*i])<<4 | hexValue(hex[2*i+1])
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
