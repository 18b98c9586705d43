package av1decoder

import (
	"errors"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-10, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{300, 255},
	}

	for _, tt := range tests {
		result := clamp(tt.input)
		if result != tt.expected {
			t.Errorf("clamp(%d) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestYUVToRGB(t *testing.T) {
	tests := []struct {
		name    string
		y, u, v uint8
		r, g, b uint8
	}{
		{"black", 16, 128, 128, 0, 0, 0},
		{"white", 235, 128, 128, 255, 255, 255},
		{"mid gray", 126, 128, 128, 128, 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := yuvToRGB(tt.y, tt.u, tt.v)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("yuvToRGB(%d, %d, %d) = (%d, %d, %d), want (%d, %d, %d)",
					tt.y, tt.u, tt.v, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestNewWithoutLibaom(t *testing.T) {
	if Available {
		t.Skip("built with libaom")
	}
	if _, err := New(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("New() error = %v, want ErrUnavailable", err)
	}
}
