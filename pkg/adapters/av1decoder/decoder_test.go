//go:build libaom

package av1decoder

import (
	"errors"
	"testing"

	"github.com/user/vidsample/pkg/ports"
)

func TestDecoderLifecycle(t *testing.T) {
	dec, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, _, err := dec.ReceiveFrame(); !errors.Is(err, ports.ErrNeedMoreInput) {
		t.Errorf("ReceiveFrame() error = %v, want ErrNeedMoreInput", err)
	}
	if err := dec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if _, _, err := dec.ReceiveFrame(); !errors.Is(err, ports.ErrEndOfStream) {
		t.Errorf("ReceiveFrame() after flush error = %v, want ErrEndOfStream", err)
	}
	if err := dec.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, _, err := dec.ReceiveFrame(); !errors.Is(err, ports.ErrNeedMoreInput) {
		t.Errorf("ReceiveFrame() after reset error = %v, want ErrNeedMoreInput", err)
	}

	dec.Close()
	dec.Close()
	if err := dec.SendPacket([]byte{0x12, 0x00}, 0, true); !errors.Is(err, ErrClosed) {
		t.Errorf("SendPacket() after Close error = %v, want ErrClosed", err)
	}
}

func TestDecoderRejectsEmptyPacket(t *testing.T) {
	dec, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer dec.Close()

	if err := dec.SendPacket(nil, 0, true); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("SendPacket(nil) error = %v, want ErrDecodeFailed", err)
	}
}
