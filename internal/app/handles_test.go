package app

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/wav"
)

func TestConfigureAndEncode(t *testing.T) {
	enc := Configure(44100, wav.BitsPerSample16, wav.ChannelsMono, wav.FormatPCM, wav.SubChunk1SizePCM)

	file, err := Encode(enc, make([]byte, 320))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(file) != 364 {
		t.Fatalf("expected 364 bytes, got %d", len(file))
	}
	if got := binary.LittleEndian.Uint32(file[4:8]); got != 356 {
		t.Errorf("chunk size %d, want 356", got)
	}
	if got := binary.LittleEndian.Uint32(file[28:32]); got != 88200 {
		t.Errorf("byte rate %d, want 88200", got)
	}

	// The encoder was consumed by the first build.
	if _, err := Encode(enc, make([]byte, 2)); !errors.Is(err, wav.ErrMissingParameter) {
		t.Errorf("expected ErrMissingParameter on reuse, got %v", err)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	enc := Configure(8000, 8, 1, 1, 16)
	file, err := Encode(enc, nil)
	if err != nil || file != nil {
		t.Fatalf("Encode(nil) = %v, %v", file, err)
	}
	if _, err := Encode(enc, []byte{0x80}); err != nil {
		t.Fatalf("encoder should still be configured after a nil payload: %v", err)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	src := &mockSource{}
	e, err := CaptureStart(src, 8000, 32)
	if err != nil {
		t.Fatalf("CaptureStart: %v", err)
	}
	if e.State() != audio.Recording {
		t.Fatalf("expected recording, got %s", e.State())
	}
	time.Sleep(10 * time.Millisecond)

	data, err := CaptureStop(e)
	if err != nil {
		t.Fatalf("CaptureStop: %v", err)
	}
	if len(data) == 0 || len(data)%32 != 0 {
		t.Errorf("unexpected capture length %d", len(data))
	}

	if err := CaptureRelease(e); err != nil {
		t.Fatalf("CaptureRelease: %v", err)
	}
	if err := CaptureRelease(e); err != nil {
		t.Fatalf("second CaptureRelease: %v", err)
	}
}

func TestCaptureStartDeviceUnavailable(t *testing.T) {
	if _, err := CaptureStart(&mockSource{openErr: errors.New("busy")}, 8000, 32); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if _, err := CaptureStart(&mockSource{}, 8000, 33); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for odd frame size, got %v", err)
	}
}
