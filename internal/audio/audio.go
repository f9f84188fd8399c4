package audio

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
	ErrNotPrepared       = errors.New("audio: engine not prepared")
	ErrStopTimeout       = errors.New("audio: capture worker did not stop in time")
)

// Backend names accepted by NewSource.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

// Source is an audio input device delivering mono, 16-bit little-endian
// PCM.
type Source interface {
	// Open configures the device for sampleRate and reads of frameSize
	// bytes.
	Open(sampleRate, frameSize int) error
	Start() error
	// Read blocks until captured bytes are available and copies at most
	// len(p) of them into p.
	Read(p []byte) (int, error)
	Stop() error
	Close() error
	ListDevices() ([]Device, error)
}

// Device represents an audio input device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// NewSource returns the Source implementation for backend. An empty name
// selects PortAudio.
func NewSource(backend, deviceID string) (Source, error) {
	switch backend {
	case "", BackendPortAudio:
		return NewPortAudio(deviceID), nil
	case BackendMalgo:
		return NewMalgo(deviceID), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", backend)
	}
}
