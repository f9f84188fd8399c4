package app

import (
	"errors"

	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/wav"
)

// Configure returns an encoder set up with the given wave parameters.
func Configure(sampleRate, bitsPerSample, channels, audioFormat, subChunk1Size int) *wav.Builder {
	return wav.NewBuilder().
		SetAudioFormat(audioFormat).
		SetSampleRate(sampleRate).
		SetBitsPerSample(bitsPerSample).
		SetNumChannels(channels).
		SetSubChunk1Size(subChunk1Size)
}

// Encode builds a complete wave file from payload. A nil payload yields a
// nil file. The encoder must be configured again before the next call.
func Encode(enc *wav.Builder, payload []byte) ([]byte, error) {
	return enc.Build(payload)
}

// CaptureStart prepares an engine on src and starts capturing.
func CaptureStart(src audio.Source, sampleRate, frameSize int, opts ...audio.Option) (*audio.Engine, error) {
	e := audio.NewEngine(src, opts...)
	if err := e.Prepare(sampleRate, frameSize); err != nil {
		return nil, err
	}
	if err := e.Start(); err != nil {
		if relErr := e.Release(); relErr != nil {
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}
	return e, nil
}

// CaptureStop stops capturing and returns the captured PCM bytes.
func CaptureStop(e *audio.Engine) ([]byte, error) {
	return e.Stop()
}

// CaptureRelease frees the device held by e.
func CaptureRelease(e *audio.Engine) error {
	return e.Release()
}
