package wav

import (
	"errors"
	"fmt"
)

// The wave format consists of two sub-chunks, "fmt " and "data". The "fmt "
// sub-chunk describes the layout of the samples stored in "data".
const (
	HeaderSize = 44

	FormatPCM        = 1
	SubChunk1SizePCM = 16

	BitsPerSample8  = 8
	BitsPerSample16 = 16

	ChannelsMono   = 1
	ChannelsStereo = 2

	SampleRate8000  = 8000
	SampleRate16000 = 16000
	SampleRate44100 = 44100

	// Unset marks a parameter that was never supplied. Any negative value is
	// treated the same way: SetAudioFormat(-5) leaves the format unset, so it
	// is encoded as 0 rather than as the two's complement 0xFFFB.
	Unset = -1
)

var (
	ErrMissingParameter = errors.New("wav: missing parameter")
	ErrInvalidParameter = errors.New("wav: invalid parameter")
)

// Params holds the declared format of a wave file. It is a plain value; the
// header is computed from it only at build time.
type Params struct {
	AudioFormat   int
	SampleRate    int
	BitsPerSample int
	NumChannels   int
	SubChunk1Size int
}

// UnsetParams returns Params with every field marked unset.
func UnsetParams() Params {
	return Params{
		AudioFormat:   Unset,
		SampleRate:    Unset,
		BitsPerSample: Unset,
		NumChannels:   Unset,
		SubChunk1Size: Unset,
	}
}

func isSet(v int) bool { return v >= 0 }

// ByteRate is SampleRate * NumChannels * BitsPerSample / 8, computed in
// signed 32-bit arithmetic. The product wraps before the division, so a
// sample rate of 300000000 at mono 16-bit gives 63129088.
func (p Params) ByteRate() (int, error) {
	if !isSet(p.SampleRate) {
		return 0, fmt.Errorf("%w: sample rate is not specified", ErrMissingParameter)
	}
	if !isSet(p.NumChannels) {
		return 0, fmt.Errorf("%w: number of channels is not specified", ErrMissingParameter)
	}
	if !isSet(p.BitsPerSample) {
		return 0, fmt.Errorf("%w: bits per sample is not specified", ErrMissingParameter)
	}
	return int(int32(p.SampleRate) * int32(p.NumChannels) * int32(p.BitsPerSample) / 8), nil
}

// BlockAlign is NumChannels * BitsPerSample / 8. A fractional result is
// truncated and not reported.
func (p Params) BlockAlign() (int, error) {
	if !isSet(p.NumChannels) {
		return 0, fmt.Errorf("%w: number of channels is not specified", ErrMissingParameter)
	}
	if !isSet(p.BitsPerSample) {
		return 0, fmt.Errorf("%w: bits per sample is not specified", ErrMissingParameter)
	}
	return int(int32(p.NumChannels) * int32(p.BitsPerSample) / 8), nil
}

// Validate range-checks the parameters that have a meaningful PCM domain.
// Missing parameters are reported as ErrMissingParameter.
func (p Params) Validate() error {
	if _, err := p.ByteRate(); err != nil {
		return err
	}
	if p.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidParameter)
	}
	if p.BitsPerSample != BitsPerSample8 && p.BitsPerSample != BitsPerSample16 {
		return fmt.Errorf("%w: bits per sample %d (want 8 or 16)", ErrInvalidParameter, p.BitsPerSample)
	}
	if p.NumChannels != ChannelsMono && p.NumChannels != ChannelsStereo {
		return fmt.Errorf("%w: channel count %d (want 1 or 2)", ErrInvalidParameter, p.NumChannels)
	}
	if p.NumChannels*p.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: block align is not a whole number of bytes", ErrInvalidParameter)
	}
	return nil
}

// Builder accumulates Params through chained setters. Setters only store the
// value; derived fields are computed when a header is built. A Builder is not
// safe for concurrent use.
type Builder struct {
	params Params
	strict bool
}

// NewBuilder returns a Builder with every parameter unset.
func NewBuilder() *Builder {
	return &Builder{params: UnsetParams()}
}

// Strict makes BuildHeader and Build reject parameters outside the PCM
// domain instead of encoding them as given.
func (b *Builder) Strict() *Builder {
	b.strict = true
	return b
}

// SetAudioFormat sets the format tag. PCM = 1; other values indicate
// compression.
func (b *Builder) SetAudioFormat(format int) *Builder {
	b.params.AudioFormat = format
	return b
}

// SetSampleRate sets the sample rate in Hz (8000, 44100, etc).
func (b *Builder) SetSampleRate(hz int) *Builder {
	b.params.SampleRate = hz
	return b
}

// SetBitsPerSample sets the sample width (8 or 16).
func (b *Builder) SetBitsPerSample(bits int) *Builder {
	b.params.BitsPerSample = bits
	return b
}

// SetNumChannels sets the channel count. Mono = 1, stereo = 2.
func (b *Builder) SetNumChannels(n int) *Builder {
	b.params.NumChannels = n
	return b
}

// SetSubChunk1Size sets the size of the rest of the "fmt " sub-chunk; 16
// for PCM.
func (b *Builder) SetSubChunk1Size(size int) *Builder {
	b.params.SubChunk1Size = size
	return b
}

// Params returns a copy of the accumulated parameters.
func (b *Builder) Params() Params {
	return b.params
}

// Reset returns every parameter to unset. Strict mode is kept.
func (b *Builder) Reset() {
	b.params = UnsetParams()
}

// BuildHeader returns the 44 header bytes for a payload of payloadLength
// bytes. The builder is left untouched.
func (b *Builder) BuildHeader(payloadLength int) ([]byte, error) {
	if b.strict {
		if err := b.params.Validate(); err != nil {
			return nil, err
		}
	}
	h, err := EncodeHeader(b.params, payloadLength)
	if err != nil {
		return nil, err
	}
	return h.Bytes(), nil
}

// Build returns a complete wave file: the header followed by payload. A nil
// payload yields nil and no error, and leaves the builder as it was. After a
// successful build every parameter is reset, so the builder has to be
// configured again before the next build.
func (b *Builder) Build(payload []byte) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	header, err := b.BuildHeader(len(payload))
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+len(payload))
	copy(out, header)
	copy(out[HeaderSize:], payload)

	b.Reset()
	return out, nil
}
