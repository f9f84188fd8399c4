package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortHeader = errors.New("wav: header shorter than 44 bytes")
	ErrBadTag      = errors.New("wav: unexpected chunk tag")
)

var (
	riffTag = [4]byte{'R', 'I', 'F', 'F'}
	waveTag = [4]byte{'W', 'A', 'V', 'E'}
	fmtTag  = [4]byte{'f', 'm', 't', ' '}
	dataTag = [4]byte{'d', 'a', 't', 'a'}
)

// Header mirrors the canonical 44-byte PCM wave header. Every integer is
// stored little-endian at a fixed offset.
type Header struct {
	// RIFF chunk
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32  // 36 + SubChunk2Size, i.e. file size minus 8
	Format    [4]byte // "WAVE"

	// fmt sub-chunk
	SubChunk1ID   [4]byte // "fmt "
	SubChunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	// data sub-chunk
	SubChunk2ID   [4]byte // "data"
	SubChunk2Size uint32
}

// EncodeHeader computes the header for p and a payload of dataLen bytes.
// Values wider than their field wrap silently: a sample rate above 2^32-1
// or a channel count above 65535 is stored modulo the field width. Unset
// audio format and sub-chunk sizes are stored as zero.
func EncodeHeader(p Params, dataLen int) (Header, error) {
	byteRate, err := p.ByteRate()
	if err != nil {
		return Header{}, err
	}
	blockAlign, err := p.BlockAlign()
	if err != nil {
		return Header{}, err
	}

	return Header{
		ChunkID:       riffTag,
		ChunkSize:     uint32(36 + dataLen),
		Format:        waveTag,
		SubChunk1ID:   fmtTag,
		SubChunk1Size: uint32(orZero(p.SubChunk1Size)),
		AudioFormat:   uint16(orZero(p.AudioFormat)),
		NumChannels:   uint16(p.NumChannels),
		SampleRate:    uint32(p.SampleRate),
		ByteRate:      uint32(byteRate),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(p.BitsPerSample),
		SubChunk2ID:   dataTag,
		SubChunk2Size: uint32(dataLen),
	}, nil
}

func orZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Bytes lays the header out in its 44-byte wire form.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], h.ChunkID[:])
	binary.LittleEndian.PutUint32(b[4:8], h.ChunkSize)
	copy(b[8:12], h.Format[:])
	copy(b[12:16], h.SubChunk1ID[:])
	binary.LittleEndian.PutUint32(b[16:20], h.SubChunk1Size)
	binary.LittleEndian.PutUint16(b[20:22], h.AudioFormat)
	binary.LittleEndian.PutUint16(b[22:24], h.NumChannels)
	binary.LittleEndian.PutUint32(b[24:28], h.SampleRate)
	binary.LittleEndian.PutUint32(b[28:32], h.ByteRate)
	binary.LittleEndian.PutUint16(b[32:34], h.BlockAlign)
	binary.LittleEndian.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], h.SubChunk2ID[:])
	binary.LittleEndian.PutUint32(b[40:44], h.SubChunk2Size)
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(b []byte) error {
	parsed, err := ParseHeader(b)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHeader reads a canonical 44-byte header from the start of b and
// checks its four tags.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d", ErrShortHeader, len(b))
	}

	var h Header
	copy(h.ChunkID[:], b[0:4])
	h.ChunkSize = binary.LittleEndian.Uint32(b[4:8])
	copy(h.Format[:], b[8:12])
	copy(h.SubChunk1ID[:], b[12:16])
	h.SubChunk1Size = binary.LittleEndian.Uint32(b[16:20])
	h.AudioFormat = binary.LittleEndian.Uint16(b[20:22])
	h.NumChannels = binary.LittleEndian.Uint16(b[22:24])
	h.SampleRate = binary.LittleEndian.Uint32(b[24:28])
	h.ByteRate = binary.LittleEndian.Uint32(b[28:32])
	h.BlockAlign = binary.LittleEndian.Uint16(b[32:34])
	h.BitsPerSample = binary.LittleEndian.Uint16(b[34:36])
	copy(h.SubChunk2ID[:], b[36:40])
	h.SubChunk2Size = binary.LittleEndian.Uint32(b[40:44])

	for _, tag := range []struct {
		got, want [4]byte
	}{
		{h.ChunkID, riffTag},
		{h.Format, waveTag},
		{h.SubChunk1ID, fmtTag},
		{h.SubChunk2ID, dataTag},
	} {
		if tag.got != tag.want {
			return Header{}, fmt.Errorf("%w: got %q, want %q", ErrBadTag, tag.got[:], tag.want[:])
		}
	}

	return h, nil
}

// Params converts the header fields back into build parameters.
func (h Header) Params() Params {
	return Params{
		AudioFormat:   int(h.AudioFormat),
		SampleRate:    int(h.SampleRate),
		BitsPerSample: int(h.BitsPerSample),
		NumChannels:   int(h.NumChannels),
		SubChunk1Size: int(h.SubChunk1Size),
	}
}
