package wav

import (
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info describes a decoded wave file.
type Info struct {
	AudioFormat   int
	SampleRate    int
	BitsPerSample int
	NumChannels   int
	Frames        int
	Duration      time.Duration
	// Peak is the largest absolute sample value, in the file's own scale.
	Peak int
}

// Inspect decodes the wave file in r with an independent decoder and
// reports its format and content.
func Inspect(r io.ReadSeeker) (Info, error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return Info{}, fmt.Errorf("invalid wave file: %w", err)
		}
		return Info{}, fmt.Errorf("invalid wave file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Info{}, fmt.Errorf("failed to read PCM data: %w", err)
	}

	info := Info{
		AudioFormat:   int(d.WavAudioFormat),
		SampleRate:    int(d.SampleRate),
		BitsPerSample: int(d.BitDepth),
		NumChannels:   int(d.NumChans),
		Frames:        buf.NumFrames(),
		Peak:          peak(buf),
	}
	if info.SampleRate > 0 {
		info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

// peak returns the largest distance from silence. 8-bit PCM is unsigned
// with silence at 128.
func peak(buf *audio.IntBuffer) int {
	var p int
	for _, s := range buf.Data {
		if buf.SourceBitDepth == BitsPerSample8 {
			s -= 128
		}
		if s < 0 {
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}
