package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

var errStreamClosed = errors.New("audio stream is not open")

type portAudioSource struct {
	deviceID    string
	stream      *portaudio.Stream
	buffer      []int16
	initialized bool
}

// NewPortAudio returns a PortAudio-backed Source. An empty deviceID selects
// the default input device.
func NewPortAudio(deviceID string) Source {
	return &portAudioSource{deviceID: deviceID}
}

func (p *portAudioSource) Open(sampleRate, frameSize int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	p.initialized = true

	device, err := p.findDevice()
	if err != nil {
		p.terminate()
		return err
	}

	// Open stream: mono, 16-bit, frameSize bytes per read
	p.buffer = make([]int16, frameSize/2)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: len(p.buffer),
	}, p.buffer)
	if err != nil {
		p.terminate()
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	p.stream = stream
	return nil
}

func (p *portAudioSource) findDevice() (*portaudio.DeviceInfo, error) {
	if p.deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == p.deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", p.deviceID)
}

func (p *portAudioSource) Start() error {
	if p.stream == nil {
		return errStreamClosed
	}
	return p.stream.Start()
}

func (p *portAudioSource) Read(dst []byte) (int, error) {
	if p.stream == nil {
		return 0, errStreamClosed
	}
	// An overflow means samples were lost before this read; the buffer
	// itself is still valid.
	if err := p.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, err
	}
	return putInt16LE(dst, p.buffer), nil
}

func (p *portAudioSource) Stop() error {
	if p.stream != nil {
		return p.stream.Stop()
	}
	return nil
}

func (p *portAudioSource) Close() error {
	var err error
	if p.stream != nil {
		err = p.stream.Close()
		p.stream = nil
	}
	p.terminate()
	return err
}

func (p *portAudioSource) terminate() {
	if p.initialized {
		portaudio.Terminate()
		p.initialized = false
	}
}

func (p *portAudioSource) ListDevices() ([]Device, error) {
	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer portaudio.Terminate()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

// putInt16LE writes samples into dst as little-endian 16-bit PCM and
// returns the number of bytes written.
func putInt16LE(dst []byte, samples []int16) int {
	n := min(len(dst)/2, len(samples))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(samples[i]))
	}
	return 2 * n
}
