package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoQueue is the number of device callbacks buffered between the
// miniaudio thread and Read.
const malgoQueue = 64

type malgoSource struct {
	deviceID string

	// mu guards the device handles, which Close clears while a Read may
	// still be waiting for data.
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	chunks chan []byte
	closed chan struct{}

	pending []byte // only touched by Read
	dropped atomic.Int64
}

// NewMalgo returns a miniaudio-backed Source. An empty deviceID selects the
// default capture device.
func NewMalgo(deviceID string) Source {
	return &malgoSource{deviceID: deviceID}
}

func (m *malgoSource) Open(sampleRate, frameSize int) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to init malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInFrames = uint32(frameSize / 2)
	cfg.Alsa.NoMMap = 1

	if m.deviceID != "" {
		info, err := findMalgoDevice(ctx, m.deviceID)
		if err != nil {
			freeContext(ctx)
			return err
		}
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	chunks := make(chan []byte, malgoQueue)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			m.deliver(chunks, in)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		freeContext(ctx)
		return fmt.Errorf("failed to init capture device: %w", err)
	}

	m.mu.Lock()
	m.ctx = ctx
	m.device = device
	m.chunks = chunks
	m.closed = make(chan struct{})
	m.mu.Unlock()
	m.pending = nil
	return nil
}

// deliver queues one callback's samples without blocking the audio thread.
func (m *malgoSource) deliver(chunks chan<- []byte, in []byte) {
	// in is reused by miniaudio after the callback returns
	b := make([]byte, len(in))
	copy(b, in)
	select {
	case chunks <- b:
	default:
		m.dropped.Add(1)
	}
}

func findMalgoDevice(ctx *malgo.AllocatedContext, id string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == id {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("device not found: %s", id)
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

func (m *malgoSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return errStreamClosed
	}
	return m.device.Start()
}

// Read returns the next captured bytes, continuing a callback chunk that
// did not fit into the previous read.
func (m *malgoSource) Read(p []byte) (int, error) {
	if len(m.pending) == 0 {
		m.mu.Lock()
		open := m.device != nil
		chunks, closed := m.chunks, m.closed
		m.mu.Unlock()
		if !open {
			return 0, errStreamClosed
		}

		select {
		case b := <-chunks:
			m.pending = b
		case <-closed:
			return 0, errStreamClosed
		}
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *malgoSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	return m.device.Stop()
}

func (m *malgoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		freeContext(m.ctx)
		m.ctx = nil
	}
	if m.closed != nil {
		close(m.closed)
		m.closed = nil
	}
	return nil
}

// Dropped reports how many device callbacks were discarded because Read
// fell behind.
func (m *malgoSource) Dropped() int64 {
	return m.dropped.Load()
}

func (m *malgoSource) ListDevices() ([]Device, error) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		var err error
		ctx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to init malgo context: %w", err)
		}
		defer freeContext(ctx)
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(infos))
	for _, info := range infos {
		result = append(result, Device{
			ID:      info.Name(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return result, nil
}
