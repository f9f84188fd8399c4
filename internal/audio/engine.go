package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle position of an Engine.
type State int

const (
	Unprepared State = iota
	Prepared
	Recording
)

func (s State) String() string {
	switch s {
	case Unprepared:
		return "unprepared"
	case Prepared:
		return "prepared"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const defaultQueueSize = 16

// errReaderStuck is returned while a reader abandoned by Stop is still
// blocked in the device. Release closes the device to free it.
var errReaderStuck = fmt.Errorf("%w: previous reader is still blocked, release the engine", ErrStopTimeout)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithStopTimeout bounds how long Stop and Release wait for the capture
// worker. Zero waits forever.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stopTimeout = d }
}

// WithQueueSize sets how many frames may be in flight between the device
// reader and the accumulator.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// Engine captures frames from a Source into memory. Each Start launches one
// reader feeding an accumulator over a bounded channel; Stop waits for both
// to finish before handing the captured bytes to the caller.
type Engine struct {
	src         Source
	log         zerolog.Logger
	stopTimeout time.Duration
	queueSize   int

	mu            sync.Mutex
	state         State
	sampleRate    int
	frameSize     int
	frame         []byte
	deviceRunning bool
	sess          *session
	// stuck is a session abandoned by Stop whose reader has not returned
	// from Source.Read yet. No new reader starts while it is set.
	stuck *session
}

// NewEngine returns an unprepared engine reading from src.
func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:       src,
		log:       zerolog.Nop(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// session is one start/stop cycle. buf is written only by the accumulator
// until take detaches it.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	mu       sync.Mutex
	buf      []byte
	detached bool
}

func (s *session) accumulate(frames <-chan []byte) error {
	for f := range frames {
		s.mu.Lock()
		if !s.detached {
			s.buf = append(s.buf, f...)
		}
		s.mu.Unlock()
	}
	return nil
}

// take returns the accumulated bytes and drops anything written later.
func (s *session) take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	s.buf = nil
	return out
}

// Prepare opens the device for mono 16-bit PCM at sampleRate with reads of
// frameSize bytes and starts device-level recording. Captured audio is not
// accumulated until Start.
func (e *Engine) Prepare(sampleRate, frameSize int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrDeviceUnavailable, sampleRate)
	}
	if frameSize <= 0 || frameSize%2 != 0 {
		return fmt.Errorf("%w: invalid buffer size %d", ErrDeviceUnavailable, frameSize)
	}

	if e.state != Unprepared {
		e.log.Debug().Msg("Re-preparing, releasing previous device")
		if err := e.releaseLocked(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to release previous device")
		}
	}
	if e.busy() {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, errReaderStuck)
	}

	if err := e.src.Open(sampleRate, frameSize); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := e.src.Start(); err != nil {
		if closeErr := e.src.Close(); closeErr != nil {
			e.log.Warn().Err(closeErr).Msg("Failed to close audio device")
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	e.deviceRunning = true
	e.sampleRate = sampleRate
	e.frameSize = frameSize
	e.frame = make([]byte, frameSize)
	e.state = Prepared

	e.log.Info().
		Int("sample_rate", sampleRate).
		Int("frame_size", frameSize).
		Msg("Audio device prepared")
	return nil
}

// Start begins accumulating captured frames and returns immediately.
// Calling it while already recording does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Recording:
		return nil
	case Unprepared:
		return ErrNotPrepared
	}
	if e.busy() {
		return errReaderStuck
	}

	if !e.deviceRunning {
		if err := e.src.Start(); err != nil {
			return fmt.Errorf("failed to start audio device: %w", err)
		}
		e.deviceRunning = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan []byte, e.queueSize)
	s := &session{cancel: cancel, done: make(chan struct{})}

	frame := e.frame
	g.Go(func() error { return e.readFrames(gctx, frame, frames) })
	g.Go(func() error { return s.accumulate(frames) })
	go func() {
		s.err = g.Wait()
		close(s.done)
	}()

	e.sess = s
	e.state = Recording
	e.log.Info().Msg("Capture started")
	return nil
}

// readFrames reads from the device until ctx is cancelled. A read already
// in progress when ctx is cancelled still delivers its bytes.
func (e *Engine) readFrames(ctx context.Context, frame []byte, frames chan<- []byte) error {
	defer close(frames)
	for ctx.Err() == nil {
		n, err := e.src.Read(frame)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, frame[:n])
			frames <- chunk
		}
		if err != nil {
			return fmt.Errorf("failed to read audio frame: %w", err)
		}
	}
	return nil
}

// Stop ends the current capture, stops the device and returns everything
// captured since Start. Without a prior Start it returns an empty slice.
// Read and device errors are returned alongside the captured bytes.
func (e *Engine) Stop() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Unprepared {
		return []byte{}, nil
	}

	var errs []error
	out := []byte{}
	if s := e.sess; s != nil {
		e.sess = nil
		if err := e.finish(s); err != nil {
			errs = append(errs, err)
		}
		out = s.take()
	}

	if e.deviceRunning {
		e.deviceRunning = false
		if err := e.src.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audio device: %w", err))
		}
	}
	e.state = Prepared

	e.log.Info().Int("bytes", len(out)).Msg("Capture stopped")
	return out, errors.Join(errs...)
}

// Release stops any capture, discards captured audio and closes the device.
// It is safe to call at any time, any number of times.
func (e *Engine) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseLocked()
}

func (e *Engine) releaseLocked() error {
	var errs []error
	if s := e.sess; s != nil {
		e.sess = nil
		if err := e.finish(s); err != nil {
			errs = append(errs, err)
		}
		s.take()
	}

	if e.state != Unprepared {
		if e.deviceRunning {
			if err := e.src.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop audio device: %w", err))
			}
		}
		if err := e.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audio device: %w", err))
		}
		e.log.Info().Msg("Audio device released")
	}
	// Closing the device is the last way to unblock an abandoned read.
	if e.stuck != nil && e.wait(e.stuck) {
		e.stuck = nil
	}

	e.deviceRunning = false
	e.frame = nil
	e.sampleRate = 0
	e.frameSize = 0
	e.state = Unprepared
	return errors.Join(errs...)
}

// finish cancels s and waits for its worker. If the worker is stuck in a
// read past the stop timeout, the device is stopped to unblock it; if that
// does not help either, the session is abandoned with ErrStopTimeout.
func (e *Engine) finish(s *session) error {
	s.cancel()
	if e.wait(s) {
		return s.err
	}

	e.log.Warn().Dur("timeout", e.stopTimeout).Msg("Capture worker still reading, stopping device")
	var stopErr error
	if e.deviceRunning {
		e.deviceRunning = false
		if err := e.src.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop audio device: %w", err)
		}
	}
	if e.wait(s) {
		// The read error is the expected result of stopping the device.
		return stopErr
	}

	// The abandoned reader may still write into the old frame buffer.
	e.frame = make([]byte, e.frameSize)
	e.stuck = s
	e.log.Error().Msg("Capture worker abandoned")
	return errors.Join(ErrStopTimeout, stopErr)
}

// busy reports whether an abandoned reader is still inside Source.Read.
func (e *Engine) busy() bool {
	if e.stuck == nil {
		return false
	}
	select {
	case <-e.stuck.done:
		e.stuck = nil
		return false
	default:
		return true
	}
}

func (e *Engine) wait(s *session) bool {
	if e.stopTimeout <= 0 {
		<-s.done
		return true
	}
	t := time.NewTimer(e.stopTimeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SampleRate returns the prepared sample rate, or 0 when unprepared.
func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// FrameSize returns the prepared read size in bytes, or 0 when unprepared.
func (e *Engine) FrameSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameSize
}

// ListDevices lists the input devices of the underlying source.
func (e *Engine) ListDevices() ([]Device, error) {
	return e.src.ListDevices()
}
