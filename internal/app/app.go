package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/config"
	"github.com/petems/wavtray/internal/hotkey"
	"github.com/rs/zerolog"
)

var ErrNotRecording = errors.New("not recording")

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetSaving()
	SetError()
}

type Config struct {
	Source        audio.Source
	Hotkeys       hotkey.Manager // Optional - can be nil
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil

	// NewSource builds the source used after SetDevice. Defaults to
	// audio.NewSource.
	NewSource func(backend, deviceID string) (audio.Source, error)
	// Now is the clock used to name recordings. Defaults to time.Now.
	Now func() time.Time
}

// App drives one capture engine: start recording, then stop and persist
// the result as a wave file.
type App struct {
	cfg       *config.Config
	log       zerolog.Logger
	status    StatusUpdater
	hotkeys   hotkey.Manager
	newSource func(backend, deviceID string) (audio.Source, error)
	now       func() time.Time

	mu        sync.Mutex
	src       audio.Source
	engine    *audio.Engine
	recording bool
	lastPath  string
}

func New(cfg Config) *App {
	a := &App{
		cfg:       cfg.Config,
		log:       cfg.Logger,
		status:    cfg.StatusUpdater,
		hotkeys:   cfg.Hotkeys,
		newSource: cfg.NewSource,
		now:       cfg.Now,
	}
	if a.newSource == nil {
		a.newSource = audio.NewSource
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.setSource(cfg.Source)
	return a
}

func (a *App) setSource(src audio.Source) {
	a.src = src
	a.engine = audio.NewEngine(src,
		audio.WithLogger(a.log.With().Str("component", "audio").Logger()),
		audio.WithStopTimeout(a.cfg.StopTimeout()),
	)
}

// StartRecording opens the microphone and begins capturing. It does nothing
// if a recording is already running.
func (a *App) StartRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

func (a *App) startLocked() error {
	if a.recording {
		return nil
	}

	a.log.Info().Msg("Starting recording")
	a.warnFormatMismatch()

	if err := a.engine.Prepare(a.cfg.Audio.SampleRate, a.cfg.Audio.FrameSize); err != nil {
		a.log.Error().Err(err).Msg("Failed to open microphone")
		a.setError()
		return err
	}
	if err := a.engine.Start(); err != nil {
		a.log.Error().Err(err).Msg("Failed to start capture")
		if relErr := a.engine.Release(); relErr != nil {
			a.log.Warn().Err(relErr).Msg("Failed to release microphone")
		}
		a.setError()
		return err
	}

	a.recording = true
	if a.status != nil {
		a.status.SetRecording()
	}
	return nil
}

// warnFormatMismatch logs when the declared file format differs from what
// the microphone delivers (mono 16-bit at the capture rate). The file is
// still written with the configured values.
func (a *App) warnFormatMismatch() {
	w := a.cfg.Wav
	if w.Channels != 1 || w.BitsPerSample != 16 || a.cfg.WavSampleRate() != a.cfg.Audio.SampleRate {
		a.log.Warn().
			Int("channels", w.Channels).
			Int("bits_per_sample", w.BitsPerSample).
			Int("sample_rate", a.cfg.WavSampleRate()).
			Int("capture_sample_rate", a.cfg.Audio.SampleRate).
			Msg("Wave parameters do not match the captured mono 16-bit stream")
	}
}

// SaveRecording stops the running recording, encodes it and writes it to
// the output directory. It returns the saved file's path.
func (a *App) SaveRecording() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.recording {
		return "", ErrNotRecording
	}
	return a.saveLocked()
}

func (a *App) saveLocked() (string, error) {
	a.log.Info().Msg("Stopping recording")
	a.recording = false
	if a.status != nil {
		a.status.SetSaving()
	}

	data, err := a.stopLocked()
	if err != nil && len(data) == 0 {
		a.setError()
		return "", err
	}

	enc := Configure(
		a.cfg.WavSampleRate(),
		a.cfg.Wav.BitsPerSample,
		a.cfg.Wav.Channels,
		a.cfg.Wav.AudioFormat,
		a.cfg.Wav.SubChunk1Size,
	)
	if a.cfg.Wav.Strict {
		enc.Strict()
	}
	file, err := Encode(enc, data)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to encode recording")
		a.setError()
		return "", fmt.Errorf("failed to encode recording: %w", err)
	}

	path, err := writeRecording(a.cfg.OutputDir(), a.cfg.Output.FilePrefix, a.now(), file)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to save recording")
		a.setError()
		return "", err
	}

	a.lastPath = path
	a.log.Info().
		Str("path", path).
		Int("bytes", len(file)).
		Dur("duration", pcmDuration(len(data), a.cfg.Audio.SampleRate)).
		Msg("Recording saved")
	if a.status != nil {
		a.status.SetIdle()
	}
	return path, nil
}

// stopLocked stops capture and releases the microphone. Captured bytes are
// returned even when stopping reported an error.
func (a *App) stopLocked() ([]byte, error) {
	data, err := a.engine.Stop()
	if err != nil {
		a.log.Error().Err(err).Int("bytes", len(data)).Msg("Capture stopped with errors")
	}
	if d, ok := a.src.(interface{ Dropped() int64 }); ok && d.Dropped() > 0 {
		a.log.Warn().Int64("callbacks", d.Dropped()).Msg("Audio dropped while capturing")
	}
	if relErr := a.engine.Release(); relErr != nil {
		a.log.Warn().Err(relErr).Msg("Failed to release microphone")
	}
	return data, err
}

// Discard stops the running recording without saving it.
func (a *App) Discard() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.recording {
		return ErrNotRecording
	}
	a.recording = false
	data, _ := a.stopLocked()
	a.log.Info().Int("bytes", len(data)).Msg("Recording discarded")
	if a.status != nil {
		a.status.SetIdle()
	}
	return nil
}

// Toggle starts a recording, or saves the running one.
func (a *App) Toggle() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		_, err := a.saveLocked()
		return err
	}
	return a.startLocked()
}

// RegisterHotkey binds accel to OnHotkey. It does nothing without a hotkey
// manager or with an empty accelerator.
func (a *App) RegisterHotkey(accel string) error {
	if a.hotkeys == nil || accel == "" {
		return nil
	}
	if err := a.hotkeys.Register(accel, a.OnHotkey); err != nil {
		return fmt.Errorf("failed to register hotkey %q: %w", accel, err)
	}
	a.log.Info().Str("hotkey", accel).Str("mode", a.hotkeyMode()).Msg("Hotkey registered")
	return nil
}

// OnHotkey handles a global hotkey event. In toggle mode each press starts
// or saves a recording. In hold mode a press starts and the release saves.
func (a *App) OnHotkey(pressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	switch {
	case a.hotkeyMode() == config.HotkeyHold:
		if pressed {
			err = a.startLocked()
		} else if a.recording {
			_, err = a.saveLocked()
		}
	case pressed:
		if a.recording {
			_, err = a.saveLocked()
		} else {
			err = a.startLocked()
		}
	}
	if err != nil {
		a.log.Error().Err(err).Bool("pressed", pressed).Msg("Hotkey action failed")
	}
}

func (a *App) hotkeyMode() string {
	if a.cfg.HotkeyMode == "" {
		return config.HotkeyToggle
	}
	return a.cfg.HotkeyMode
}

func (a *App) setError() {
	if a.status != nil {
		a.status.SetError()
	}
}

// Shutdown saves a running recording and releases the microphone.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	// Closed before taking the lock: the hotkey loop may be waiting on it.
	if a.hotkeys != nil {
		if hkErr := a.hotkeys.Close(); hkErr != nil {
			err = fmt.Errorf("failed to close hotkeys: %w", hkErr)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		if _, saveErr := a.saveLocked(); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}
	if relErr := a.engine.Release(); relErr != nil {
		err = errors.Join(err, relErr)
	}
	return err
}

// Tray actions

func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return fmt.Errorf("cannot change while recording")
	}

	src, err := a.newSource(a.cfg.Audio.Backend, id)
	if err != nil {
		return err
	}
	if err := a.engine.Release(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to release previous device")
	}

	a.cfg.Audio.DeviceID = id
	a.setSource(src)
	return nil
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// LastRecording returns the path of the most recently saved file, or "".
func (a *App) LastRecording() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPath
}

func (a *App) ListDevices() ([]audio.Device, error) {
	a.mu.Lock()
	e := a.engine
	a.mu.Unlock()
	return e.ListDevices()
}

// pcmDuration is the playback length of n bytes of mono 16-bit audio.
func pcmDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(sampleRate)
}
