package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/config"
	"github.com/petems/wavtray/internal/wav"
	"github.com/rs/zerolog"
)

// Mock implementations for testing
type mockSource struct {
	mu      sync.Mutex
	openErr error
	device  string
	opened  bool
	running bool
	closes  int
}

func (m *mockSource) Open(sampleRate, frameSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

func (m *mockSource) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	for i := range p {
		p[i] = 0x11
	}
	return len(p), nil
}

func (m *mockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.opened = false
	return nil
}

func (m *mockSource) ListDevices() ([]audio.Device, error) {
	return []audio.Device{{ID: "default", Name: "Default", Default: true}}, nil
}

type mockStatus struct {
	mu      sync.Mutex
	history []string
}

func (m *mockStatus) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, s)
}

func (m *mockStatus) SetIdle()      { m.record("idle") }
func (m *mockStatus) SetRecording() { m.record("recording") }
func (m *mockStatus) SetSaving()    { m.record("saving") }
func (m *mockStatus) SetError()     { m.record("error") }

func (m *mockStatus) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return ""
	}
	return m.history[len(m.history)-1]
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	cfg.Audio.FrameSize = 160
	cfg.Output.Dir = t.TempDir()
	return cfg
}

var fixedTime = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

func newTestApp(t *testing.T, src audio.Source, status StatusUpdater) (*App, *config.Config) {
	cfg := testConfig(t)
	a := New(Config{
		Source:        src,
		Config:        cfg,
		Logger:        zerolog.Nop(),
		StatusUpdater: status,
		Now:           func() time.Time { return fixedTime },
	})
	return a, cfg
}

func TestRecordAndSave(t *testing.T) {
	src := &mockSource{}
	status := &mockStatus{}
	app, cfg := newTestApp(t, src, status)

	if app.IsRecording() {
		t.Error("App should not be recording initially")
	}

	if err := app.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !app.IsRecording() {
		t.Fatal("App should be recording after start")
	}
	if status.last() != "recording" {
		t.Errorf("expected recording status, got %q", status.last())
	}

	time.Sleep(20 * time.Millisecond)

	path, err := app.SaveRecording()
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if app.IsRecording() {
		t.Error("App should not be recording after save")
	}
	if status.last() != "idle" {
		t.Errorf("expected idle status, got %q", status.last())
	}

	wantPath := filepath.Join(cfg.Output.Dir, "audio_rec-20261019-150405.wav")
	if path != wantPath {
		t.Errorf("saved to %q, want %q", path, wantPath)
	}
	if app.LastRecording() != path {
		t.Errorf("LastRecording = %q", app.LastRecording())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	h, err := wav.ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	payload := len(data) - wav.HeaderSize
	if payload == 0 || payload%160 != 0 {
		t.Errorf("unexpected payload length %d", payload)
	}
	if h.SampleRate != 8000 || h.NumChannels != 1 || h.BitsPerSample != 16 || h.AudioFormat != 1 || h.SubChunk1Size != 16 {
		t.Errorf("unexpected header %+v", h)
	}
	if int(h.SubChunk2Size) != payload || int(h.ChunkSize) != 36+payload {
		t.Errorf("size fields %d/%d for payload %d", h.ChunkSize, h.SubChunk2Size, payload)
	}
	if data[wav.HeaderSize] != 0x11 {
		t.Errorf("payload does not hold captured bytes")
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.opened || src.running {
		t.Error("microphone should be released after saving")
	}
}

func TestSaveTwiceKeepsBothFiles(t *testing.T) {
	app, cfg := newTestApp(t, &mockSource{}, nil)

	for i := 0; i < 2; i++ {
		if err := app.StartRecording(); err != nil {
			t.Fatalf("StartRecording: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := app.SaveRecording(); err != nil {
			t.Fatalf("SaveRecording: %v", err)
		}
	}

	entries, err := os.ReadDir(cfg.Output.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 recordings, found %d", len(entries))
	}
	if entries[1].Name() != "audio_rec-20261019-150405.wav" && entries[0].Name() != "audio_rec-20261019-150405.wav" {
		t.Errorf("unexpected names %s, %s", entries[0].Name(), entries[1].Name())
	}
}

func TestSaveWithoutRecording(t *testing.T) {
	app, _ := newTestApp(t, &mockSource{}, nil)
	if _, err := app.SaveRecording(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if err := app.Discard(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording from Discard, got %v", err)
	}
}

func TestStartFailsWhenDeviceUnavailable(t *testing.T) {
	status := &mockStatus{}
	app, _ := newTestApp(t, &mockSource{openErr: errors.New("no mic")}, status)

	err := app.StartRecording()
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if app.IsRecording() {
		t.Error("App should not be recording after a failed start")
	}
	if status.last() != "error" {
		t.Errorf("expected error status, got %q", status.last())
	}
}

func TestToggle(t *testing.T) {
	app, cfg := newTestApp(t, &mockSource{}, nil)

	if err := app.Toggle(); err != nil {
		t.Fatalf("first Toggle: %v", err)
	}
	if !app.IsRecording() {
		t.Fatal("App should be recording after first toggle")
	}
	time.Sleep(5 * time.Millisecond)

	if err := app.Toggle(); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}
	if app.IsRecording() {
		t.Fatal("App should have stopped after second toggle")
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "audio_rec-20261019-150405.wav")); err != nil {
		t.Errorf("expected a saved recording: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	app, cfg := newTestApp(t, &mockSource{}, nil)
	if err := app.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := app.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	entries, _ := os.ReadDir(cfg.Output.Dir)
	if len(entries) != 0 {
		t.Errorf("Discard wrote %d files", len(entries))
	}
}

func TestStrictWavConfigRejectsBadParams(t *testing.T) {
	app, cfg := newTestApp(t, &mockSource{}, nil)
	cfg.Wav.Strict = true
	cfg.Wav.BitsPerSample = 12

	if err := app.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := app.SaveRecording(); !errors.Is(err, wav.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestShutdownSavesRunningRecording(t *testing.T) {
	app, _ := newTestApp(t, &mockSource{}, nil)
	if err := app.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if app.LastRecording() == "" {
		t.Error("Shutdown should save the running recording")
	}
}

func TestSetDevice(t *testing.T) {
	var built []string
	cfg := testConfig(t)
	app := New(Config{
		Source: &mockSource{},
		Config: cfg,
		Logger: zerolog.Nop(),
		NewSource: func(backend, deviceID string) (audio.Source, error) {
			built = append(built, deviceID)
			return &mockSource{device: deviceID}, nil
		},
	})

	if err := app.SetDevice("USB Mic"); err != nil {
		t.Fatalf("SetDevice: %v", err)
	}
	if cfg.Audio.DeviceID != "USB Mic" || len(built) != 1 {
		t.Errorf("device not switched: cfg=%q built=%v", cfg.Audio.DeviceID, built)
	}

	if err := app.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := app.SetDevice("Other"); err == nil {
		t.Error("expected error changing device while recording")
	}
	app.Discard()
}

func TestListDevices(t *testing.T) {
	app, _ := newTestApp(t, &mockSource{}, nil)
	devices, err := app.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "default" {
		t.Errorf("unexpected devices %+v", devices)
	}
}

func TestPCMDuration(t *testing.T) {
	if got := pcmDuration(88200, 44100); got != time.Second {
		t.Errorf("pcmDuration = %v, want 1s", got)
	}
	if got := pcmDuration(100, 0); got != 0 {
		t.Errorf("pcmDuration with zero rate = %v", got)
	}
}

type mockHotkeys struct {
	mu          sync.Mutex
	accel       string
	callback    func(bool)
	registerErr error
	closed      bool
}

func (m *mockHotkeys) Register(accel string, callback func(pressed bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	m.accel = accel
	m.callback = callback
	return nil
}

func (m *mockHotkeys) Unregister(accel string) error { return nil }

func (m *mockHotkeys) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockHotkeys) fire(pressed bool) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	cb(pressed)
}

func newHotkeyApp(t *testing.T, mode string) (*App, *mockHotkeys, *config.Config) {
	cfg := testConfig(t)
	cfg.HotkeyMode = mode
	hk := &mockHotkeys{}
	a := New(Config{
		Source:  &mockSource{},
		Hotkeys: hk,
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return fixedTime },
	})
	if err := a.RegisterHotkey("Alt+Shift+R"); err != nil {
		t.Fatalf("RegisterHotkey: %v", err)
	}
	if hk.accel != "Alt+Shift+R" {
		t.Fatalf("registered %q", hk.accel)
	}
	return a, hk, cfg
}

func TestHotkeyToggleMode(t *testing.T) {
	app, hk, cfg := newHotkeyApp(t, config.HotkeyToggle)

	hk.fire(true)
	if !app.IsRecording() {
		t.Fatal("press should start recording")
	}
	hk.fire(false)
	if !app.IsRecording() {
		t.Fatal("release should not stop recording in toggle mode")
	}
	time.Sleep(5 * time.Millisecond)

	hk.fire(true)
	if app.IsRecording() {
		t.Fatal("second press should save the recording")
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "audio_rec-20261019-150405.wav")); err != nil {
		t.Errorf("expected a saved recording: %v", err)
	}
}

func TestHotkeyHoldMode(t *testing.T) {
	app, hk, _ := newHotkeyApp(t, config.HotkeyHold)

	// Release without a recording does nothing.
	hk.fire(false)
	if app.IsRecording() || app.LastRecording() != "" {
		t.Fatal("stray release should be ignored")
	}

	hk.fire(true)
	hk.fire(true)
	if !app.IsRecording() {
		t.Fatal("press should start recording")
	}
	time.Sleep(5 * time.Millisecond)

	hk.fire(false)
	if app.IsRecording() {
		t.Fatal("release should save the recording")
	}
	if app.LastRecording() == "" {
		t.Error("expected a saved recording")
	}
}

func TestRegisterHotkey(t *testing.T) {
	cfg := testConfig(t)
	hk := &mockHotkeys{registerErr: errors.New("grab failed")}
	a := New(Config{Source: &mockSource{}, Hotkeys: hk, Config: cfg, Logger: zerolog.Nop()})

	if err := a.RegisterHotkey("Alt+R"); err == nil {
		t.Error("expected register error")
	}
	if err := a.RegisterHotkey(""); err != nil {
		t.Errorf("empty accelerator should disable the hotkey, got %v", err)
	}

	noHotkeys := New(Config{Source: &mockSource{}, Config: cfg, Logger: zerolog.Nop()})
	if err := noHotkeys.RegisterHotkey("Alt+R"); err != nil {
		t.Errorf("no manager should be a no-op, got %v", err)
	}
}

func TestShutdownClosesHotkeys(t *testing.T) {
	app, hk, _ := newHotkeyApp(t, config.HotkeyToggle)
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if !hk.closed {
		t.Error("Shutdown should close the hotkey manager")
	}
}
