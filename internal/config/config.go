package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

type Config struct {
	LogLevel     string       `json:"log_level"`
	Hotkey       string       `json:"hotkey"`        // empty disables the global hotkey
	HotkeyDarwin string       `json:"hotkey_darwin"` // overrides Hotkey on macOS
	HotkeyMode   string       `json:"hotkey_mode"`   // "toggle" or "hold"
	Audio        AudioConfig  `json:"audio"`
	Wav          WavConfig    `json:"wav"`
	Output       OutputConfig `json:"output"`
}

const (
	HotkeyToggle = "toggle"
	HotkeyHold   = "hold"
)

type AudioConfig struct {
	Backend       string `json:"backend"` // "portaudio" or "malgo"
	DeviceID      string `json:"device_id"`
	SampleRate    int    `json:"sample_rate"`
	FrameSize     int    `json:"frame_size"` // bytes per read
	StopTimeoutMs int    `json:"stop_timeout_ms"`
}

// WavConfig holds the parameters written into saved files.
type WavConfig struct {
	AudioFormat   int  `json:"audio_format"`
	SampleRate    int  `json:"sample_rate"` // 0 = same as capture
	BitsPerSample int  `json:"bits_per_sample"`
	Channels      int  `json:"channels"`
	SubChunk1Size int  `json:"sub_chunk1_size"`
	Strict        bool `json:"strict"`
}

type OutputConfig struct {
	Dir        string `json:"dir"` // empty = RecordingsPath()
	FilePrefix string `json:"file_prefix"`
}

// Default returns the built-in configuration: 44.1 kHz mono 16-bit PCM
// captured in 320-byte frames.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		Hotkey:       "Alt+Shift+R",
		HotkeyDarwin: "Ctrl+Option+R",
		HotkeyMode:   HotkeyToggle,
		Audio: AudioConfig{
			Backend:       "portaudio",
			DeviceID:      "",
			SampleRate:    44100,
			FrameSize:     320,
			StopTimeoutMs: 2000,
		},
		Wav: WavConfig{
			AudioFormat:   1,
			SampleRate:    0,
			BitsPerSample: 16,
			Channels:      1,
			SubChunk1Size: 16,
		},
		Output: OutputConfig{
			Dir:        "",
			FilePrefix: "audio_rec",
		},
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom reads the config at path over the defaults. A missing file is
// not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(configPath())
}

func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the capture settings. Wave parameters are written as
// given; with Wav.Strict the encoder rejects bad ones when saving.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "", "portaudio", "malgo":
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameSize <= 0 || c.Audio.FrameSize%2 != 0 {
		return fmt.Errorf("audio.frame_size must be a positive even number of bytes, got %d", c.Audio.FrameSize)
	}
	if c.Audio.StopTimeoutMs < 0 {
		return fmt.Errorf("audio.stop_timeout_ms must not be negative")
	}
	switch c.HotkeyMode {
	case "", HotkeyToggle, HotkeyHold:
	default:
		return fmt.Errorf("unknown hotkey_mode %q", c.HotkeyMode)
	}
	if c.Output.FilePrefix == "" {
		return fmt.Errorf("output.file_prefix must not be empty")
	}
	return nil
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// StopTimeout returns Audio.StopTimeoutMs as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Audio.StopTimeoutMs) * time.Millisecond
}

// WavSampleRate returns the sample rate declared in saved files.
func (c *Config) WavSampleRate() int {
	if c.Wav.SampleRate == 0 {
		return c.Audio.SampleRate
	}
	return c.Wav.SampleRate
}

// OutputDir returns where recordings are saved.
func (c *Config) OutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return RecordingsPath()
}

// Path returns the default config file location.
func Path() string {
	return configPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "wavtray", "config.json")
}

// RecordingsPath returns the platform-specific default directory for saved
// recordings.
func RecordingsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Music"
	case "windows":
		base = os.Getenv("USERPROFILE") + `\Music`
	default:
		if xdg := os.Getenv("XDG_MUSIC_DIR"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/Music"
		}
	}

	return filepath.Join(base, "wavtray")
}
