package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/wavtray/internal/app"
	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/config"
	"github.com/petems/wavtray/internal/hotkey"
	"github.com/petems/wavtray/internal/logging"
	"github.com/petems/wavtray/internal/permissions"
	"github.com/petems/wavtray/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := audio.NewSource(cfg.Audio.Backend, cfg.Audio.DeviceID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize hotkeys")
	}

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(nil, cfg, log, Version, Commit) // App reference set below

	application := app.New(app.Config{
		Source:        src,
		Hotkeys:       hkManager,
		Config:        cfg,
		Logger:        log,
		StatusUpdater: trayUI,
	})

	trayUI.SetApp(application)

	// Register global hotkey. The tray still works without it.
	if err := application.RegisterHotkey(cfg.PlatformHotkey()); err != nil {
		log.Warn().Err(err).Msg("Global hotkey unavailable")
	}

	log.Info().
		Str("backend", cfg.Audio.Backend).
		Str("recordings", cfg.OutputDir()).
		Msg("WavTray starting...")

	// Start tray UI - MUST run on main thread
	err = trayUI.Run(ctx, func() {
		log.Info().Msg("Shutting down...")
		if err := application.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Tray error")
	}
}
