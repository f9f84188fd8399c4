package tray

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/wavtray/internal/app"
	"github.com/petems/wavtray/internal/config"
	"github.com/petems/wavtray/internal/logging"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	mStartStop *systray.MenuItem
	mDiscard   *systray.MenuItem
	mDevices   *systray.MenuItem
	mCopyPath  *systray.MenuItem
}

// Status update methods for the app to call
// These run with the app lock held, so they must not call back into the app.
func (u *UI) SetIdle() {
	u.updateStatus("idle")
	u.syncMenu(false)
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
	u.syncMenu(true)
}

func (u *UI) SetSaving() {
	u.updateStatus("saving")
}

func (u *UI) SetError() {
	u.updateStatus("error")
	u.syncMenu(false)
}

func New(application *app.App, cfg *config.Config, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks until the tray quits. onQuit runs before the tray exits.
func (u *UI) Run(ctx context.Context, onQuit func()) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, func() {
		if onQuit != nil {
			onQuit()
		}
	})
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip("Microphone recorder")

	u.mStartStop = systray.AddMenuItem(recordLabel(false), "Start or save a recording")
	u.mDiscard = systray.AddMenuItem("Discard Recording", "Stop without saving")
	u.mDiscard.Disable()
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mRecordings := systray.AddMenuItem("Open Recordings", "Show saved recordings")
	u.mCopyPath = systray.AddMenuItem("Copy Last Recording Path", "Copy the path of the last saved file")

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About WavTray")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mRecordings, mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mRecordings, mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleRecording()
		case <-u.mDiscard.ClickedCh:
			u.discard()
		case <-mRecordings.ClickedCh:
			u.openPath(u.cfg.OutputDir())
		case <-u.mCopyPath.ClickedCh:
			u.copyLastPath()
		case <-mLogs.ClickedCh:
			u.openPath(logging.LogPath())
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggleRecording() {
	if err := u.app.Toggle(); err != nil {
		u.log.Error().Err(err).Msg("Recording action failed")
	}
}

func (u *UI) discard() {
	if err := u.app.Discard(); err != nil {
		u.log.Warn().Err(err).Msg("Nothing to discard")
	}
}

// syncMenu matches the menu to the recording state, which the hotkey can
// change as well as the menu.
func (u *UI) syncMenu(recording bool) {
	if u.mStartStop == nil {
		return
	}
	u.mStartStop.SetTitle(recordLabel(recording))
	if recording {
		u.mDiscard.Enable()
		u.mDevices.Disable()
	} else {
		u.mDiscard.Disable()
		u.mDevices.Enable()
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if deviceSelected(dev.ID, dev.Default, u.cfg.Audio.DeviceID) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Error().Err(err).Str("device", deviceName).Msg("Failed to change audio device")
					continue
				}
				// Uncheck all other items
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				if err := u.cfg.Save(); err != nil {
					u.log.Warn().Err(err).Msg("Failed to save config")
				}
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) copyLastPath() {
	path := u.app.LastRecording()
	if path == "" {
		u.log.Info().Msg("No recording saved yet")
		return
	}
	if err := clipboard.WriteAll(path); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy path to clipboard")
		return
	}
	u.log.Info().Str("path", path).Msg("Copied recording path")
}

func (u *UI) openPath(path string) {
	name, args := openCommand(runtime.GOOS, path)
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open path")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("About")
	fmt.Printf("WavTray %s (%s)\nRecordings: %s\n", u.version, u.commit, filepath.Clean(u.cfg.OutputDir()))
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	emoji := emojiForStatus(status)
	systray.SetTitle(fmt.Sprintf("🎤 %s", emoji))
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴"
	case "saving":
		return "🟡"
	case "idle":
		return "🟢"
	case "error":
		return "⚪️"
	default:
		return "🟢"
	}
}

func recordLabel(recording bool) string {
	if recording {
		return "Save Recording"
	}
	return "Start Recording"
}

// deviceSelected reports whether a device should be checked in the menu.
// With no configured device the system default is checked.
func deviceSelected(id string, isDefault bool, configured string) bool {
	if configured == "" {
		return isDefault
	}
	return id == configured
}

// openCommand returns the command that opens path with the desktop's
// default handler.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "explorer", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}
