package tray

import (
	"testing"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"idle", "🟢"},
		{"recording", "🔴"},
		{"saving", "🟡"},
		{"error", "⚪️"},
		{"unknown", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestRecordLabel(t *testing.T) {
	if got := recordLabel(false); got != "Start Recording" {
		t.Errorf("idle label = %q", got)
	}
	if got := recordLabel(true); got != "Save Recording" {
		t.Errorf("recording label = %q", got)
	}
}

func TestDeviceSelected(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		isDefault  bool
		configured string
		want       bool
	}{
		{"default device with nothing configured", "Built-in", true, "", true},
		{"other device with nothing configured", "USB", false, "", false},
		{"configured device", "USB", false, "USB", true},
		{"default device when another is configured", "Built-in", true, "USB", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceSelected(tt.id, tt.isDefault, tt.configured); got != tt.want {
				t.Errorf("deviceSelected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "explorer"},
		{"linux", "xdg-open"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "/tmp/x")
			if name != tt.want || len(args) != 1 || args[0] != "/tmp/x" {
				t.Errorf("openCommand(%q) = %s %v", tt.goos, name, args)
			}
		})
	}
}
