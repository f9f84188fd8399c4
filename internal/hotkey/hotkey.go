package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Accelerator is a parsed key combination such as "Ctrl+Shift+R".
type Accelerator struct {
	Mods Modifier
	// Key is the canonical key name: an upper-case letter, a digit,
	// F1-F12, Space, Return, Tab or Escape.
	Key string
}

func (a Accelerator) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModShift, "Shift"}, {ModAlt, "Alt"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, a.Key), "+")
}

// Parse reads an accelerator like "Alt+Space" or "cmd+shift+r". Modifier
// and key names are case-insensitive. Exactly one non-modifier key is
// required.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	for _, part := range strings.Split(accel, "+") {
		name := strings.TrimSpace(part)
		if name == "" {
			return Accelerator{}, fmt.Errorf("invalid hotkey %q: empty key", accel)
		}
		switch strings.ToLower(name) {
		case "ctrl", "control":
			a.Mods |= ModCtrl
			continue
		case "shift":
			a.Mods |= ModShift
			continue
		case "alt", "option", "opt":
			a.Mods |= ModAlt
			continue
		case "super", "cmd", "command", "meta", "win":
			a.Mods |= ModSuper
			continue
		}
		if a.Key != "" {
			return Accelerator{}, fmt.Errorf("invalid hotkey %q: more than one key", accel)
		}
		key, ok := canonicalKey(name)
		if !ok {
			return Accelerator{}, fmt.Errorf("invalid hotkey %q: unknown key %q", accel, name)
		}
		a.Key = key
	}
	if a.Key == "" {
		return Accelerator{}, fmt.Errorf("invalid hotkey %q: no key", accel)
	}
	return a, nil
}

func canonicalKey(name string) (string, bool) {
	if len(name) == 1 {
		c := strings.ToUpper(name)[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return string(c), true
		}
		return "", false
	}
	switch strings.ToLower(name) {
	case "space":
		return "Space", true
	case "return", "enter":
		return "Return", true
	case "tab":
		return "Tab", true
	case "escape", "esc":
		return "Escape", true
	}
	upper := strings.ToUpper(name)
	if _, ok := carbonFunctionKeys[upper]; ok {
		return upper, true
	}
	return "", false
}
