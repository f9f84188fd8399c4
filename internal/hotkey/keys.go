package hotkey

import "strings"

// X11 modifier masks from X.h.
const (
	x11ShiftMask   = 1 << 0
	x11ControlMask = 1 << 2
	x11Mod1Mask    = 1 << 3 // Alt
	x11Mod4Mask    = 1 << 6 // Super
)

func x11Modifiers(m Modifier) uint {
	var mask uint
	if m&ModShift != 0 {
		mask |= x11ShiftMask
	}
	if m&ModCtrl != 0 {
		mask |= x11ControlMask
	}
	if m&ModAlt != 0 {
		mask |= x11Mod1Mask
	}
	if m&ModSuper != 0 {
		mask |= x11Mod4Mask
	}
	return mask
}

// x11Keysym returns the keysym name XStringToKeysym expects for key.
func x11Keysym(key string) string {
	switch key {
	case "Space":
		return "space"
	case "Return", "Tab", "Escape":
		return key
	}
	if len(key) == 1 {
		return strings.ToLower(key)
	}
	return key
}

// Carbon modifier flags from Events.h.
const (
	carbonCmdKey     = 0x0100
	carbonShiftKey   = 0x0200
	carbonOptionKey  = 0x0800
	carbonControlKey = 0x1000
)

func carbonModifiers(m Modifier) uint32 {
	var flags uint32
	if m&ModSuper != 0 {
		flags |= carbonCmdKey
	}
	if m&ModShift != 0 {
		flags |= carbonShiftKey
	}
	if m&ModAlt != 0 {
		flags |= carbonOptionKey
	}
	if m&ModCtrl != 0 {
		flags |= carbonControlKey
	}
	return flags
}

// Virtual key codes (kVK_*) for an ANSI keyboard.
var carbonKeys = map[string]uint32{
	"A": 0x00, "S": 0x01, "D": 0x02, "F": 0x03, "H": 0x04, "G": 0x05,
	"Z": 0x06, "X": 0x07, "C": 0x08, "V": 0x09, "B": 0x0B, "Q": 0x0C,
	"W": 0x0D, "E": 0x0E, "R": 0x0F, "Y": 0x10, "T": 0x11, "O": 0x1F,
	"U": 0x20, "I": 0x22, "P": 0x23, "L": 0x25, "J": 0x26, "K": 0x28,
	"N": 0x2D, "M": 0x2E,
	"1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15, "5": 0x17, "6": 0x16,
	"7": 0x1A, "8": 0x1C, "9": 0x19, "0": 0x1D,
	"Space": 0x31, "Return": 0x24, "Tab": 0x30, "Escape": 0x35,
}

var carbonFunctionKeys = map[string]uint32{
	"F1": 0x7A, "F2": 0x78, "F3": 0x63, "F4": 0x76, "F5": 0x60, "F6": 0x61,
	"F7": 0x62, "F8": 0x64, "F9": 0x65, "F10": 0x6D, "F11": 0x67, "F12": 0x6F,
}

func carbonKeyCode(key string) (uint32, bool) {
	if code, ok := carbonKeys[key]; ok {
		return code, true
	}
	code, ok := carbonFunctionKeys[key]
	return code, ok
}
