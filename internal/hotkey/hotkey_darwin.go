//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(int pressed);

static EventHotKeyRef hotKeyRef = NULL;
static int handlerInstalled = 0;

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback(pressed);

    return noErr;
}

// Register hotkey with Carbon
static int registerHotkey(UInt32 keyCode, UInt32 modifiers) {
    if (!handlerInstalled) {
        EventTypeSpec eventTypes[2];
        eventTypes[0].eventClass = kEventClassKeyboard;
        eventTypes[0].eventKind = kEventHotKeyPressed;
        eventTypes[1].eventClass = kEventClassKeyboard;
        eventTypes[1].eventKind = kEventHotKeyReleased;

        EventHandlerUPP handlerUPP = NewEventHandlerUPP(hotkeyHandler);
        InstallApplicationEventHandler(handlerUPP, 2, eventTypes, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'wavt';
    hotKeyID.id = 1;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRef);

    return (status == noErr) ? 1 : 0;
}

static void unregisterHotkey() {
    if (hotKeyRef != NULL) {
        UnregisterEventHotKey(hotKeyRef);
        hotKeyRef = NULL;
    }
}
*/
import "C"

import (
	"fmt"
	"sync"
)

// Carbon delivers every hotkey through one handler, so the manager holds a
// single accelerator.
type darwinManager struct {
	accel    string
	callback func(bool)
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	return &darwinManager{}, nil
}

//export goHotkeyCallback
func goHotkeyCallback(pressed C.int) {
	globalMu.Lock()
	var cb func(bool)
	if globalManager != nil {
		cb = globalManager.callback
	}
	globalMu.Unlock()
	if cb != nil {
		cb(pressed == 1)
	}
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}
	keyCode, ok := carbonKeyCode(a.Key)
	if !ok {
		return fmt.Errorf("no key code for %s", a)
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	C.unregisterHotkey()
	if C.registerHotkey(C.UInt32(keyCode), C.UInt32(carbonModifiers(a.Mods))) == 0 {
		return fmt.Errorf("failed to register hotkey %s", a)
	}

	m.accel = a.String()
	m.callback = callback
	globalManager = m
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if m.accel != a.String() {
		return nil
	}
	C.unregisterHotkey()
	m.accel = ""
	m.callback = nil
	return nil
}

func (m *darwinManager) Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	C.unregisterHotkey()
	if globalManager == m {
		globalManager = nil
	}
	return nil
}
