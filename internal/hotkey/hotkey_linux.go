//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/XKBlib.h>
#include <stdlib.h>

static Display* displayPtr = NULL;

// Lock and NumLock variants are grabbed too, otherwise the hotkey stops
// firing while either is on.
static const unsigned int lockMasks[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};

static int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
        if (displayPtr != NULL) {
            // Report a held key as one press and one release.
            XkbSetDetectableAutoRepeat(displayPtr, True, NULL);
        }
    }
    return displayPtr != NULL;
}

// grabKey returns the grabbed keycode, 0 if there is no display and -1 if
// the keysym is unknown.
static int grabKey(const char* keysym, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    KeySym sym = XStringToKeysym(keysym);
    if (sym == NoSymbol) return -1;
    KeyCode code = XKeysymToKeycode(displayPtr, sym);
    if (code == 0) return -1;

    Window root = DefaultRootWindow(displayPtr);
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, code, modifiers | lockMasks[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return code;
}

static void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;
    Window root = DefaultRootWindow(displayPtr);
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | lockMasks[i], root);
    }
    XSync(displayPtr, False);
}

static int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}

static void closeDisplay() {
    if (displayPtr != NULL) {
        XCloseDisplay(displayPtr);
        displayPtr = NULL;
    }
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

type grab struct {
	keycode   C.int
	modifiers C.uint
	callback  func(bool)
}

type linuxManager struct {
	mu    sync.Mutex // guards grabs and every X11 call
	grabs map[string]grab
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	mgr := &linuxManager{
		grabs: make(map[string]grab),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	keysym := C.CString(x11Keysym(a.Key))
	defer C.free(unsafe.Pointer(keysym))
	mods := C.uint(x11Modifiers(a.Mods))

	m.mu.Lock()
	defer m.mu.Unlock()

	code := C.grabKey(keysym, mods)
	switch {
	case code == 0:
		return fmt.Errorf("failed to grab key %s: cannot open X display", a)
	case code < 0:
		return fmt.Errorf("failed to grab key %s: no keycode for %q", a, x11Keysym(a.Key))
	}

	m.grabs[a.String()] = grab{keycode: code, modifiers: mods, callback: callback}
	return nil
}

func (m *linuxManager) eventLoop() {
	defer close(m.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			m.mu.Lock()
			got := C.checkEvent(&keycode, &pressed) != 0
			var cb func(bool)
			if got {
				for _, g := range m.grabs {
					if g.keycode == keycode {
						cb = g.callback
						break
					}
				}
			}
			m.mu.Unlock()
			if cb != nil {
				cb(pressed == 1)
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grabs[a.String()]
	if !ok {
		return nil
	}
	C.ungrabKey(g.keycode, g.modifiers)
	delete(m.grabs, a.String())
	return nil
}

func (m *linuxManager) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, g := range m.grabs {
		C.ungrabKey(g.keycode, g.modifiers)
		delete(m.grabs, name)
	}
	C.closeDisplay()
	return nil
}
