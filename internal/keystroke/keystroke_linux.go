//go:build linux

package keystroke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// EvdevTap reads key presses from /dev/input event devices on Linux.
type EvdevTap struct {
	BaseTap
	opts Options

	devMu   sync.Mutex
	devices []*evdev.InputDevice
	wg      sync.WaitGroup
}

func newPlatformTap(opts Options) Tap {
	return newEvdevTap(opts)
}

func newEvdevTap(opts Options) Tap {
	return &EvdevTap{opts: opts}
}

// Name returns "evdev".
func (e *EvdevTap) Name() string { return BackendEvdev }

// Available checks if we can read at least one keyboard device.
func (e *EvdevTap) Available() (bool, string) {
	paths, err := e.keyboardPaths()
	if err != nil {
		return false, fmt.Sprintf("cannot find keyboard devices: %v", err)
	}
	if len(paths) == 0 {
		return false, "no keyboard devices found"
	}

	for _, p := range paths {
		if unix.Access(p, unix.R_OK) == nil {
			return true, fmt.Sprintf("found keyboard device: %s", p)
		}
	}
	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

// KeyboardDevice describes an input device that can produce combo keys.
type KeyboardDevice struct {
	Path     string
	Name     string
	Readable bool
}

// ListKeyboards returns every event device that advertises the Enter key.
func ListKeyboards() ([]KeyboardDevice, error) {
	inputs, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	var out []KeyboardDevice
	for _, in := range inputs {
		kd := KeyboardDevice{Path: in.Path, Name: in.Name}
		dev, err := evdev.Open(in.Path)
		if err != nil {
			// Unreadable devices are still listed so "devices" can explain why.
			if errors.Is(err, os.ErrPermission) {
				out = append(out, kd)
			}
			continue
		}
		ok := isKeyboard(dev)
		dev.Close()
		if ok {
			kd.Readable = true
			out = append(out, kd)
		}
	}
	return out, nil
}

func isKeyboard(dev *evdev.InputDevice) bool {
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		if code == evdev.KEY_ENTER || code == evdev.KEY_KPENTER {
			return true
		}
	}
	return false
}

func (e *EvdevTap) keyboardPaths() ([]string, error) {
	if len(e.opts.Devices) > 0 {
		return e.opts.Devices, nil
	}
	kbds, err := ListKeyboards()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(kbds))
	for _, k := range kbds {
		paths = append(paths, k.Path)
	}
	return paths, nil
}

// Start opens every keyboard and reads them concurrently into one channel.
func (e *EvdevTap) Start(ctx context.Context) (<-chan Event, error) {
	if e.IsRunning() {
		return nil, ErrAlreadyRunning
	}

	paths, err := e.keyboardPaths()
	if err != nil || len(paths) == 0 {
		return nil, ErrNotAvailable
	}

	var devs []*evdev.InputDevice
	denied := false
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				denied = true
			}
			continue
		}
		devs = append(devs, dev)
	}
	if len(devs) == 0 {
		if denied {
			return nil, ErrPermissionDenied
		}
		return nil, ErrNotAvailable
	}

	ch, err := e.open(e.opts.queueSize())
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		return nil, err
	}

	e.devMu.Lock()
	e.devices = devs
	e.devMu.Unlock()

	for _, d := range devs {
		e.wg.Add(1)
		go e.readLoop(d)
	}

	// Closing the devices unblocks ReadOne.
	stop := context.AfterFunc(ctx, e.closeDevices)
	go func() {
		e.wg.Wait()
		stop()
		e.closeDevices()
		e.close()
	}()
	return ch, nil
}

func (e *EvdevTap) closeDevices() {
	e.devMu.Lock()
	defer e.devMu.Unlock()
	for _, d := range e.devices {
		d.Close()
	}
	e.devices = nil
}

func (e *EvdevTap) readLoop(dev *evdev.InputDevice) {
	defer e.wg.Done()
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			return
		}
		// Presses only; repeats (2) and releases (0) are ignored.
		if ev.Type != evdev.EV_KEY || ev.Value != 1 {
			continue
		}
		if k, ok := evdevKeys[ev.Code]; ok {
			e.Emit(k)
		}
	}
}

var evdevKeys = map[evdev.EvCode]Key{
	evdev.KEY_UP:      KeyUp,
	evdev.KEY_DOWN:    KeyDown,
	evdev.KEY_LEFT:    KeyLeft,
	evdev.KEY_RIGHT:   KeyRight,
	evdev.KEY_KP8:     KeyKP8,
	evdev.KEY_KP2:     KeyKP2,
	evdev.KEY_KP4:     KeyKP4,
	evdev.KEY_KP6:     KeyKP6,
	evdev.KEY_SLASH:   KeySlash,
	evdev.KEY_KPSLASH: KeyKPDivide,
	evdev.KEY_ENTER:   KeyReturn,
	evdev.KEY_KPENTER: KeyKPEnter,
}
