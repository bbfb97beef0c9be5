//go:build cgo && (darwin || windows)

package keystroke

import (
	"context"
	"runtime"

	hook "github.com/robotn/gohook"
)

// HookTap uses libuiohook for a global keyboard hook on macOS and Windows.
// On macOS the process needs Accessibility permission.
type HookTap struct {
	BaseTap
	opts Options
}

func newPlatformTap(opts Options) Tap {
	return newHookTap(opts)
}

func newHookTap(opts Options) Tap {
	return &HookTap{opts: opts}
}

// Name returns "hook".
func (h *HookTap) Name() string { return BackendHook }

// Available reports whether a global hook can be installed.
func (h *HookTap) Available() (bool, string) {
	if runtime.GOOS == "darwin" {
		return true, "libuiohook event tap (requires Accessibility permission)"
	}
	return true, "libuiohook low-level keyboard hook"
}

// Start installs the hook. libuiohook allows one hook per process, so the
// hook is removed when ctx is done.
func (h *HookTap) Start(ctx context.Context) (<-chan Event, error) {
	ch, err := h.open(h.opts.queueSize())
	if err != nil {
		return nil, err
	}

	events := hook.Start()
	go func() {
		defer h.close()
		for {
			select {
			case <-ctx.Done():
				hook.End()
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				// KeyHold is libuiohook's key-pressed event; KeyDown only
				// fires for printable characters.
				if ev.Kind != hook.KeyHold {
					continue
				}
				if k, ok := hookKeys[ev.Keycode]; ok {
					h.Emit(k)
				}
			}
		}
	}()
	return ch, nil
}

// libuiohook virtual key codes. Keypad arrows report the "KP_*" codes with
// NumLock off and the digit codes with it on.
var hookKeys = map[uint16]Key{
	0xE048: KeyUp,
	0xE050: KeyDown,
	0xE04B: KeyLeft,
	0xE04D: KeyRight,
	0xEE48: KeyKP8,
	0xEE50: KeyKP2,
	0xEE4B: KeyKP4,
	0xEE4D: KeyKP6,
	0x0048: KeyKP8,
	0x0050: KeyKP2,
	0x004B: KeyKP4,
	0x004D: KeyKP6,
	0x0035: KeySlash,
	0x0E35: KeyKPDivide,
	0x001C: KeyReturn,
	0x0E1C: KeyKPEnter,
}
