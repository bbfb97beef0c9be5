// Package keystroke taps the system keyboard for directional combo input.
//
// IMPORTANT: This package is NOT a keylogger. Backends translate only the
// arrow keys, the keypad digits 8/2/4/6, slash, keypad divide, Return and
// keypad Enter. Every other key is dropped inside the backend before it
// reaches a channel, and raw key codes are never stored or logged.
//
// Platform support:
//   - Linux: reads /dev/input/event* through evdev (requires the input group or root)
//   - macOS, Windows: global hook through libuiohook (requires cgo; Accessibility
//     permission on macOS)
//   - Any platform: a terminal backend that only sees keys typed into the
//     controlling terminal
package keystroke

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Key is a normalized physical key. Only keys that can take part in a
// combo exist here.
type Key uint8

const (
	KeyUnknown Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyKP8
	KeyKP2
	KeyKP4
	KeyKP6
	KeySlash
	KeyKPDivide
	KeyReturn
	KeyKPEnter
)

var keyNames = map[Key]string{
	KeyUnknown:  "unknown",
	KeyUp:       "up",
	KeyDown:     "down",
	KeyLeft:     "left",
	KeyRight:    "right",
	KeyKP8:      "kp8",
	KeyKP2:      "kp2",
	KeyKP4:      "kp4",
	KeyKP6:      "kp6",
	KeySlash:    "slash",
	KeyKPDivide: "kp_divide",
	KeyReturn:   "return",
	KeyKPEnter:  "kp_enter",
}

func (k Key) String() string {
	if s, ok := keyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// Event is a single key press seen by a tap.
type Event struct {
	Key  Key
	Time time.Time
}

// Tap delivers key presses from a global input source.
type Tap interface {
	// Name identifies the backend ("evdev", "hook", "terminal", "simulated").
	Name() string

	// Available reports whether the backend can run with the current
	// platform and permissions, with a human readable reason.
	Available() (bool, string)

	// Start begins delivering events. The channel is closed when ctx is
	// done or the source fails.
	Start(ctx context.Context) (<-chan Event, error)
}

// Backend names accepted by New.
const (
	BackendAuto     = "auto"
	BackendEvdev    = "evdev"
	BackendHook     = "hook"
	BackendTerminal = "terminal"
)

// Backends lists the selectable backends in the order "devices" reports them.
var Backends = []string{BackendEvdev, BackendHook, BackendTerminal}

// DefaultQueueSize is the event channel capacity used when Options leaves
// it unset.
const DefaultQueueSize = 64

// Options configures a tap.
type Options struct {
	// Devices restricts the evdev backend to these paths. Empty means
	// every keyboard that can produce Enter.
	Devices []string

	// QueueSize is the event channel capacity.
	QueueSize int
}

func (o Options) queueSize() int {
	if o.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return o.QueueSize
}

// New creates a tap for the named backend. "auto" and "" select the
// platform default.
func New(backend string, opts Options) (Tap, error) {
	switch backend {
	case "", BackendAuto:
		return newPlatformTap(opts), nil
	case BackendEvdev:
		return newEvdevTap(opts), nil
	case BackendHook:
		return newHookTap(opts), nil
	case BackendTerminal:
		return NewTerminal(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// ErrNotAvailable is returned when no input source exists for a backend.
var ErrNotAvailable = errors.New("keyboard tap not available on this platform")

// ErrPermissionDenied is returned when permissions are insufficient.
var ErrPermissionDenied = errors.New("insufficient permissions for keyboard tap")

// ErrAlreadyRunning is returned when Start is called while already running.
var ErrAlreadyRunning = errors.New("tap already running")

// ErrUnknownBackend is returned by New for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown tap backend")

// BaseTap provides common functionality for backend implementations.
type BaseTap struct {
	mu      sync.Mutex
	running bool
	ch      chan Event
	dropped atomic.Uint64
	now     func() time.Time
}

// open marks the tap running and allocates its channel.
func (b *BaseTap) open(size int) (chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, ErrAlreadyRunning
	}
	b.running = true
	b.ch = make(chan Event, size)
	return b.ch, nil
}

// Emit forwards key to the consumer without blocking. OS hook callbacks
// call this directly, so a full channel drops the press and counts it.
func (b *BaseTap) Emit(key Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	t := time.Now()
	if b.now != nil {
		t = b.now()
	}
	select {
	case b.ch <- Event{Key: key, Time: t}:
	default:
		// Channel full, skip
		b.dropped.Add(1)
	}
}

// close stops the tap and closes the channel. Safe to call twice.
func (b *BaseTap) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.ch)
}

// IsRunning returns the running state.
func (b *BaseTap) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Dropped returns how many presses were discarded because the consumer
// fell behind.
func (b *BaseTap) Dropped() uint64 {
	return b.dropped.Load()
}

// DropCounter is implemented by taps that count discarded presses.
type DropCounter interface {
	Dropped() uint64
}

// unavailableTap stands in for a backend this build cannot provide.
type unavailableTap struct {
	name   string
	reason string
}

func (u unavailableTap) Name() string { return u.name }

func (u unavailableTap) Available() (bool, string) { return false, u.reason }

func (u unavailableTap) Start(context.Context) (<-chan Event, error) {
	return nil, fmt.Errorf("%s: %w", u.name, ErrNotAvailable)
}
