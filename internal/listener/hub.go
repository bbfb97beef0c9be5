// Package listener turns a stream of key presses into completed combos.
//
// A Hub owns the process-wide input tap. One dispatch goroutine reads the
// tap and records directional inputs while the hub is Armed. When the
// terminator arrives the goroutine disarms the hub and suspends itself
// until the next listen. A foreground caller arms the hub, waits on the
// same condition variable for the ready signal, and drains the buffered
// sequence.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"comboboard/internal/combo"
	"comboboard/internal/keystroke"
	"comboboard/internal/logging"
)

// State is the handshake state between the dispatch goroutine and the
// consumer.
type State int32

const (
	// Idle: the dispatch goroutine is suspended and records nothing.
	Idle State = iota
	// Armed: inputs are recorded until the terminator.
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

var (
	// ErrHubExists is returned by Open when the process already has a hub.
	ErrHubExists = errors.New("listener hub already open in this process")

	// ErrListenInProgress is returned when a second listen overlaps the first.
	ErrListenInProgress = errors.New("listen already in progress")

	// ErrTapClosed is returned once the input tap has stopped delivering.
	ErrTapClosed = errors.New("input tap stopped")

	// ErrHubClosed is returned after Close.
	ErrHubClosed = errors.New("listener hub closed")
)

// Options configures a Hub.
type Options struct {
	// IdleWindow is the longest gap between two inputs of one combo.
	// Zero means DefaultIdleWindow.
	IdleWindow time.Duration

	// Logger defaults to the "listener" component of the default logger.
	Logger *logging.Logger

	// Crash records panics on the dispatch goroutine before exiting.
	// Defaults to logging.DefaultCrashHandler().
	Crash *logging.CrashHandler

	// Clock stamps events that carry no time of their own and measures
	// listen waits. Defaults to time.Now.
	Clock func() time.Time
}

// Stats is a snapshot of hub activity.
type Stats struct {
	State       State
	Pending     int
	Symbols     uint64
	Terminators uint64
	Listens     uint64
	Dropped     uint64
	TapRunning  bool
}

// Hub coordinates the input tap with listeners. Use Open to create the
// process-wide instance.
type Hub struct {
	tap   keystroke.Tap
	log   *logging.Logger
	crash *logging.CrashHandler
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once

	// mu guards everything below; cond is signalled on every state change.
	mu        sync.Mutex
	startErr  error
	cond      *sync.Cond
	acc       accumulator
	state     State
	ready     bool
	listening bool
	tapDone   bool
	closed    bool
	stats     Stats
}

var claimed atomic.Bool

// Open creates the process-wide hub reading from tap. The tap is not
// started until the first listen. A second call returns ErrHubExists.
func Open(tap keystroke.Tap, opts Options) (*Hub, error) {
	if !claimed.CompareAndSwap(false, true) {
		return nil, ErrHubExists
	}
	return newHub(tap, opts), nil
}

func newHub(tap keystroke.Tap, opts Options) *Hub {
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("listener")
	}
	if opts.Crash == nil {
		opts.Crash = logging.DefaultCrashHandler()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		tap:    tap,
		log:    opts.Logger,
		crash:  opts.Crash,
		now:    opts.Clock,
		ctx:    ctx,
		cancel: cancel,
		acc:    accumulator{window: opts.IdleWindow},
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// IdleWindow returns the configured idle window.
func (h *Hub) IdleWindow() time.Duration {
	return h.acc.window
}

// TapName returns the backend name of the input tap.
func (h *Hub) TapName() string {
	return h.tap.Name()
}

// start launches the tap and the dispatch goroutine once. A start failure
// is sticky.
func (h *Hub) start() error {
	h.startOnce.Do(func() {
		events, err := h.tap.Start(h.ctx)
		if err != nil {
			h.mu.Lock()
			h.startErr = fmt.Errorf("start %s tap: %w", h.tap.Name(), err)
			h.mu.Unlock()
			return
		}
		h.log.Info("input tap started", "backend", h.tap.Name(), "idle_window", h.acc.window)
		go h.dispatch(events)
	})
	return h.startErr
}

func (h *Hub) dispatch(events <-chan keystroke.Event) {
	// A panic here is fatal: buffer state is unknown afterwards.
	defer h.crash.RecoverAndExit(map[string]interface{}{"goroutine": "listener.dispatch"})

	for ev := range events {
		h.handle(ev)
	}

	h.mu.Lock()
	h.tapDone = true
	h.state = Idle
	h.cond.Broadcast()
	h.mu.Unlock()
	h.log.Warn("input tap stopped", "backend", h.tap.Name())
}

// handle processes one event to completion. While the hub is Idle it
// blocks, so later events wait in the tap's queue.
func (h *Hub) handle(ev keystroke.Event) {
	in, kind := keystroke.Translate(ev.Key)
	if kind == keystroke.KindIgnored {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for h.state != Armed && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return
	}

	t := ev.Time
	if t.IsZero() {
		t = h.now()
	}

	switch kind {
	case keystroke.KindSymbol:
		h.acc.record(in, t)
		h.stats.Symbols++
	case keystroke.KindTerminator:
		h.acc.stamp(t)
		h.stats.Terminators++
		h.state = Idle
		h.ready = true
		h.cond.Broadcast()
	}
}

// Listen arms the hub and blocks until the terminator is pressed, then
// returns the inputs recorded since the last drain. The result may be
// empty. If ctx is done first the hub disarms and ctx.Err() is returned;
// inputs recorded so far stay buffered.
func (h *Hub) Listen(ctx context.Context) (combo.Sequence, error) {
	if err := h.start(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrHubClosed
	case h.tapDone:
		return nil, ErrTapClosed
	case h.listening:
		return nil, ErrListenInProgress
	}

	h.listening = true
	h.state = Armed
	h.ready = false
	h.stats.Listens++
	h.cond.Broadcast()

	stop := context.AfterFunc(ctx, func() {
		h.mu.Lock()
		h.cond.Broadcast()
		h.mu.Unlock()
	})
	defer stop()

	for !h.ready && !h.tapDone && !h.closed && ctx.Err() == nil {
		h.cond.Wait()
	}
	h.listening = false

	if h.ready {
		h.ready = false
		return h.acc.drain(), nil
	}

	h.state = Idle
	switch {
	case h.closed:
		return nil, ErrHubClosed
	case h.tapDone:
		return nil, ErrTapClosed
	}
	return nil, ctx.Err()
}

// Stats returns a snapshot of hub activity.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	s := h.stats
	s.State = h.state
	s.Pending = h.acc.pending()
	s.TapRunning = h.startErr == nil && !h.tapDone && !h.closed && h.stats.Listens > 0
	h.mu.Unlock()

	if dc, ok := h.tap.(keystroke.DropCounter); ok {
		s.Dropped = dc.Dropped()
	}
	return s
}

// Healthy reports whether the tap started and is still delivering. A hub
// that has not listened yet is healthy.
func (h *Hub) Healthy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.startErr != nil:
		return h.startErr
	case h.closed:
		return ErrHubClosed
	case h.tapDone:
		return ErrTapClosed
	}
	return nil
}

// Close stops the tap and wakes every waiter. The process-wide claim made
// by Open is kept.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	h.state = Idle
	h.cond.Broadcast()
	h.mu.Unlock()
	h.cancel()
	return nil
}
