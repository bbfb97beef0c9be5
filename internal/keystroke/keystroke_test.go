package keystroke

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"comboboard/internal/combo"
)

// =============================================================================
// Tests for Translate
// =============================================================================

func TestTranslate(t *testing.T) {
	tests := []struct {
		key  Key
		in   combo.Input
		kind Kind
	}{
		{KeyUp, combo.Up, KindSymbol},
		{KeyKP8, combo.Up, KindSymbol},
		{KeyDown, combo.Down, KindSymbol},
		{KeyKP2, combo.Down, KindSymbol},
		{KeyLeft, combo.Left, KindSymbol},
		{KeyKP4, combo.Left, KindSymbol},
		{KeyRight, combo.Right, KindSymbol},
		{KeyKP6, combo.Right, KindSymbol},
		{KeySlash, combo.Mark, KindSymbol},
		{KeyKPDivide, combo.Mark, KindSymbol},
		{KeyReturn, 0, KindTerminator},
		{KeyKPEnter, 0, KindTerminator},
		{KeyUnknown, 0, KindIgnored},
		{Key(200), 0, KindIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			in, kind := Translate(tt.key)
			if kind != tt.kind {
				t.Errorf("kind = %v, want %v", kind, tt.kind)
			}
			if kind == KindSymbol && in != tt.in {
				t.Errorf("input = %v, want %v", in, tt.in)
			}
		})
	}
}

func TestKeyForRoundTrip(t *testing.T) {
	for _, in := range combo.Inputs {
		got, kind := Translate(KeyFor(in))
		if kind != KindSymbol || got != in {
			t.Errorf("Translate(KeyFor(%v)) = %v, %v", in, got, kind)
		}
	}
}

// =============================================================================
// Tests for New
// =============================================================================

func TestNewBackends(t *testing.T) {
	for _, name := range append([]string{"", BackendAuto}, Backends...) {
		tap, err := New(name, Options{})
		if err != nil {
			t.Errorf("New(%q): %v", name, err)
			continue
		}
		if tap == nil {
			t.Errorf("New(%q) returned nil tap", name)
		}
	}

	_, err := New("joystick", Options{})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestOptionsQueueSize(t *testing.T) {
	if got := (Options{}).queueSize(); got != DefaultQueueSize {
		t.Errorf("default queue size = %d", got)
	}
	if got := (Options{QueueSize: 3}).queueSize(); got != 3 {
		t.Errorf("queue size = %d, want 3", got)
	}
}

func TestUnavailableTap(t *testing.T) {
	u := unavailableTap{name: "x", reason: "nope"}
	ok, reason := u.Available()
	if ok || reason != "nope" {
		t.Errorf("Available() = %v, %q", ok, reason)
	}
	if _, err := u.Start(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}
}

// =============================================================================
// Tests for SimulatedTap
// =============================================================================

func TestSimulatedTap(t *testing.T) {
	sim := NewSimulated(0)

	if ok, _ := sim.Available(); !ok {
		t.Error("simulated tap should always be available")
	}
	if sim.Name() != "simulated" {
		t.Errorf("Name() = %q", sim.Name())
	}

	// Presses before Start are lost.
	sim.Press(KeyUp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := sim.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sim.IsRunning() {
		t.Error("should be running after Start")
	}

	if _, err := sim.Start(ctx); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	sim.Type(combo.Seq(combo.Mark, combo.Down))
	want := []Key{KeySlash, KeyDown, KeyReturn}
	for i, k := range want {
		select {
		case ev := <-ch:
			if ev.Key != k {
				t.Errorf("event %d: got %v, want %v", i, ev.Key, k)
			}
			if ev.Time.IsZero() {
				t.Errorf("event %d has zero time", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestSimulatedTapClosesOnCancel(t *testing.T) {
	sim := NewSimulated(4)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := sim.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if sim.IsRunning() {
		t.Error("should not be running after cancel")
	}

	// Emit after close must not panic.
	sim.Press(KeyUp)
	sim.Close()
}

func TestSimulatedTapDropsWhenFull(t *testing.T) {
	sim := NewSimulated(2)
	ch, err := sim.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sim.Press(KeyUp, KeyDown, KeyLeft, KeyRight)

	if got := sim.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if len(ch) != 2 {
		t.Errorf("queued = %d, want 2", len(ch))
	}
	if ev := <-ch; ev.Key != KeyUp {
		t.Errorf("first event = %v, want up", ev.Key)
	}
}

func TestSimulatedTapClock(t *testing.T) {
	sim := NewSimulated(1)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim.SetClock(func() time.Time { return fixed })

	ch, _ := sim.Start(context.Background())
	sim.Press(KeyReturn)
	if ev := <-ch; !ev.Time.Equal(fixed) {
		t.Errorf("event time = %v, want %v", ev.Time, fixed)
	}
}

func TestSimulatedTapConcurrentEmit(t *testing.T) {
	sim := NewSimulated(1000)
	ch, _ := sim.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sim.Press(KeyLeft)
			}
		}()
	}
	wg.Wait()

	if len(ch) != 1000 {
		t.Errorf("queued = %d, want 1000", len(ch))
	}
}

// =============================================================================
// Tests for TerminalTap
// =============================================================================

func newSimTerminal(t *testing.T) (*TerminalTap, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	tap := NewTerminal(Options{QueueSize: 16})
	tap.newScreen = func() (tcell.Screen, error) { return screen, nil }
	return tap, screen
}

func TestTerminalTapTranslatesKeys(t *testing.T) {
	tap, screen := newSimTerminal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := tap.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	screen.InjectKey(tcell.KeyRune, '/', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'a', tcell.ModNone) // ignored
	screen.InjectKey(tcell.KeyUp, 0, tcell.ModNone)
	screen.InjectKey(tcell.KeyRight, 0, tcell.ModNone)
	screen.InjectKey(tcell.KeyEnter, '\r', tcell.ModNone)

	want := []Key{KeySlash, KeyUp, KeyRight, KeyReturn}
	for i, k := range want {
		select {
		case ev := <-ch:
			if ev.Key != k {
				t.Errorf("event %d: got %v, want %v", i, ev.Key, k)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestTerminalTapEscapeCloses(t *testing.T) {
	tap, screen := newSimTerminal(t)
	ch, err := tap.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Escape")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after Escape")
	}
}
