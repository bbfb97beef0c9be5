package keystroke

import (
	"context"
	"time"

	"comboboard/internal/combo"
)

// SimulatedTap is a tap for testing that doesn't hook the real keyboard.
type SimulatedTap struct {
	BaseTap
	size int
}

// NewSimulated creates a tap for testing. A queue size of zero uses
// DefaultQueueSize.
func NewSimulated(queueSize int) *SimulatedTap {
	return &SimulatedTap{size: Options{QueueSize: queueSize}.queueSize()}
}

// SetClock overrides the timestamp source for emitted events.
func (s *SimulatedTap) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Name returns "simulated".
func (s *SimulatedTap) Name() string { return "simulated" }

// Available returns true (simulated is always available).
func (s *SimulatedTap) Available() (bool, string) {
	return true, "simulated tap (for testing)"
}

// Start begins the simulated tap. The channel closes when ctx is done or
// Close is called.
func (s *SimulatedTap) Start(ctx context.Context) (<-chan Event, error) {
	ch, err := s.open(s.size)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, s.close)
	return ch, nil
}

// Close stops the tap as if its source had failed.
func (s *SimulatedTap) Close() {
	s.close()
}

// Press simulates key presses in order. Presses while stopped are lost.
func (s *SimulatedTap) Press(keys ...Key) {
	for _, k := range keys {
		s.Emit(k)
	}
}

// Type presses the keys for seq followed by Return.
func (s *SimulatedTap) Type(seq combo.Sequence) {
	for _, in := range seq {
		s.Emit(KeyFor(in))
	}
	s.Emit(KeyReturn)
}

// KeyFor returns the main-block key that translates to in.
func KeyFor(in combo.Input) Key {
	switch in {
	case combo.Mark:
		return KeySlash
	case combo.Up:
		return KeyUp
	case combo.Down:
		return KeyDown
	case combo.Left:
		return KeyLeft
	case combo.Right:
		return KeyRight
	}
	return KeyUnknown
}
