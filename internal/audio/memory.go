package audio

import "sync"

// MemorySink is a Sink that records what would have been played. It backs
// the --no-audio mode and tests.
type MemorySink struct {
	mu     sync.Mutex
	gain   float64
	max    float64
	paused bool
	queue  []string
	played []string
	clears int
	closed bool
}

// NewMemorySink returns a sink at the given volume, clamped to [0, hi].
func NewMemorySink(volume, hi float64) *MemorySink {
	if hi <= 0 {
		hi = DefaultConfig().MaxVolume
	}
	return &MemorySink{gain: ClampVolume(volume, hi), max: hi}
}

func (m *MemorySink) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain
}

func (m *MemorySink) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gain = ClampVolume(v, m.max)
}

func (m *MemorySink) Play(c *Clip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, c.Name)
	m.played = append(m.played, c.Name)
	m.paused = false
	return nil
}

func (m *MemorySink) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *MemorySink) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *MemorySink) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *MemorySink) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.paused = true
	m.clears++
}

func (m *MemorySink) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) == 0
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	return nil
}

// Finish drops the queue as if every clip had played out.
func (m *MemorySink) Finish() {
	m.mu.Lock()
	m.queue = nil
	m.mu.Unlock()
}

// Queue returns the names of clips still queued.
func (m *MemorySink) Queue() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queue...)
}

// Played returns every clip name passed to Play, in order.
func (m *MemorySink) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// Clears returns how many times Clear was called.
func (m *MemorySink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*BeepSink)(nil)
)
