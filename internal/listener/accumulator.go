package listener

import (
	"time"

	"comboboard/internal/combo"
)

// DefaultIdleWindow is the longest gap between two inputs of one combo.
const DefaultIdleWindow = 3 * time.Second

// accumulator buffers inputs until they are drained. A gap of at least
// window between two inputs discards the earlier ones. It is not
// synchronized; the Hub's mutex guards it.
type accumulator struct {
	buf    combo.Sequence
	last   time.Time
	window time.Duration
}

// record appends in, first clearing the buffer if at least the idle window
// has passed since the previous input.
func (a *accumulator) record(in combo.Input, now time.Time) {
	if !a.last.IsZero() && now.Sub(a.last) >= a.window {
		a.buf = a.buf[:0]
	}
	a.buf = append(a.buf, in)
	a.last = now
}

// stamp marks now as the last input time without recording a symbol.
func (a *accumulator) stamp(now time.Time) {
	a.last = now
}

// drain returns every buffered input and empties the buffer. The last
// input time is left alone.
func (a *accumulator) drain() combo.Sequence {
	out := make(combo.Sequence, len(a.buf))
	copy(out, a.buf)
	a.buf = a.buf[:0]
	return out
}

// pending returns the number of buffered inputs.
func (a *accumulator) pending() int {
	return len(a.buf)
}
