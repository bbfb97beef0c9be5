package listener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comboboard/internal/combo"
	"comboboard/internal/keystroke"
)

type action string

func listenFor(t *testing.T, w *Watcher[action], tap *keystroke.SimulatedTap, press func()) combo.Sequence {
	t.Helper()
	res := make(chan listenResult, 1)
	go func() {
		seq, err := w.ListenForCombo(context.Background())
		res <- listenResult{seq, err}
	}()
	waitArmed(t, w.Hub())
	press()
	r := waitResult(t, res)
	require.NoError(t, r.err)
	return r.seq
}

func TestWatcherScenarioA(t *testing.T) {
	h, tap, _ := newTestHub(t)
	w := NewWatcher[action](h)
	w.Insert("A", combo.Seq(combo.Mark))
	w.Insert("B", combo.Seq(combo.Mark, combo.Mark))

	seq := listenFor(t, w, tap, func() {
		tap.Press(keystroke.KeySlash, keystroke.KeyReturn)
	})
	got, ok := w.Resolve(seq)
	require.True(t, ok)
	assert.Equal(t, action("A"), got)

	seq = listenFor(t, w, tap, func() {
		tap.Press(keystroke.KeyKPDivide, keystroke.KeySlash, keystroke.KeyKPEnter)
	})
	got, ok = w.Resolve(seq)
	require.True(t, ok)
	assert.Equal(t, action("B"), got)
}

func TestWatcherScenarioB(t *testing.T) {
	h, tap, clock := newTestHub(t)
	w := NewWatcher[action](h)
	w.Insert("C", combo.Seq(combo.Left, combo.Up))

	seq := listenFor(t, w, tap, func() {
		tap.Press(keystroke.KeyLeft)
		require.Eventually(t, func() bool { return h.Stats().Symbols == 1 }, time.Second, time.Millisecond)
		clock.Advance(4 * time.Second)
		tap.Press(keystroke.KeyUp, keystroke.KeyReturn)
	})

	assert.Equal(t, combo.Seq(combo.Up), seq)
	_, ok := w.Resolve(seq)
	assert.False(t, ok, "no action for a sequence split by the idle window")
}

func TestWatcherUnmatchedIsNotAnError(t *testing.T) {
	h, tap, _ := newTestHub(t)
	w := NewWatcher[action](h)
	w.Insert("C", combo.Seq(combo.Left, combo.Up))

	seq := listenFor(t, w, tap, func() {
		tap.Press(keystroke.KeyLeft, keystroke.KeyReturn)
	})
	assert.Equal(t, combo.Seq(combo.Left), seq)
	_, ok := w.Get(seq)
	assert.False(t, ok, "prefix is not a match")

	seq = listenFor(t, w, tap, func() { tap.Press(keystroke.KeyReturn) })
	assert.Empty(t, seq)
	_, ok = w.Get(seq)
	assert.False(t, ok)
}

func TestWatcherDelegatesToTrie(t *testing.T) {
	h, _, _ := newTestHub(t)
	w := NewWatcher[float64](h)

	w.Insert(0.25, combo.Seq(combo.Mark, combo.Up))
	w.Insert(0.5, combo.Seq(combo.Mark, combo.Up, combo.Up))
	assert.Equal(t, 2, w.Len())

	require.True(t, w.Update(combo.Seq(combo.Mark, combo.Up), func(v *float64) { *v = 0.1 }))
	v, ok := w.Get(combo.Seq(combo.Mark, combo.Up))
	require.True(t, ok)
	assert.Equal(t, 0.1, v)

	assert.True(t, w.Remove(combo.Seq(combo.Mark, combo.Up)))
	assert.False(t, w.Remove(combo.Seq(combo.Mark, combo.Up)))
	v, ok = w.Get(combo.Seq(combo.Mark, combo.Up, combo.Up))
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	var seen []string
	w.Walk(func(seq combo.Sequence, _ float64) bool {
		seen = append(seen, seq.Glyphs())
		return true
	})
	assert.Equal(t, []string{"/^^"}, seen)

	next := combo.NewTrie[float64]()
	next.Insert(1, combo.Seq(combo.Down))
	w.Replace(next)
	assert.Equal(t, 1, w.Len())
	assert.False(t, w.Remove(combo.Seq(combo.Mark, combo.Up, combo.Up)))
}
