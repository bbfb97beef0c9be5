package listener

import (
	"context"

	"comboboard/internal/combo"
)

// Watcher binds combos to payloads and listens for them on a Hub.
//
// Insert, Remove, Get and Update go straight to the trie and are not
// synchronized with each other; callers keep a single writer at a time.
// ListenForCombo never touches the trie, so it may run alongside them.
type Watcher[T any] struct {
	hub  *Hub
	trie *combo.Trie[T]
}

// NewWatcher returns a watcher with an empty combo table.
func NewWatcher[T any](hub *Hub) *Watcher[T] {
	return &Watcher[T]{hub: hub, trie: combo.NewTrie[T]()}
}

// Insert binds v to seq, replacing any previous binding.
func (w *Watcher[T]) Insert(v T, seq combo.Sequence) {
	w.trie.Insert(v, seq)
}

// Remove unbinds seq and reports whether it was bound.
func (w *Watcher[T]) Remove(seq combo.Sequence) bool {
	return w.trie.Remove(seq)
}

// Get returns the payload bound to exactly seq.
func (w *Watcher[T]) Get(seq combo.Sequence) (T, bool) {
	return w.trie.Get(seq)
}

// Resolve is Get.
func (w *Watcher[T]) Resolve(seq combo.Sequence) (T, bool) {
	return w.trie.Get(seq)
}

// Update edits the payload bound to seq in place.
func (w *Watcher[T]) Update(seq combo.Sequence, fn func(v *T)) bool {
	return w.trie.Update(seq, fn)
}

// Len returns the number of bound combos.
func (w *Watcher[T]) Len() int {
	return w.trie.Len()
}

// Walk visits every binding; see combo.Trie.Walk.
func (w *Watcher[T]) Walk(fn func(seq combo.Sequence, v T) bool) {
	w.trie.Walk(fn)
}

// Replace swaps in a new combo table, e.g. after a config reload.
func (w *Watcher[T]) Replace(t *combo.Trie[T]) {
	w.trie = t
}

// ListenForCombo blocks until the terminator is pressed and returns the
// inputs typed since the last listen. An empty sequence means the
// terminator was pressed alone. See Hub.Listen for cancellation.
func (w *Watcher[T]) ListenForCombo(ctx context.Context) (combo.Sequence, error) {
	return w.hub.Listen(ctx)
}

// Hub returns the hub the watcher listens on.
func (w *Watcher[T]) Hub() *Hub {
	return w.hub
}
