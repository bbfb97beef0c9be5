package combo

// nodeID addresses a node in the trie arena. The root is always slot 0 and
// can never be a child, so 0 doubles as the "no link" marker.
type nodeID int32

const (
	rootID nodeID = 0
	noNode nodeID = 0
)

type node[T any] struct {
	value T
	bound bool
	links [Alphabet]nodeID
}

func (n *node[T]) hasChildren() bool {
	for _, l := range n.links {
		if l != noNode {
			return true
		}
	}
	return false
}

// Trie maps sequences to payloads. Nodes live in a single slice and refer
// to each other by index; nodes detached by Remove go onto a free list and
// are reused by later inserts. All operations are iterative.
//
// Invariant: every node other than the root either holds a payload or has
// at least one child. The root always exists.
//
// The zero value is an empty trie ready for use. A Trie is not safe for
// concurrent use.
type Trie[T any] struct {
	nodes []node[T]
	free  []nodeID
	size  int
}

// NewTrie returns an empty trie.
func NewTrie[T any]() *Trie[T] {
	t := &Trie[T]{}
	t.init()
	return t
}

func (t *Trie[T]) init() {
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, node[T]{})
	}
}

func (t *Trie[T]) alloc() nodeID {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[id] = node[T]{}
		return id
	}
	t.nodes = append(t.nodes, node[T]{})
	return nodeID(len(t.nodes) - 1)
}

func (t *Trie[T]) release(id nodeID) {
	t.nodes[id] = node[T]{}
	t.free = append(t.free, id)
}

// find walks seq and returns the terminal node, or false if the path is
// not present.
func (t *Trie[T]) find(seq Sequence) (nodeID, bool) {
	if len(t.nodes) == 0 {
		return noNode, false
	}
	cur := rootID
	for _, in := range seq {
		if !in.Valid() {
			return noNode, false
		}
		next := t.nodes[cur].links[in]
		if next == noNode {
			return noNode, false
		}
		cur = next
	}
	return cur, true
}

// Insert binds v to seq, creating intermediate nodes as needed. An existing
// payload at seq is overwritten. The empty sequence binds the root.
//
// Insert panics if seq contains a value outside the alphabet.
func (t *Trie[T]) Insert(v T, seq Sequence) {
	t.init()
	cur := rootID
	for _, in := range seq {
		if !in.Valid() {
			panic("combo: Insert with " + in.String())
		}
		next := t.nodes[cur].links[in]
		if next == noNode {
			// alloc may grow the slice; index again afterwards.
			next = t.alloc()
			t.nodes[cur].links[in] = next
		}
		cur = next
	}
	n := &t.nodes[cur]
	if !n.bound {
		t.size++
	}
	n.value = v
	n.bound = true
}

// Remove clears the payload bound to seq and detaches every node on the
// path that is left with neither a payload nor children, stopping at the
// first node that still carries something and never detaching the root.
// It reports whether a payload was removed; unknown paths are a no-op.
func (t *Trie[T]) Remove(seq Sequence) bool {
	if len(t.nodes) == 0 {
		return false
	}

	path := make([]nodeID, 1, len(seq)+1)
	path[0] = rootID
	cur := rootID
	for _, in := range seq {
		if !in.Valid() {
			return false
		}
		next := t.nodes[cur].links[in]
		if next == noNode {
			return false
		}
		path = append(path, next)
		cur = next
	}

	leaf := &t.nodes[cur]
	if !leaf.bound {
		return false
	}
	var zero T
	leaf.value = zero
	leaf.bound = false
	t.size--

	for i := len(path) - 1; i > 0; i-- {
		id := path[i]
		if n := &t.nodes[id]; n.bound || n.hasChildren() {
			break
		}
		t.nodes[path[i-1]].links[seq[i-1]] = noNode
		t.release(id)
	}
	return true
}

// Get returns the payload bound to exactly seq. A sequence that is only a
// prefix of longer combos is not a match.
func (t *Trie[T]) Get(seq Sequence) (T, bool) {
	id, ok := t.find(seq)
	if !ok || !t.nodes[id].bound {
		var zero T
		return zero, false
	}
	return t.nodes[id].value, true
}

// Update calls fn with a pointer to the payload bound to seq and reports
// whether one was found. The pointer is only valid during the call.
func (t *Trie[T]) Update(seq Sequence, fn func(v *T)) bool {
	id, ok := t.find(seq)
	if !ok || !t.nodes[id].bound {
		return false
	}
	fn(&t.nodes[id].value)
	return true
}

// Contains reports whether a payload is bound to exactly seq.
func (t *Trie[T]) Contains(seq Sequence) bool {
	_, ok := t.Get(seq)
	return ok
}

// HasPrefix reports whether any bound sequence starts with prefix.
func (t *Trie[T]) HasPrefix(prefix Sequence) bool {
	if len(prefix) == 0 {
		return t.size > 0
	}
	// Non-root nodes are never empty, so reaching one is enough.
	_, ok := t.find(prefix)
	return ok
}

// Len returns the number of bound sequences.
func (t *Trie[T]) Len() int {
	return t.size
}

// Nodes returns the number of live nodes, root included.
func (t *Trie[T]) Nodes() int {
	if len(t.nodes) == 0 {
		return 1
	}
	return len(t.nodes) - len(t.free)
}

// Clear removes every binding and releases the arena.
func (t *Trie[T]) Clear() {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.size = 0
	t.init()
}

// Walk visits every binding in depth-first order with children taken by
// ordinal, so shorter sequences come before their extensions. Returning
// false from fn stops the walk.
func (t *Trie[T]) Walk(fn func(seq Sequence, v T) bool) {
	if len(t.nodes) == 0 {
		return
	}

	type frame struct {
		id  nodeID
		seq Sequence
	}
	stack := []frame{{id: rootID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[f.id]
		if n.bound && !fn(f.seq.Clone(), n.value) {
			return
		}
		for i := Alphabet - 1; i >= 0; i-- {
			if child := n.links[i]; child != noNode {
				next := make(Sequence, len(f.seq), len(f.seq)+1)
				copy(next, f.seq)
				stack = append(stack, frame{id: child, seq: append(next, Input(i))})
			}
		}
	}
}
