package combo

import (
	"fmt"
	"strings"
)

// Sequence is an ordered series of inputs in key-press order.
type Sequence []Input

// Seq builds a sequence from its arguments.
func Seq(inputs ...Input) Sequence {
	return Sequence(inputs)
}

// ParseSequence parses a textual sequence. Tokens may be separated by
// spaces, commas or plus signs ("mark up", "/,^", "m+u"). A string made
// only of glyphs with no separators ("/^>") is also accepted. An empty or
// blank string yields the empty sequence.
func ParseSequence(s string) (Sequence, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '+' || r == '\t'
	})

	seq := make(Sequence, 0, len(fields))
	for _, f := range fields {
		in, err := ParseInput(f)
		if err == nil {
			seq = append(seq, in)
			continue
		}
		// Compact glyph run such as "/^^".
		if !isGlyphRun(f) {
			return nil, err
		}
		for _, r := range f {
			in, err := ParseInput(string(r))
			if err != nil {
				return nil, err
			}
			seq = append(seq, in)
		}
	}
	return seq, nil
}

func isGlyphRun(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("/^v<>", r) {
			return false
		}
	}
	return true
}

// MustParse is ParseSequence that panics on error. It is meant for
// package-level tables.
func MustParse(s string) Sequence {
	seq, err := ParseSequence(s)
	if err != nil {
		panic(fmt.Sprintf("combo: MustParse(%q): %v", s, err))
	}
	return seq
}

// Len returns the number of inputs.
func (s Sequence) Len() int {
	return len(s)
}

// IsEmpty reports whether the sequence has no inputs.
func (s Sequence) IsEmpty() bool {
	return len(s) == 0
}

// Equal reports whether two sequences hold the same inputs in order.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether s starts with prefix.
func (s Sequence) HasPrefix(prefix Sequence) bool {
	if len(prefix) > len(s) {
		return false
	}
	return s[:len(prefix)].Equal(prefix)
}

// Clone returns a copy that does not share storage with s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// String returns the space-separated names, e.g. "mark up up".
func (s Sequence) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, in := range s {
		parts[i] = in.String()
	}
	return strings.Join(parts, " ")
}

// Glyphs returns the compact form, e.g. "/^^".
func (s Sequence) Glyphs() string {
	var sb strings.Builder
	for _, in := range s {
		sb.WriteString(in.Glyph())
	}
	return sb.String()
}
