// Package combo defines the directional input alphabet, key sequences, and
// the prefix tree that resolves sequences to bound payloads.
package combo

import (
	"errors"
	"fmt"
	"strings"
)

// Input is one symbol of the directional alphabet. The numeric value is
// stable and is used directly as a child slot index in the trie.
type Input uint8

const (
	// Mark is the slash key. Control combos conventionally start with it.
	Mark Input = iota
	Up
	Down
	Left
	Right
)

// Alphabet is the number of distinct inputs.
const Alphabet = 5

// Inputs lists the alphabet in ordinal order.
var Inputs = [Alphabet]Input{Mark, Up, Down, Left, Right}

var inputNames = [Alphabet]string{"mark", "up", "down", "left", "right"}

var inputGlyphs = [Alphabet]string{"/", "^", "v", "<", ">"}

// ErrInvalidInput is returned when a token does not name an input.
var ErrInvalidInput = errors.New("invalid directional input")

// Valid reports whether i is a member of the alphabet.
func (i Input) Valid() bool {
	return i < Alphabet
}

// String returns the lower-case name of the input.
func (i Input) String() string {
	if !i.Valid() {
		return fmt.Sprintf("input(%d)", uint8(i))
	}
	return inputNames[i]
}

// Glyph returns the single-character form used in compact sequences.
func (i Input) Glyph() string {
	if !i.Valid() {
		return "?"
	}
	return inputGlyphs[i]
}

// ParseInput parses a name ("up"), a glyph ("^") or a one-letter
// abbreviation ("u"). Matching is case-insensitive.
func ParseInput(tok string) (Input, error) {
	switch strings.ToLower(strings.TrimSpace(tok)) {
	case "mark", "m", "/", "slash":
		return Mark, nil
	case "up", "u", "^":
		return Up, nil
	case "down", "d", "v":
		return Down, nil
	case "left", "l", "<":
		return Left, nil
	case "right", "r", ">":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidInput, tok)
}
