package keystroke

import "comboboard/internal/combo"

// Kind classifies a translated key.
type Kind uint8

const (
	// KindIgnored keys never reach the accumulator.
	KindIgnored Kind = iota
	// KindSymbol keys append a directional input.
	KindSymbol
	// KindTerminator ends the sequence being listened for.
	KindTerminator
)

func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "symbol"
	case KindTerminator:
		return "terminator"
	}
	return "ignored"
}

// Translate maps a physical key onto the directional alphabet. The keypad
// digits mirror the arrows so combos work with NumLock in either state.
func Translate(k Key) (combo.Input, Kind) {
	switch k {
	case KeyUp, KeyKP8:
		return combo.Up, KindSymbol
	case KeyDown, KeyKP2:
		return combo.Down, KindSymbol
	case KeyLeft, KeyKP4:
		return combo.Left, KindSymbol
	case KeyRight, KeyKP6:
		return combo.Right, KindSymbol
	case KeySlash, KeyKPDivide:
		return combo.Mark, KindSymbol
	case KeyReturn, KeyKPEnter:
		return 0, KindTerminator
	}
	return 0, KindIgnored
}
