// Package board turns recognized combos into soundboard actions.
package board

import (
	"fmt"
	"strconv"

	"comboboard/internal/audio"
)

// Kind is what an action does.
type Kind int

const (
	Quit Kind = iota
	ClearAudio
	ToggleMute
	LowerVolume
	RaiseVolume
	Play
)

var kindNames = [...]string{
	Quit:        "quit",
	ClearAudio:  "clear_audio",
	ToggleMute:  "toggle_mute",
	LowerVolume: "lower_volume",
	RaiseVolume: "raise_volume",
	Play:        "play",
}

// String returns the config name of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind maps a config action name to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Action is the payload bound to a combo.
type Action struct {
	Kind Kind

	// Amount is the volume change for LowerVolume and RaiseVolume.
	Amount float64

	Name string

	// File is the resolved clip path for Play.
	File string

	clip *audio.Clip
}

// Label returns Name, or the kind when Name is empty.
func (a Action) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Kind.String()
}

// Clip returns the decoded clip of a Play action.
func (a Action) Clip() *audio.Clip {
	return a.clip
}

// Describe renders the action for listings.
func (a Action) Describe() string {
	switch a.Kind {
	case LowerVolume, RaiseVolume:
		return fmt.Sprintf("%s %g", a.Kind, a.Amount)
	case Play:
		return fmt.Sprintf("play %s", a.Label())
	case ToggleMute, ClearAudio, Quit:
		return a.Kind.String()
	}
	return a.Label()
}
