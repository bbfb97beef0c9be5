package board

import (
	"errors"
	"fmt"

	"comboboard/internal/audio"
	"comboboard/internal/combo"
	"comboboard/internal/config"
)

// ClipLoader decodes the clip at path.
type ClipLoader func(path string) (*audio.Clip, error)

// TableOptions controls how config entries become actions.
type TableOptions struct {
	SampleDir string

	// VolumeStep is used by volume actions whose amount is zero.
	VolumeStep float64

	// LoadClip defaults to audio.LoadClip.
	LoadClip ClipLoader
}

// TableOptionsFor returns the options implied by cfg.
func TableOptionsFor(cfg *config.Config) TableOptions {
	return TableOptions{
		SampleDir:  cfg.Audio.SampleDir,
		VolumeStep: cfg.Audio.VolumeStep,
	}
}

// NewAction converts one config entry. Play clips are not loaded.
func NewAction(e config.ComboEntry, opts TableOptions) (Action, error) {
	kind, err := ParseKind(e.Action)
	if err != nil {
		return Action{}, err
	}
	a := Action{Kind: kind, Amount: e.Amount, Name: e.Name}
	switch kind {
	case LowerVolume, RaiseVolume:
		if a.Amount == 0 {
			a.Amount = opts.VolumeStep
		}
	case Play:
		if e.File == "" {
			return Action{}, errors.New("play action needs a file")
		}
		a.File = e.ResolveFile(opts.SampleDir)
		a.Name = e.Label()
	}
	return a, nil
}

// BuildTable compiles entries into a combo trie. Entries that fail to
// parse or whose clip cannot be loaded are left out and reported in the
// joined error; the returned trie is usable either way. Later entries
// replace earlier ones bound to the same keys.
func BuildTable(entries []config.ComboEntry, opts TableOptions) (*combo.Trie[Action], error) {
	load := opts.LoadClip
	if load == nil {
		load = audio.LoadClip
	}

	t := combo.NewTrie[Action]()
	clips := make(map[string]*audio.Clip)
	var errs []error

	for i, e := range entries {
		seq, err := e.Sequence()
		if err != nil {
			errs = append(errs, fmt.Errorf("combo[%d] %q: %w", i, e.Keys, err))
			continue
		}
		a, err := NewAction(e, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("combo[%d] %q: %w", i, e.Keys, err))
			continue
		}
		if a.Kind == Play {
			clip, ok := clips[a.File]
			if !ok {
				if clip, err = load(a.File); err != nil {
					errs = append(errs, fmt.Errorf("combo[%d] %q: %w", i, e.Keys, err))
					continue
				}
				clips[a.File] = clip
			}
			a.clip = clip
		}
		t.Insert(a, seq)
	}
	return t, errors.Join(errs...)
}

// Binding is one entry of a compiled table.
type Binding struct {
	Sequence combo.Sequence
	Action   Action
}

// Bindings lists the trie's bindings in walk order.
func Bindings(t *combo.Trie[Action]) []Binding {
	out := make([]Binding, 0, t.Len())
	t.Walk(func(seq combo.Sequence, a Action) bool {
		out = append(out, Binding{Sequence: seq, Action: a})
		return true
	})
	return out
}
