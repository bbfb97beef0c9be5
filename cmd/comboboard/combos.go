package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"comboboard/internal/audio"
	"comboboard/internal/board"
	"comboboard/internal/combo"
	"comboboard/internal/config"
)

// errUnbound is returned by check for a sequence with no action.
var errUnbound = errors.New("no combo bound")

// statClip checks that a clip file exists without decoding it.
func statClip(path string) (*audio.Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &audio.Clip{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}, nil
}

// table builds the combo table from cfg for listing.
func table(cfg *config.Config, w io.Writer) *combo.Trie[board.Action] {
	opts := board.TableOptionsFor(cfg)
	opts.LoadClip = statClip
	t, err := board.BuildTable(cfg.EffectiveCombos(), opts)
	if err != nil {
		fmt.Fprintf(w, "warning: %v\n", err)
	}
	return t
}

type comboJSON struct {
	Keys   string  `json:"keys"`
	Action string  `json:"action"`
	Amount float64 `json:"amount,omitempty"`
	Label  string  `json:"label"`
	File   string  `json:"file,omitempty"`
}

func newCombosCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "combos",
		Short: "List the bound combos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			bindings := board.Bindings(table(cfg, cmd.ErrOrStderr()))
			out := cmd.OutOrStdout()

			if asJSON {
				list := make([]comboJSON, 0, len(bindings))
				for _, b := range bindings {
					list = append(list, comboJSON{
						Keys:   b.Sequence.String(),
						Action: b.Action.Kind.String(),
						Amount: b.Action.Amount,
						Label:  b.Action.Label(),
						File:   b.Action.File,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEYS\tACTION\tLABEL")
			for _, b := range bindings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Sequence.Glyphs(), b.Action.Describe(), b.Action.Label())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <sequence>",
		Short: "Show what a key sequence would do",
		Long: `Resolve a sequence against the configured combos. Inputs may be
names (mark up down left right), glyphs (/ ^ v < >) or letters
(m u d l r), e.g. "comboboard check '< >'".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := combo.ParseSequence(strings.Join(args, " "))
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			t := table(cfg, cmd.ErrOrStderr())
			out := cmd.OutOrStdout()

			if a, ok := t.Get(seq); ok {
				fmt.Fprintf(out, "%s -> %s\n", seq.Glyphs(), a.Describe())
				return nil
			}
			if t.HasPrefix(seq) {
				fmt.Fprintf(out, "%s is the start of a longer combo\n", seq.Glyphs())
			}
			return fmt.Errorf("%s: %w", seq.Glyphs(), errUnbound)
		},
	}
}
