package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"comboboard/internal/audio"
	"comboboard/internal/keystroke"
)

func newDevicesCmd(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Report the key tap backends and audio outputs usable here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND\tAVAILABLE\tDETAIL")
			for _, name := range keystroke.Backends {
				tap, err := keystroke.New(name, keystroke.Options{})
				if err != nil {
					return err
				}
				ok, reason := tap.Available()
				fmt.Fprintf(tw, "%s\t%t\t%s\n", name, ok, reason)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AUDIO OUTPUT")
			for _, name := range audio.OutputDevices() {
				fmt.Fprintln(tw, name)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			kbds, err := keystroke.ListKeyboards()
			if errors.Is(err, keystroke.ErrNotAvailable) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("list keyboards: %w", err)
			}

			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DEVICE\tREADABLE\tNAME")
			for _, k := range kbds {
				fmt.Fprintf(tw, "%s\t%t\t%s\n", k.Path, k.Readable, k.Name)
			}
			return tw.Flush()
		},
	}
}
