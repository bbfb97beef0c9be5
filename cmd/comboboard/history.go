package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"comboboard/internal/config"
	"comboboard/internal/store"
)

func openStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Storage.Enabled {
		return nil, errors.New("history is disabled (storage.enabled = false)")
	}
	return store.OpenWithOptions(cfg.StoragePath(), store.Options{
		BusyTimeout: time.Duration(cfg.Storage.BusyTimeoutMs) * time.Millisecond,
	})
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		limit     int
		asJSON    bool
		showStats  bool
		showSchema bool
		runID      string
		pruneDays  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently typed combos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			out := cmd.OutOrStdout()

			if pruneDays > 0 {
				n, err := st.Prune(time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pruned %d triggers\n", n)
				return nil
			}

			if showSchema {
				status, err := st.Schema()
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(status)
				}
				fmt.Fprintf(out, "schema version %d of %d\n", status.CurrentVersion, status.LatestVersion)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED\tDESCRIPTION")
				for _, m := range status.Applied {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.AppliedAt.Format(time.DateTime), m.Description)
				}
				for _, m := range status.Pending {
					fmt.Fprintf(tw, "%d\tpending\t%s\n", m.Version, m.Description)
				}
				return tw.Flush()
			}

			if showStats {
				s, err := st.Stats()
				if err != nil {
					return err
				}
				top, err := st.TopCombos(limit)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(struct {
						Stats store.Stats        `json:"stats"`
						Top   []store.ComboCount `json:"top"`
					}{s, top})
				}
				fmt.Fprintf(out, "runs: %d  triggers: %d  matched: %d  unmatched: %d\n",
					s.Runs, s.Total, s.Matched, s.Unmatched)
				if !s.Last.IsZero() {
					fmt.Fprintf(out, "last: %s\n", s.Last.Format(time.DateTime))
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEYS\tLABEL\tCOUNT")
				for _, c := range top {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Sequence, c.Label, c.Count)
				}
				return tw.Flush()
			}

			var triggers []store.Trigger
			if runID != "" {
				triggers, err = st.TriggersForRun(runID)
			} else {
				triggers, err = st.RecentTriggers(limit)
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(triggers)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKEYS\tACTION\tLABEL")
			for _, t := range triggers {
				action := t.Action
				if !t.Matched {
					action = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Time.Format(time.DateTime), t.Sequence, action, t.Label)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&showStats, "stats", false, "show totals and the most used combos")
	cmd.Flags().BoolVar(&showSchema, "schema", false, "show the history database's migrations")
	cmd.Flags().StringVar(&runID, "run", "", "show every trigger of one run, oldest first")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "delete triggers older than this many days")
	return cmd
}
