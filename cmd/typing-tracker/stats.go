package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexhamidi/typing-tracker/internal/store"
)

var statsSince string

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-key finger accuracy",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "only count keystrokes newer than this duration, e.g. 24h")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var since time.Time
	if statsSince != "" {
		d, err := time.ParseDuration(statsSince)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid --since %q: must be a positive duration", statsSince)
		}
		since = time.Now().Add(-d)
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Outcomes().Summary(context.Background(), since)
	if err != nil {
		return fmt.Errorf("failed to summarise history: %w", err)
	}
	return printStats(cmd.OutOrStdout(), stats)
}

func printStats(out io.Writer, stats []store.KeyStat) error {
	if len(stats) == 0 {
		_, err := fmt.Fprintln(out, "no keystrokes recorded yet")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "KEY\tTOTAL\tCORRECT\tINCORRECT\tACCURACY\t")
	var total store.KeyStat
	for _, k := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t\n", k.Key, k.Total, k.Correct, k.Incorrect, percent(k))
		total.Total += k.Total
		total.Correct += k.Correct
		total.Incorrect += k.Incorrect
	}
	fmt.Fprintf(w, "ALL\t%d\t%d\t%d\t%s\t\n", total.Total, total.Correct, total.Incorrect, percent(total))
	return w.Flush()
}

func percent(k store.KeyStat) string {
	if k.Correct+k.Incorrect == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*k.Accuracy())
}

// openStore opens the history database named by the config.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}
