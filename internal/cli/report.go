package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/LucaSlade/ME405-Romulus/internal/telemetry"
)

var (
	reportDBPath string
	reportList   bool
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Inspect a recorded run",
	Long: `Print the post-run digest of a recorded run: the phase timeline with
dwell times and exit causes, then the scheduler statistics.

With no run id the latest run is reported. --list shows recent runs
instead, newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := reportDBPath
		if path == "" {
			path = defaultDBPath()
		}
		store, err := telemetry.NewStore(ctx, path)
		if err != nil {
			return fmt.Errorf("opening telemetry store: %w", err)
		}
		defer store.Close()

		if reportList {
			runs, err := store.ListRuns(ctx, reportLimit)
			if err != nil {
				return err
			}
			list := make([]telemetry.Run, len(runs))
			for i, r := range runs {
				list[i] = *r
			}
			renderRunList(cmd.OutOrStdout(), list)
			return nil
		}

		var id string
		if len(args) == 1 {
			id = args[0]
		}
		id, err = telemetry.ResolveRunID(ctx, store, id)
		if err != nil {
			return err
		}
		report, err := telemetry.BuildReport(ctx, store, id)
		if err != nil {
			return err
		}
		renderReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDBPath, "db", "", "Telemetry database path (default: user data dir)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "List recent runs instead of reporting one")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 10, "Runs to list with --list")
	rootCmd.AddCommand(reportCmd)
}

// renderReport prints one run's digest.
func renderReport(w io.Writer, r *telemetry.Report) {
	fmt.Fprintf(w, "run %s (%s): %s\n", r.Run.ID, r.Run.Course, r.Run.Result)
	fmt.Fprintf(w, "started: %s", r.Run.StartedAt.Format("2006-01-02 15:04:05"))
	if !r.Run.EndedAt.IsZero() {
		fmt.Fprintf(w, "  duration: %s", r.Run.EndedAt.Sub(r.Run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "\nticks: %d  samples: %d  missed deadlines: %d\n\n", r.Run.Ticks, r.Samples, r.Missed())

	fmt.Fprintf(w, "%-26s %9s %10s %7s  %s\n", "PHASE", "ENTERED", "DURATION", "TICKS", "EXIT")
	for _, p := range r.Phases {
		entered := p.EnteredAt.Sub(r.Run.StartedAt).Round(10 * time.Millisecond)
		fmt.Fprintf(w, "%-26s %9s %10s %7d  %s\n",
			p.Phase, "+"+entered.String(), p.Duration.Round(10*time.Millisecond), p.Ticks, p.ExitCause)
	}

	if len(r.Stats) > 0 {
		fmt.Fprintf(w, "\n%-9s %4s %7s %8s %7s %10s\n", "TASK", "PRIO", "PERIOD", "RUNS", "MISSED", "MAX LATE")
		for _, st := range r.Stats {
			fmt.Fprintf(w, "%-9s %4d %7s %8d %7d %10s\n",
				st.Name, st.Priority, st.Period, st.Runs, st.Missed, st.MaxLate)
		}
	}
}

// renderRunList prints the recent-runs table.
func renderRunList(w io.Writer, runs []telemetry.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}
	fmt.Fprintf(w, "%-36s %-20s %-19s %-9s %s\n", "RUN", "COURSE", "STARTED", "RESULT", "TICKS")
	for _, run := range runs {
		fmt.Fprintf(w, "%-36s %-20s %-19s %-9s %d\n",
			run.ID, run.Course, run.StartedAt.Format("2006-01-02 15:04:05"), run.Result, run.Ticks)
	}
}
