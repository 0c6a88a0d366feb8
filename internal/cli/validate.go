package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	Long: `Merge defaults, config files, and flags the way "run" would, validate
the result, and print what would run. Exits nonzero on the first
problem found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		renderConfigSummary(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// renderConfigSummary prints the validated configuration's load-bearing
// numbers.
func renderConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "config OK")
	fmt.Fprintf(w, "course:  %s (%d phases)\n", cfg.Course.Name, len(cfg.Course.Phases))
	fmt.Fprintf(w, "line:    kp=%g ki=%g kd=%g\n", cfg.Line.PID.Kp, cfg.Line.PID.Ki, cfg.Line.PID.Kd)
	fmt.Fprintf(w, "heading: kp=%g ki=%g kd=%g tol=%g° settle=%d\n",
		cfg.Heading.PID.Kp, cfg.Heading.PID.Ki, cfg.Heading.PID.Kd,
		cfg.Heading.ToleranceDeg, cfg.Heading.SettleTicks)
	fmt.Fprintf(w, "uplink:  enabled=%v\n", cfg.Telemetry.Uplink.Enabled)

	fmt.Fprintln(w, "schedule:")
	timings := []struct {
		name string
		t    config.TaskTiming
	}{
		{"plant", cfg.Schedule.Plant},
		{"sensors", cfg.Schedule.Sensors},
		{"motor", cfg.Schedule.Motor},
		{"line", cfg.Schedule.Line},
		{"heading", cfg.Schedule.Heading},
		{"bump", cfg.Schedule.Bump},
		{"thinker", cfg.Schedule.Thinker},
		{"probe", cfg.Schedule.Probe},
	}
	for _, entry := range timings {
		fmt.Fprintf(w, "  %-9s %3dms  prio %d\n", entry.name, entry.t.PeriodMS, entry.t.Priority)
	}
}
