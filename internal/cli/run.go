package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
	"github.com/LucaSlade/ME405-Romulus/internal/rig"
	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
	"github.com/LucaSlade/ME405-Romulus/internal/sim"
	"github.com/LucaSlade/ME405-Romulus/internal/telemetry"
)

var (
	runRealtime bool
	runMaxTicks uint64
	runDBPath   string
	runNoDB     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay the configured course against the simulator",
	Long: `Run the whole mission headless against the kinematic simulator.

By default the loop runs on a virtual clock, so a minute-long course
replays in well under a second and the scheduler never misses a
deadline. --realtime runs on the wall clock instead, which is what the
dashboard does.

The run is recorded to the telemetry database unless --no-db is given;
use "romulus report" afterwards to inspect it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runMission(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "Run on the wall clock instead of the virtual clock")
	runCmd.Flags().Uint64Var(&runMaxTicks, "max-ticks", 500000, "Fault the mission after this many scheduler dispatches (0 = no budget)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Telemetry database path (default: user data dir)")
	runCmd.Flags().BoolVar(&runNoDB, "no-db", false, "Skip recording the run")
	rootCmd.AddCommand(runCmd)
}

// runMission assembles a simulated rig per cfg and drives it to the end
// of the mission.
func runMission(ctx context.Context, w io.Writer, cfg *config.Config) error {
	robot, err := sim.NewRobot(cfg.Sim)
	if err != nil {
		return err
	}
	plant, err := sim.NewPlantTask(robot, cfg.Schedule.Plant.Period())
	if err != nil {
		return err
	}

	opts := rig.Options{
		Plant:        plant,
		StopWhenDone: true,
		MaxTicks:     runMaxTicks,
	}
	if !runRealtime {
		opts.Clock = scheduler.NewVirtualClock(time.Now())
	}

	if !runNoDB {
		path := runDBPath
		if path == "" {
			path = defaultDBPath()
		}
		store, err := telemetry.NewStore(ctx, path)
		if err != nil {
			return fmt.Errorf("opening telemetry store: %w", err)
		}
		defer store.Close()
		opts.Store = store
	}

	if cfg.Telemetry.Uplink.Enabled {
		opts.Uplink = telemetry.NewUplink(sim.NewLink(), uplinkOptions(cfg.Telemetry.Uplink))
	}

	r, err := rig.New(cfg, robot.Hardware(), opts)
	if err != nil {
		return err
	}

	// Headless runs have no operator: press start before the loop is up.
	robot.PressButton()

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}
	renderSummary(w, summary)
	return nil
}

// uplinkOptions maps the config block onto the uplink's option struct.
func uplinkOptions(cfg config.UplinkConfig) telemetry.UplinkOptions {
	return telemetry.UplinkOptions{
		OutboxSize:      cfg.OutboxSize,
		BreakerFailures: cfg.BreakerFailures,
		RetryInitial:    time.Duration(cfg.RetryInitialMS) * time.Millisecond,
		RetryMax:        time.Duration(cfg.RetryMaxMS) * time.Millisecond,
		MaxRetries:      cfg.MaxRetries,
	}
}

// renderSummary prints the run's outcome the way the bench crew reads
// it: result first, then the scheduler table, then the share inventory.
func renderSummary(w io.Writer, s *rig.Summary) {
	fmt.Fprintf(w, "run %s: %s\n", s.RunID, s.Result)
	fmt.Fprintf(w, "mission: %s", s.Mission.State)
	if s.Mission.Fault != "" {
		fmt.Fprintf(w, " (%s)", s.Mission.Fault)
	}
	fmt.Fprintf(w, "  retries=%d bumps=%d\n", s.Mission.Retries, s.Mission.Bumps)
	fmt.Fprintf(w, "ticks: %d  elapsed: %s\n\n", s.Ticks, s.Elapsed.Round(time.Millisecond))

	fmt.Fprintf(w, "%-9s %4s %7s %8s %7s %10s\n", "TASK", "PRIO", "PERIOD", "RUNS", "MISSED", "MAX LATE")
	for _, st := range s.Stats {
		fmt.Fprintf(w, "%-9s %4d %7s %8d %7d %10s\n",
			st.Name, st.Priority, st.Period, st.Runs, st.Missed, st.MaxLate)
	}

	fmt.Fprintf(w, "\n%-22s %-6s %7s %6s  %s\n", "SHARE", "KIND", "WRITES", "DROPS", "VALUE")
	for _, d := range s.Shares {
		fmt.Fprintf(w, "%-22s %-6s %7d %6d  %s\n", d.Name, d.Kind, d.Writes, d.Drops, d.Value)
	}
}
