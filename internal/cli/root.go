// Package cli wires the romulus commands: headless simulated runs, the
// live dashboard, course inspection, run reports, and config checks.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
	"github.com/LucaSlade/ME405-Romulus/internal/mission"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var (
	configPath string
	courseName string
)

var rootCmd = &cobra.Command{
	Use:   "romulus",
	Short: "Romulus line-following robot: simulator, dashboard, and telemetry",
	Long: `Romulus is the onboard control software for a two-wheel line-following
robot, bundled with a kinematic simulator so the whole mission stack runs
on a desk.

The control loop is a cooperative scheduler dispatching the sensor,
motor, line, heading, bump, and supervisor tasks at fixed periods. The
same loop drives real hardware and the simulator; only the hardware
bindings differ.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("romulus %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file merged over the defaults (instead of the conventional paths)")
	rootCmd.PersistentFlags().StringVar(&courseName, "course", "", "Run a preset course instead of the configured one")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under a caller-owned context, so
// a signal can abort a run in flight.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig merges defaults, config files, and the persistent flags
// into the effective, validated configuration.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load("", configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if courseName != "" {
		course, ok := mission.PresetByName(courseName)
		if !ok {
			return nil, fmt.Errorf("unknown course %q (have: %s)", courseName, strings.Join(presetNames(), ", "))
		}
		cfg.Course = course
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetNames lists the built-in course names.
func presetNames() []string {
	presets := mission.Presets()
	names := make([]string, len(presets))
	for i, c := range presets {
		names[i] = c.Name
	}
	return names
}

// globalConfigPath is where the dashboard's tuning form saves a global
// config. Must agree with config.LoadDefault.
func globalConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "romulus", "config.yaml")
}

// projectConfigPath is the per-directory config the tuning form saves
// to by default. Must agree with config.LoadDefault.
func projectConfigPath() string {
	return "romulus.yaml"
}

// defaultDBPath is where run recordings go when no --db is given.
func defaultDBPath() string {
	return filepath.Join(xdg.DataHome, "romulus", "runs.db")
}
