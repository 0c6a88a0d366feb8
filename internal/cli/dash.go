package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/rig"
	"github.com/LucaSlade/ME405-Romulus/internal/sim"
	"github.com/LucaSlade/ME405-Romulus/internal/telemetry"
	"github.com/LucaSlade/ME405-Romulus/internal/tui"
)

var (
	dashDBPath string
	dashNoDB   bool
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live dashboard over a simulated robot",
	Long: `Run the control loop in real time against the simulator with the bench
dashboard attached: course progress, subsystem status, scheduler health,
and the event log.

Space presses the robot's start/stop button; t opens the tuning form.
The session is recorded like a headless run unless --no-db is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		robot, err := sim.NewRobot(cfg.Sim)
		if err != nil {
			return err
		}
		plant, err := sim.NewPlantTask(robot, cfg.Schedule.Plant.Period())
		if err != nil {
			return err
		}

		bus := events.NewEventBus()
		opts := rig.Options{
			Bus:   bus,
			Plant: plant,
		}

		if !dashNoDB {
			path := dashDBPath
			if path == "" {
				path = defaultDBPath()
			}
			store, err := telemetry.NewStore(cmd.Context(), path)
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

		// The model subscribes at construction, before the loop starts,
		// so the dashboard sees the run marker.
		model := tui.New(bus, cfg, globalConfigPath(), projectConfigPath(), robot.PressButton)

		loopCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		loopErr := make(chan error, 1)
		go func() {
			_, err := r.Run(loopCtx)
			loopErr <- err
		}()

		// Start Bubble Tea program in a goroutine so we can handle shutdown
		p := tea.NewProgram(model, tea.WithAltScreen())

		tuiErr := make(chan error, 1)
		go func() {
			_, err := p.Run()
			tuiErr <- err
		}()

		select {
		case err := <-tuiErr:
			// Operator quit: stop the loop and let the recorder flush.
			cancel()
			if lerr := <-loopErr; lerr != nil {
				log.Printf("WARNING: control loop: %v", lerr)
			}
			return err

		case <-cmd.Context().Done():
			// Signal received (Ctrl+C or SIGTERM)
			log.Println("Shutdown signal received, cleaning up...")

			p.Quit()
			cancel()

			// Wait for TUI to exit with timeout
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()

			select {
			case err := <-tuiErr:
				if err != nil {
					log.Printf("TUI exit error: %v", err)
				}
			case <-shutdownCtx.Done():
				log.Println("Shutdown timeout exceeded, forcing exit")
			}
			if lerr := <-loopErr; lerr != nil {
				log.Printf("WARNING: control loop: %v", lerr)
			}
			return nil
		}
	},
}

func init() {
	dashCmd.Flags().StringVar(&dashDBPath, "db", "", "Telemetry database path (default: user data dir)")
	dashCmd.Flags().BoolVar(&dashNoDB, "no-db", false, "Skip recording the session")
	rootCmd.AddCommand(dashCmd)
}
