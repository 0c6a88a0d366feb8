package config

import (
	"fmt"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/mission"
	"github.com/LucaSlade/ME405-Romulus/internal/sim"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// TaskTiming fixes one task's slot in the cooperative schedule. Periods
// are whole milliseconds, matching how the schedule is tuned and logged;
// a larger priority wins when deadlines collide.
type TaskTiming struct {
	PeriodMS int `yaml:"period_ms"`
	Priority int `yaml:"priority"`
}

// Period returns the timing's period as a duration.
func (t TaskTiming) Period() time.Duration {
	return time.Duration(t.PeriodMS) * time.Millisecond
}

// ScheduleConfig lists the timing of every task the rig registers.
// Plant is used only when running against the simulator.
type ScheduleConfig struct {
	Plant   TaskTiming `yaml:"plant"`
	Sensors TaskTiming `yaml:"sensors"`
	Motor   TaskTiming `yaml:"motor"`
	Line    TaskTiming `yaml:"line"`
	Heading TaskTiming `yaml:"heading"`
	Bump    TaskTiming `yaml:"bump"`
	Thinker TaskTiming `yaml:"thinker"`
	Probe   TaskTiming `yaml:"probe"`
}

// UplinkConfig tunes the telemetry uplink. The outbox buffers frames
// between send attempts and drops the oldest on overflow; the breaker
// opens after the configured run of consecutive failures.
type UplinkConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OutboxSize      int    `yaml:"outbox_size"`
	BreakerFailures uint32 `yaml:"breaker_failures"`
	RetryInitialMS  int    `yaml:"retry_initial_ms"`
	RetryMaxMS      int    `yaml:"retry_max_ms"`
	MaxRetries      uint64 `yaml:"max_retries"`
}

// TelemetryConfig selects where run recordings go. An empty DBPath
// resolves to the user data directory at open; ":memory:" keeps the
// store in RAM.
type TelemetryConfig struct {
	DBPath string       `yaml:"db_path,omitempty"`
	Uplink UplinkConfig `yaml:"uplink"`
}

// Config is the top-level configuration: schedule timings, controller
// tuning, the mission course, telemetry, and the simulator world.
type Config struct {
	Schedule  ScheduleConfig         `yaml:"schedule"`
	Line      tasks.LineFollowConfig `yaml:"line"`
	Heading   tasks.HeadingConfig    `yaml:"heading"`
	Mission   mission.Config         `yaml:"mission"`
	Course    mission.Course         `yaml:"course"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
	Sim       sim.Config             `yaml:"sim"`
}

// Validate checks the cross-cutting constraints a merged file must
// satisfy before the rig starts. Per-task tuning is validated again by
// each task constructor.
func (c *Config) Validate() error {
	timings := []struct {
		name string
		t    TaskTiming
	}{
		{"plant", c.Schedule.Plant},
		{"sensors", c.Schedule.Sensors},
		{"motor", c.Schedule.Motor},
		{"line", c.Schedule.Line},
		{"heading", c.Schedule.Heading},
		{"bump", c.Schedule.Bump},
		{"thinker", c.Schedule.Thinker},
		{"probe", c.Schedule.Probe},
	}
	for _, entry := range timings {
		if entry.t.PeriodMS < 1 {
			return fmt.Errorf("config: %s period %dms, want at least 1ms", entry.name, entry.t.PeriodMS)
		}
	}
	if err := c.Course.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Uplink.Enabled {
		u := c.Telemetry.Uplink
		if u.OutboxSize < 1 {
			return fmt.Errorf("config: uplink outbox size %d, want at least 1", u.OutboxSize)
		}
		if u.BreakerFailures < 1 {
			return fmt.Errorf("config: uplink breaker threshold %d, want at least 1", u.BreakerFailures)
		}
		if u.RetryInitialMS < 1 || u.RetryMaxMS < u.RetryInitialMS {
			return fmt.Errorf("config: uplink retry window %dms..%dms is not ascending", u.RetryInitialMS, u.RetryMaxMS)
		}
	}
	return nil
}
