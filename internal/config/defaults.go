package config

import (
	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/mission"
	"github.com/LucaSlade/ME405-Romulus/internal/pid"
	"github.com/LucaSlade/ME405-Romulus/internal/sim"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// DefaultConfig returns the tuning the robot last competed with: the
// schedule table, both controller loops, and the default course.
func DefaultConfig() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Plant:   TaskTiming{PeriodMS: 10, Priority: 6},
			Sensors: TaskTiming{PeriodMS: 10, Priority: 5},
			Motor:   TaskTiming{PeriodMS: 25, Priority: 4},
			Bump:    TaskTiming{PeriodMS: 20, Priority: 3},
			Thinker: TaskTiming{PeriodMS: 30, Priority: 3},
			Line:    TaskTiming{PeriodMS: 20, Priority: 2},
			Heading: TaskTiming{PeriodMS: 40, Priority: 1},
			Probe:   TaskTiming{PeriodMS: 100, Priority: 1},
		},
		Line: tasks.LineFollowConfig{
			PID: pid.Config{
				Kp:            2,
				OutMin:        -50,
				OutMax:        50,
				IntegralLimit: 20,
			},
			Offsets:         defaultLineOffsets(),
			DetectThreshold: 0.15,
			LostAfter:       10,
		},
		Heading: tasks.HeadingConfig{
			PID: pid.Config{
				Kp:            2,
				OutMin:        -50,
				OutMax:        50,
				IntegralLimit: 20,
			},
			FilterAlpha:  0.3,
			ToleranceDeg: 2,
			SettleTicks:  5,
		},
		Mission: mission.Config{LostCrawlEffort: 12},
		Course:  mission.DefaultCourse(),
		Telemetry: TelemetryConfig{
			Uplink: UplinkConfig{
				Enabled:         false,
				OutboxSize:      64,
				BreakerFailures: 5,
				RetryInitialMS:  200,
				RetryMaxMS:      5000,
				MaxRetries:      4,
			},
		},
		Sim: sim.DefaultConfig(),
	}
}

// defaultLineOffsets spaces the reflectance elements symmetrically
// about the array center, one unit per element pitch.
func defaultLineOffsets() [hw.LineSensorCount]float64 {
	var out [hw.LineSensorCount]float64
	center := (float64(hw.LineSensorCount) - 1) / 2
	for i := range out {
		out[i] = float64(i) - center
	}
	return out
}
