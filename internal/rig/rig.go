// Package rig assembles a runnable robot: the share store, the
// subsystem tasks, the mission supervisor, and the cooperative
// scheduler, with the recorder and radio uplink supervised around the
// control loop. The same assembly runs against real hardware ports or
// the simulator; only the hw.Hardware bundle differs.
package rig

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/mission"
	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
	"github.com/LucaSlade/ME405-Romulus/internal/telemetry"
)

// Options selects what runs around the control loop.
type Options struct {
	// Clock drives the scheduler; nil runs on the wall clock. A
	// virtual clock replays a whole mission as fast as the CPU allows.
	Clock scheduler.Clock
	// Bus carries run events to observers; nil creates a private one.
	// Run closes the bus on the way out either way.
	Bus *events.EventBus
	// Store, when set, records the run for post-run reports.
	Store *telemetry.Store
	// Uplink, when set, streams telemetry frames over the radio.
	Uplink *telemetry.Uplink
	// Plant is the simulator step task, registered ahead of the
	// sensor poll; nil when driving real hardware.
	Plant scheduler.Routine
	// StopWhenDone ends Run once the mission reaches FINISHED or
	// FAULTED. Leave false to keep the loop up for another start.
	StopWhenDone bool
	// MaxTicks faults the mission once the scheduler has dispatched
	// this many times; 0 means no budget. A safety net for headless
	// replays of a course that cannot complete.
	MaxTicks uint64
}

// Rig is an assembled robot awaiting Run.
type Rig struct {
	cfg  *config.Config
	opts Options

	clock   scheduler.Clock
	bus     *events.EventBus
	sched   *scheduler.Scheduler
	shares  *share.Store
	thinker *mission.Thinker
	cancel  context.CancelFunc
}

// Summary is what a run leaves behind for the caller, independent of
// whatever the recorder persisted.
type Summary struct {
	RunID   string
	Result  string // finished, faulted, or aborted
	Mission mission.Status
	Ticks   uint64
	Elapsed time.Duration // on the loop's clock, so virtual for replays
	Stats   []scheduler.TaskStats
	Shares  []share.Description
}

// New wires the full task set against the given hardware and fixes the
// schedule from cfg. The returned rig has not started anything yet.
func New(cfg *config.Config, hardware hw.Hardware, opts Options) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewEventBus()
	}

	shares := share.NewStore()
	out, err := mission.DeclareOutputs(shares)
	if err != nil {
		return nil, err
	}

	sensors, err := tasks.NewSensorPoll(shares, hardware)
	if err != nil {
		return nil, err
	}
	motor, err := tasks.NewMotor(shares, hardware.Motors, out.MotorCommand.Cell(),
		out.MotorReset.Cell(), sensors.Encoders(), cfg.Schedule.Motor.Period())
	if err != nil {
		return nil, err
	}
	line, err := tasks.NewLineFollow(shares, cfg.Line, sensors.Line(),
		out.LineMode.Cell(), out.LineBase.Cell(), cfg.Schedule.Line.Period())
	if err != nil {
		return nil, err
	}
	heading, err := tasks.NewHeading(shares, cfg.Heading, sensors.IMU(),
		out.HeadingMode.Cell(), out.HeadingTarget.Cell(), cfg.Schedule.Heading.Period())
	if err != nil {
		return nil, err
	}
	bump, err := tasks.NewBump(shares, sensors.Bumps(), out.BumpMode.Cell(), out.BumpAck.Cell())
	if err != nil {
		return nil, err
	}

	thinker, err := mission.NewThinker(cfg.Course, cfg.Mission, mission.Inputs{
		Encoders:    sensors.Encoders(),
		Line:        line.Status(),
		LineEfforts: line.Efforts(),
		Heading:     heading.Status(),
		Correction:  heading.Correction(),
		Motor:       motor.Status(),
		Bumps:       bump.Events(),
		Presses:     sensors.Presses(),
	}, out, bus)
	if err != nil {
		return nil, err
	}

	r := &Rig{
		cfg:     cfg,
		opts:    opts,
		clock:   clock,
		bus:     bus,
		sched:   scheduler.New(clock),
		shares:  shares,
		thinker: thinker,
	}

	obs := &probe{
		bus:      bus,
		sched:    r.sched,
		seq:      sensors.Seq(),
		mission:  thinker.Status(),
		line:     line.Status(),
		heading:  heading.Status(),
		bump:     bump.Status(),
		motor:    motor.Status(),
		velocity: motor.Velocity(),
		encoders: sensors.Encoders(),
		imu:      sensors.IMU(),
		command:  out.MotorCommand.Cell(),
		missed:   make(map[string]uint64),
	}

	sc := cfg.Schedule
	regs := []struct {
		name    string
		timing  config.TaskTiming
		routine scheduler.Routine
	}{
		{"plant", sc.Plant, opts.Plant},
		{"sensors", sc.Sensors, sensors},
		{"motor", sc.Motor, motor},
		{"bump", sc.Bump, bump},
		{"thinker", sc.Thinker, thinker},
		{"line", sc.Line, line},
		{"heading", sc.Heading, heading},
		{"probe", sc.Probe, obs},
	}
	for _, reg := range regs {
		if reg.routine == nil {
			continue
		}
		if err := r.sched.Register(reg.name, reg.timing.Priority, reg.timing.Period(), reg.routine); err != nil {
			return nil, err
		}
	}

	// The watchdog shares the loop goroutine, so it sees tick counts
	// and supervisor state without races.
	if opts.StopWhenDone || opts.MaxTicks > 0 {
		if err := r.sched.Register("watchdog", sc.Thinker.Priority, sc.Thinker.Period(), r.watchdog()); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Bus returns the event bus observers should subscribe to before Run.
func (r *Rig) Bus() *events.EventBus { return r.bus }

// watchdog builds the in-loop routine that enforces the tick budget
// and stops the loop once the mission is terminal.
func (r *Rig) watchdog() scheduler.Routine {
	return scheduler.RoutineFunc(func(now time.Time) {
		if r.opts.MaxTicks > 0 && r.sched.Ticks() >= r.opts.MaxTicks {
			r.thinker.Fault(fmt.Sprintf("tick budget %d exhausted", r.opts.MaxTicks), now)
		}
		if r.opts.StopWhenDone {
			switch r.thinker.State() {
			case mission.FinishedState, mission.FaultedState:
				r.stop()
			}
		}
	})
}

func (r *Rig) stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Run drives the control loop until ctx is cancelled, the watchdog
// stops it, or no task remains runnable. The recorder and uplink run
// beside the loop and are flushed before Run returns; the bus is
// closed on the way out.
func (r *Rig) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	start := r.clock.Now()

	// Observers subscribe before the run marker is published so they
	// see the whole run. The recorder's buffer is sized to hold every
	// event a replayed mission can emit, since a virtual-clock loop
	// produces them faster than SQLite absorbs them.
	var obs errgroup.Group
	if r.opts.Store != nil {
		sub := r.bus.SubscribeAll(4096)
		rec := telemetry.NewRecorder(r.opts.Store)
		obs.Go(func() error { return rec.Run(context.Background(), sub) })
	}
	if r.opts.Uplink != nil {
		sub := r.bus.SubscribeAll(256)
		obs.Go(func() error { return r.opts.Uplink.Run(context.Background(), sub) })
	}

	r.bus.Publish(events.TopicRun, events.RunStartedEvent{
		RunID:     runID,
		Course:    r.cfg.Course.Name,
		Timestamp: start,
	})
	log.Printf("run %s: course %q", runID, r.cfg.Course.Name)

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	err := r.sched.Run(loopCtx)

	end := r.clock.Now()
	status := r.thinker.Status().Get()
	result := runResult(status.State)

	r.bus.Publish(events.TopicRun, events.RunEndedEvent{
		RunID:     runID,
		Result:    result,
		Ticks:     r.sched.Ticks(),
		Timestamp: end,
	})
	r.bus.Close()
	if werr := obs.Wait(); werr != nil {
		log.Printf("WARNING: run observer: %v", werr)
	}

	summary := &Summary{
		RunID:   runID,
		Result:  result,
		Mission: status,
		Ticks:   r.sched.Ticks(),
		Elapsed: end.Sub(start),
		Stats:   r.sched.Stats(),
		Shares:  r.shares.Describe(),
	}
	log.Printf("run %s: %s after %d ticks (%s)", runID, result, summary.Ticks, summary.Elapsed)

	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, nil
}

func runResult(state string) string {
	switch state {
	case mission.FinishedState:
		return "finished"
	case mission.FaultedState:
		return "faulted"
	default:
		return "aborted"
	}
}
