package mission

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// Machine events. Each tick the thinker offers them in precedence
// order; the machine's transition table and guards decide whether one
// fires. The same strings appear as the Cause of PhaseChangedEvent.
const (
	evStart   = "start"
	evAdvance = "advance"
	evBump    = "bump"
	evTimeout = "timeout"
	evStop    = "stop"
	evFault   = "fault"
)

// Guard names registered on the machine.
const (
	guardPhaseDone = "phaseDone"
	guardBumpSeen  = "bumpSeen"
	guardTimedOut  = "timedOut"
)

// Config tunes supervisor behavior that is not per-phase.
type Config struct {
	// LostCrawlEffort is the straight creep commanded while the line
	// task hunts for a lost line. Zero stops the robot instead.
	LostCrawlEffort float64 `yaml:"lost_crawl_effort"`
}

// Inputs are the read views the thinker consumes each tick. All of
// them are declared by the subsystem tasks.
type Inputs struct {
	Encoders    *share.Cell[tasks.EncoderCounts]
	Line        *share.Cell[tasks.LineStatus]
	LineEfforts *share.Cell[tasks.EffortPair]
	Heading     *share.Cell[tasks.HeadingStatus]
	Correction  *share.Cell[float64]
	Motor       *share.Cell[tasks.MotorStatus]
	Bumps       *share.Queue[tasks.BumpEvent]
	Presses     *share.Queue[time.Time]
}

func (in *Inputs) validate() error {
	switch {
	case in.Encoders == nil, in.Line == nil, in.LineEfforts == nil,
		in.Heading == nil, in.Correction == nil, in.Motor == nil:
		return errors.New("mission: thinker needs every input cell")
	case in.Bumps == nil, in.Presses == nil:
		return errors.New("mission: thinker needs the bump and press queues")
	}
	return nil
}

// Thinker walks the course phase machine. It is the single writer of
// the mode, target, acknowledge, and final motor command shares: the
// subsystem tasks publish proposals, and each tick the thinker routes
// the proposal the current phase calls for into the command the motor
// task applies.
//
// Transition legality lives in the statekit machine built from the
// course table; the thinker evaluates guards against live shares and
// offers events in a fixed precedence (stop and start from the
// operator, then timeout, collision, and the phase completion guard).
type Thinker struct {
	course Course
	cfg    Config
	byID   map[string]*Phase

	interp *statekit.Interpreter[*Thinker]
	in     Inputs
	out    *Outputs
	bus    *events.EventBus

	ticks      uint64 // total thinker ticks since construction
	phaseTicks uint64 // ticks in the current state
	startTick  uint64 // tick the run left standby

	baseLeft  int64 // encoder baselines recorded at phase entry
	baseRight int64

	bumpPending bool
	ackN        uint64
	resetN      uint64
	retries     uint64
	bumps       uint64
	lineLost    bool
	motorFault  bool
	faultReason string
}

// NewThinker validates the course and wires the supervisor. The bus
// may be nil for rigs that run without observers.
func NewThinker(course Course, cfg Config, in Inputs, out *Outputs, bus *events.EventBus) (*Thinker, error) {
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if cfg.LostCrawlEffort < 0 || cfg.LostCrawlEffort > hw.EffortLimit {
		return nil, fmt.Errorf("mission: lost crawl effort %v outside [0, %v]", cfg.LostCrawlEffort, hw.EffortLimit)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("mission: thinker needs the output shares")
	}

	t := &Thinker{
		course: course,
		cfg:    cfg,
		byID:   make(map[string]*Phase, len(course.Phases)),
		in:     in,
		out:    out,
		bus:    bus,
	}
	for i := range course.Phases {
		p := &course.Phases[i]
		t.byID[p.ID] = p
	}

	machine, err := t.buildMachine()
	if err != nil {
		return nil, fmt.Errorf("mission: building phase machine: %w", err)
	}
	t.interp = statekit.NewInterpreter(machine)
	t.interp.Start()

	counts := in.Encoders.Get()
	t.baseLeft, t.baseRight = counts.Left, counts.Right
	return t, nil
}

// buildMachine translates the course table into a statekit machine.
// Guards close over the thinker, so they read the live shares when an
// event is offered.
func (t *Thinker) buildMachine() (*statekit.MachineConfig[*Thinker], error) {
	standby := t.course.Standby()

	builder := statekit.NewMachine[*Thinker]("mission").
		WithInitial(statekit.StateID(standby.ID)).
		WithContext(t).
		WithGuard(guardPhaseDone, func(th *Thinker, _ statekit.Event) bool {
			return th.phaseDone()
		}).
		WithGuard(guardBumpSeen, func(th *Thinker, _ statekit.Event) bool {
			return th.bumpPending
		}).
		WithGuard(guardTimedOut, func(th *Thinker, _ statekit.Event) bool {
			return th.timedOut()
		})

	for _, p := range t.course.Phases {
		switch p.Kind {
		case KindStandby:
			builder.State(statekit.StateID(p.ID)).
				On(evStart).Target(statekit.StateID(p.Next)).
				On(evFault).Target(statekit.StateID(FaultedState)).
				Done()
		case KindLineUntilBump:
			builder.State(statekit.StateID(p.ID)).
				On(evBump).Target(statekit.StateID(p.OnBump)).Guard(guardBumpSeen).
				On(evTimeout).Target(statekit.StateID(FaultedState)).Guard(guardTimedOut).
				On(evStop).Target(statekit.StateID(standby.ID)).
				On(evFault).Target(statekit.StateID(FaultedState)).
				Done()
		default:
			builder.State(statekit.StateID(p.ID)).
				On(evAdvance).Target(statekit.StateID(resolveNext(p.Next))).Guard(guardPhaseDone).
				On(evTimeout).Target(statekit.StateID(FaultedState)).Guard(guardTimedOut).
				On(evStop).Target(statekit.StateID(standby.ID)).
				On(evFault).Target(statekit.StateID(FaultedState)).
				Done()
		}
	}

	// Terminals hold until the operator cycles the mission.
	builder.State(statekit.StateID(FinishedState)).
		On(evStop).Target(statekit.StateID(standby.ID)).
		Done()
	builder.State(statekit.StateID(FaultedState)).
		On(evStop).Target(statekit.StateID(standby.ID)).
		Done()

	return builder.Build()
}

// State is the current phase ID, or FINISHED / FAULTED.
func (t *Thinker) State() string {
	return string(t.interp.State().Value)
}

// Fault aborts the mission from outside the phase guards, for example
// when a supervisor watchdog trips. It reports whether the machine
// actually faulted; terminals ignore it.
func (t *Thinker) Fault(reason string, now time.Time) bool {
	prev := t.faultReason
	t.faultReason = reason
	if !t.fire(evFault, now) {
		t.faultReason = prev
		return false
	}
	return true
}

// Status is the supervisor status share.
func (t *Thinker) Status() *share.Cell[Status] { return t.out.Status.Cell() }

// Course returns the course the thinker is walking.
func (t *Thinker) Course() Course { return t.course }

// Tick runs one supervisor step: consume observations, offer machine
// events in precedence order, route efforts for the resulting state,
// and republish status.
func (t *Thinker) Tick(now time.Time) {
	t.ticks++
	t.phaseTicks++

	t.observe(now)

	if !t.press(now) {
		t.step(now)
	}

	t.drive()
	t.publishStatus()
}

// observe consumes queued collisions and watches subsystem status
// edges, forwarding them to the bus.
func (t *Thinker) observe(now time.Time) {
	for {
		ev, ok := t.in.Bumps.TryPop()
		if !ok {
			break
		}
		t.bumpPending = true
		t.bumps++
		t.publish(events.TopicTask, events.BumpDetectedEvent{
			Phase:     t.State(),
			Left:      ev.Left,
			Right:     ev.Right,
			Timestamp: now,
		})
	}

	lost := t.in.Line.Get().State == tasks.LineLost
	if lost && !t.lineLost {
		t.retries++
		t.publish(events.TopicTask, events.LineLostEvent{
			Phase:     t.State(),
			Retries:   t.retries,
			Timestamp: now,
		})
	} else if !lost && t.lineLost {
		t.publish(events.TopicTask, events.LineFoundEvent{Phase: t.State(), Timestamp: now})
	}
	t.lineLost = lost

	motor := t.in.Motor.Get()
	faulted := motor.State == tasks.MotorFault
	if faulted && !t.motorFault {
		t.publish(events.TopicTask, events.TaskFaultedEvent{
			Task:      "motor",
			Reason:    motor.Reason,
			Timestamp: now,
		})
	}
	t.motorFault = faulted
}

// press consumes at most one operator press per tick and reports
// whether it changed state. In standby a press starts the run; in any
// other state it aborts back to standby.
func (t *Thinker) press(now time.Time) bool {
	if _, ok := t.in.Presses.TryPop(); !ok {
		return false
	}
	if t.State() == t.course.Standby().ID {
		return t.fire(evStart, now)
	}
	return t.fire(evStop, now)
}

// step offers the condition events in precedence order and stops at
// the first transition.
func (t *Thinker) step(now time.Time) {
	for _, ev := range [...]string{evTimeout, evBump, evAdvance} {
		if t.fire(ev, now) {
			return
		}
	}
}

// fire offers one event to the machine. If the machine transitions,
// fire runs the entry bookkeeping for the new state and reports true.
func (t *Thinker) fire(event string, now time.Time) bool {
	from := t.State()
	t.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	to := t.State()
	if to == from {
		return false
	}
	t.enter(from, to, event, now)
	return true
}

// enter records baselines and runs the entry actions of the state just
// reached.
func (t *Thinker) enter(from, to, cause string, now time.Time) {
	t.phaseTicks = 0
	counts := t.in.Encoders.Get()
	t.baseLeft, t.baseRight = counts.Left, counts.Right

	if cause == evBump {
		// Acknowledge the collision so the bump task re-arms.
		t.bumpPending = false
		t.ackN++
		t.out.BumpAck.Set(t.ackN)
	}

	switch {
	case to == FinishedState:
		t.modesOff()
		t.publish(events.TopicMission, events.MissionFinishedEvent{
			Course:    t.course.Name,
			Ticks:     t.ticks - t.startTick,
			Timestamp: now,
		})
	case to == FaultedState:
		t.modesOff()
		if cause == evTimeout {
			p := t.byID[from]
			t.faultReason = fmt.Sprintf("phase %s exceeded %d ticks", from, p.TimeoutTicks)
		}
		t.publish(events.TopicMission, events.MissionFaultedEvent{
			Phase:     from,
			Reason:    t.faultReason,
			Timestamp: now,
		})
	default:
		t.enterPhase(t.byID[to], cause)
	}

	t.publish(events.TopicMission, events.PhaseChangedEvent{
		From:      from,
		To:        to,
		Cause:     cause,
		Tick:      t.ticks,
		Timestamp: now,
	})
}

// enterPhase arms the subsystems the phase needs and parks the rest.
func (t *Thinker) enterPhase(p *Phase, cause string) {
	switch p.Kind {
	case KindStandby:
		t.modesOff()
		// Entering standby is the operator's reset: clear the run
		// counters and release a faulted motor task.
		t.resetN++
		t.out.MotorReset.Set(t.resetN)
		t.retries = 0
		t.bumps = 0
		t.bumpPending = false
		t.faultReason = ""

	case KindLineFollow:
		t.armLine(p, tasks.BumpOff)

	case KindLineUntilBump:
		t.bumpPending = false
		t.armLine(p, tasks.BumpArm)

	case KindStraightDrive, KindReverse, KindDriveToFinish:
		t.out.LineMode.Set(tasks.LineOff)
		t.out.BumpMode.Set(tasks.BumpOff)
		t.holdHeading()

	case KindHeadingTurn:
		t.out.LineMode.Set(tasks.LineOff)
		t.out.BumpMode.Set(tasks.BumpOff)
		target := p.HeadingDeg
		if p.HeadingRelative {
			target = t.in.Heading.Get().Filtered + p.HeadingDeg
		}
		t.out.HeadingTarget.Set(tasks.HeadingCommand{
			TargetDeg:    target,
			ToleranceDeg: p.ToleranceDeg,
			SettleTicks:  p.SettleTicks,
		})
		t.out.HeadingMode.Set(tasks.HeadingOn)
	}

	if cause == evStart {
		t.startTick = t.ticks
	}
}

// armLine points the line task at the phase's base effort and sets the
// bump task as asked.
func (t *Thinker) armLine(p *Phase, bump tasks.BumpMode) {
	t.out.HeadingMode.Set(tasks.HeadingOff)
	t.out.LineBase.Set(p.BaseEffort)
	t.out.LineMode.Set(tasks.LineTrack)
	t.out.BumpMode.Set(bump)
}

// holdHeading engages the heading task on the current filtered heading
// so a straight leg drives out the way it came in. With the IMU not
// yet calibrated the leg runs open loop.
func (t *Thinker) holdHeading() {
	hs := t.in.Heading.Get()
	if !hs.Ready {
		t.out.HeadingMode.Set(tasks.HeadingOff)
		return
	}
	t.out.HeadingTarget.Set(tasks.HeadingCommand{TargetDeg: hs.Filtered})
	t.out.HeadingMode.Set(tasks.HeadingOn)
}

// modesOff parks every subsystem.
func (t *Thinker) modesOff() {
	t.out.LineMode.Set(tasks.LineOff)
	t.out.HeadingMode.Set(tasks.HeadingOff)
	t.out.BumpMode.Set(tasks.BumpOff)
}

// drive composes the final motor command for the current state.
func (t *Thinker) drive() {
	p, ok := t.byID[t.State()]
	if !ok || p.Kind == KindStandby {
		// Standby and both terminals hold the motors stopped.
		t.out.MotorCommand.Set(tasks.EffortPair{})
		return
	}

	switch p.Kind {
	case KindLineFollow, KindLineUntilBump:
		if t.in.Line.Get().State == tasks.LineLost {
			// Creep straight while the line task hunts; line speed
			// restores by itself once Tracking resumes.
			crawl := t.cfg.LostCrawlEffort
			t.out.MotorCommand.Set(tasks.EffortPair{Left: crawl, Right: crawl})
			return
		}
		t.out.MotorCommand.Set(t.in.LineEfforts.Get())

	case KindStraightDrive, KindDriveToFinish:
		t.straight(p.BaseEffort)

	case KindReverse:
		t.straight(-p.BaseEffort)

	case KindHeadingTurn:
		u := t.in.Correction.Get()
		t.out.MotorCommand.Set(tasks.EffortPair{
			Left:  clamp(u),
			Right: clamp(-u),
		})
	}
}

// straight composes base effort with the heading correction. Positive
// correction turns clockwise, so it speeds the left wheel; the yaw
// response has the same sense in reverse because it depends only on
// the wheel differential.
func (t *Thinker) straight(base float64) {
	var u float64
	if t.in.Heading.Get().State != tasks.HeadingIdle {
		u = t.in.Correction.Get()
	}
	t.out.MotorCommand.Set(tasks.EffortPair{
		Left:  clamp(base + u),
		Right: clamp(base - u),
	})
}

// advance is the mean encoder travel since phase entry, as a
// magnitude so reverse legs measure like forward ones.
func (t *Thinker) advance() int64 {
	c := t.in.Encoders.Get()
	d := ((c.Left - t.baseLeft) + (c.Right - t.baseRight)) / 2
	if d < 0 {
		d = -d
	}
	return d
}

// phaseDone evaluates the current phase's completion guard.
func (t *Thinker) phaseDone() bool {
	p, ok := t.byID[t.State()]
	if !ok {
		return false
	}
	switch {
	case p.distanceGuarded():
		return t.advance() >= p.DistanceTicks
	case p.Kind == KindHeadingTurn:
		return t.in.Heading.Get().Settled
	default:
		return false
	}
}

// timedOut reports whether the current phase ran past its budget.
func (t *Thinker) timedOut() bool {
	p, ok := t.byID[t.State()]
	return ok && p.TimeoutTicks > 0 && t.phaseTicks >= p.TimeoutTicks
}

func (t *Thinker) publishStatus() {
	st := t.State()
	var adv int64
	if _, ok := t.byID[st]; ok {
		adv = t.advance()
	}
	t.out.Status.Set(Status{
		State:      st,
		PhaseTicks: t.phaseTicks,
		Advance:    adv,
		Retries:    t.retries,
		Bumps:      t.bumps,
		Fault:      t.faultReason,
	})
}

func (t *Thinker) publish(topic string, ev events.Event) {
	if t.bus != nil {
		t.bus.Publish(topic, ev)
	}
}

func clamp(v float64) float64 {
	if v > hw.EffortLimit {
		return hw.EffortLimit
	}
	if v < -hw.EffortLimit {
		return -hw.EffortLimit
	}
	return v
}
