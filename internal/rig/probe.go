package rig

import (
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/mission"
	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// probe is the observer task: every tick it reads one coherent set of
// status shares and publishes it as a snapshot, plus a diagnostic
// event whenever a task's missed-deadline count has grown. It runs
// inside the control loop like any other task, so a reading is never
// torn by a concurrent writer.
type probe struct {
	bus   *events.EventBus
	sched *scheduler.Scheduler

	seq      *share.Cell[uint64]
	mission  *share.Cell[mission.Status]
	line     *share.Cell[tasks.LineStatus]
	heading  *share.Cell[tasks.HeadingStatus]
	bump     *share.Cell[tasks.BumpStatus]
	motor    *share.Cell[tasks.MotorStatus]
	velocity *share.Cell[tasks.WheelVelocity]
	encoders *share.Cell[tasks.EncoderCounts]
	imu      *share.Cell[tasks.IMUSample]
	command  *share.Cell[tasks.EffortPair]

	missed map[string]uint64
}

func (p *probe) Tick(now time.Time) {
	stats := p.sched.Stats()
	for _, st := range stats {
		if st.Missed > p.missed[st.Name] {
			p.missed[st.Name] = st.Missed
			p.bus.Publish(events.TopicScheduler, events.DeadlineMissedEvent{
				Task:      st.Name,
				Missed:    st.Missed,
				MaxLate:   st.MaxLate,
				Timestamp: now,
			})
		}
	}

	ms := p.mission.Get()
	p.bus.Publish(events.TopicRun, events.SnapshotEvent{
		Seq:        p.seq.Get(),
		Phase:      ms.State,
		PhaseTicks: ms.PhaseTicks,
		Advance:    ms.Advance,
		Retries:    ms.Retries,
		Bumps:      ms.Bumps,
		Fault:      ms.Fault,
		Line:       p.line.Get(),
		Heading:    p.heading.Get(),
		Bump:       p.bump.Get(),
		Motor:      p.motor.Get(),
		Velocity:   p.velocity.Get(),
		Encoders:   p.encoders.Get(),
		IMU:        p.imu.Get(),
		Command:    p.command.Get(),
		Stats:      stats,
		Timestamp:  now,
	})
}
