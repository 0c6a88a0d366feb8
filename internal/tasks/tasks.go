// Package tasks implements the subsystem state machines the scheduler
// dispatches: sensor polling, motor control, line following, heading
// hold, and bump detection. Each task is an explicit state enum plus a
// Tick method that does one bounded unit of work; anything that must
// survive between ticks is a field, never a local.
//
// Tasks never call each other. Inputs arrive through share cells and
// queues written by the sensor poll task or the mission supervisor, and
// every task writes its own status cell each tick so the supervisor and
// telemetry observe it without coupling.
package tasks

import "time"

// Canonical share names. The writer of each is fixed: the sensor poll
// task owns the raw sensor shares, each subsystem task owns its status
// and proposal shares, and the mission supervisor owns the rest.
const (
	CellEncoders = "encoders"
	CellIMU      = "imu"
	CellLineRaw  = "line.raw"
	CellBumpRaw  = "bump.raw"
	QueueButton  = "ui.presses"

	CellLineStatus  = "line.status"
	CellLineEfforts = "line.efforts"

	CellHeadingStatus     = "heading.status"
	CellHeadingCorrection = "heading.correction"

	CellBumpStatus  = "bump.status"
	QueueBumpEvents = "bump.events"

	CellMotorStatus   = "motor.status"
	CellMotorVelocity = "motor.velocity"

	CellSensorSeq = "sensors.seq"
)

// dtClock derives the control interval between consecutive ticks. The
// first tick after construction or reset reports the nominal period, as
// does a catch-up burst where the scheduler dispatches twice against the
// same clock reading.
type dtClock struct {
	period time.Duration
	last   time.Time
}

func (c *dtClock) dt(now time.Time) time.Duration {
	if c.last.IsZero() {
		c.last = now
		return c.period
	}
	d := now.Sub(c.last)
	c.last = now
	if d <= 0 {
		return c.period
	}
	return d
}

func (c *dtClock) reset() { c.last = time.Time{} }

func clampEffort(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
