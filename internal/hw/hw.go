// Package hw defines the hardware boundary the control tasks poll. Real
// drivers (PWM, quadrature decode, IMU registers, debounced switches)
// live outside this module; everything here is the data they produce and
// consume. Every method must return immediately with the latest cached
// value or an error; nothing at this boundary may block, because callers
// run inside the cooperative loop.
package hw

import (
	"context"
	"errors"
)

// EffortLimit bounds the magnitude of a wheel effort command. Effort is
// a signed percentage of full drive: +100 full forward, -100 full
// reverse, 0 coast.
const EffortLimit = 100.0

// LineSensorCount is the number of elements in the reflectance array.
const LineSensorCount = 8

// BumpSwitchCount is the number of snap-action switches across the front
// of the chassis. Indices 0-2 are the left cluster, 3-5 the right.
const BumpSwitchCount = 6

// ErrEffortRange is returned by a motor driver handed an effort command
// outside ±EffortLimit.
var ErrEffortRange = errors.New("hw: effort out of range")

// MotorDriver accepts signed effort commands for both wheels.
type MotorDriver interface {
	// SetEfforts commands both wheels at once. Values outside
	// ±EffortLimit are rejected with ErrEffortRange and leave the
	// previous command in effect.
	SetEfforts(left, right float64) error
	// Enable wakes the driver; Disable puts it to sleep with both
	// wheels coasting.
	Enable()
	Disable()
	// Fault reports the driver's latched fault flag.
	Fault() bool
}

// Encoders exposes the wheel encoders' monotonically accumulating tick
// counts. Counts never reset during a run; consumers take deltas against
// baselines they record themselves.
type Encoders interface {
	Counts() (left, right int64)
}

// LineArray exposes the downward reflectance sensors. Readings are
// normalized to [0, 1] per element, 1 meaning darkest, index 0 the
// leftmost sensor.
type LineArray interface {
	Read() [LineSensorCount]float64
}

// IMU exposes the inertial heading reference.
type IMU interface {
	// Ready reports whether calibration has completed; heading data is
	// unusable before that.
	Ready() bool
	// Heading returns the yaw angle in degrees, [0, 360), increasing
	// clockwise.
	Heading() float64
	// AngularRate returns the yaw rate in degrees per second.
	AngularRate() float64
}

// BumpArray exposes the debounced state of each bump switch. Debouncing
// belongs to the driver; a true value is a settled closure.
type BumpArray interface {
	Pressed() [BumpSwitchCount]bool
}

// Button is the operator's start/stop control. Presses latch in the
// driver and are consumed by polling.
type Button interface {
	// TakePress reports a press since the previous call and clears the
	// latch, so each physical press is observed exactly once.
	TakePress() bool
}

// Link is the byte-oriented telemetry channel off the robot. Unlike the
// polling interfaces above it may block, so it is only ever used from
// the uplink goroutine, never inside the control loop.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Hardware bundles every driver the control tasks poll.
type Hardware struct {
	Motors   MotorDriver
	Encoders Encoders
	Line     LineArray
	IMU      IMU
	Bumps    BumpArray
	Button   Button
}
