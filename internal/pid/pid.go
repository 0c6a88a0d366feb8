// Package pid implements the proportional-integral-derivative control law
// the subsystem tasks regulate with. Each controller instance belongs to
// exactly one task and is never shared; callers reset it whenever their
// state machine re-enters an active control state so no integral or
// derivative history leaks across mission phases.
//
// Field tuning note: the proportional term does the work on this platform.
// Integral and derivative gains are kept near zero in the default course
// configuration because they amplify IMU heading noise and the motors'
// battery-dependent response; all gains load from configuration so they
// can be re-tuned empirically without a rebuild.
package pid

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNonPositiveDT is returned by Compute when the supplied sample
// interval is zero or negative. That is always a caller bug: the control
// tasks tick on a fixed positive period.
var ErrNonPositiveDT = errors.New("pid: non-positive dt")

// Config carries one controller's gains and limits.
type Config struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`

	// OutMin and OutMax clamp the computed output to the actuator's
	// accepted range. OutMin must be strictly less than OutMax.
	OutMin float64 `yaml:"out_min"`
	OutMax float64 `yaml:"out_max"`

	// IntegralLimit bounds the magnitude of the accumulated error
	// integral (anti-windup). Zero or negative leaves it unbounded.
	IntegralLimit float64 `yaml:"integral_limit"`
}

func (c Config) validate() error {
	for _, g := range []struct {
		name  string
		value float64
	}{
		{"kp", c.Kp}, {"ki", c.Ki}, {"kd", c.Kd},
		{"out_min", c.OutMin}, {"out_max", c.OutMax},
		{"integral_limit", c.IntegralLimit},
	} {
		if math.IsNaN(g.value) || math.IsInf(g.value, 0) {
			return fmt.Errorf("pid: %s is not finite", g.name)
		}
	}
	if c.OutMin >= c.OutMax {
		return fmt.Errorf("pid: out_min %v must be below out_max %v", c.OutMin, c.OutMax)
	}
	return nil
}

// Controller holds the state a PID loop accumulates between ticks: the
// error integral and the previous error for the derivative term.
type Controller struct {
	cfg       Config
	integral  float64
	prevError float64
	primed    bool // a previous error exists for the derivative term
}

// New validates cfg and returns a controller in its reset state.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

// Compute advances the controller by one sample and returns the clamped
// actuation output. Error is setpoint minus measurement. The first call
// after New or Reset contributes no derivative term, so a large initial
// error does not kick the actuator.
func (c *Controller) Compute(setpoint, measurement float64, dt time.Duration) (float64, error) {
	if dt <= 0 {
		return 0, ErrNonPositiveDT
	}
	sec := dt.Seconds()
	err := setpoint - measurement

	c.integral += err * sec
	if lim := c.cfg.IntegralLimit; lim > 0 {
		c.integral = clamp(c.integral, -lim, lim)
	}

	var derivative float64
	if c.primed {
		derivative = (err - c.prevError) / sec
	}
	c.prevError = err
	c.primed = true

	out := c.cfg.Kp*err + c.cfg.Ki*c.integral + c.cfg.Kd*derivative
	return clamp(out, c.cfg.OutMin, c.cfg.OutMax), nil
}

// Reset clears the integral accumulator and derivative history. Two
// identical error sequences separated by a Reset produce identical
// output sequences.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.primed = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
