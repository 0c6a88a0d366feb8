package tasks

import (
	"fmt"
	"math"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/pid"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// HeadingConfig tunes the heading task. FilterAlpha is the low-pass
// coefficient applied to raw IMU headings: 1 passes them through, values
// toward 0 smooth harder. Raw headings are noisy enough to saturate the
// turn controller and over-rotate the chassis, so the filter is not
// optional equipment.
type HeadingConfig struct {
	PID          pid.Config `yaml:"pid"`
	FilterAlpha  float64    `yaml:"filter_alpha"`
	ToleranceDeg float64    `yaml:"tolerance_deg"`
	SettleTicks  int        `yaml:"settle_ticks"`
}

// Heading regulates the chassis yaw toward the supervisor's target
// heading. It publishes a scalar correction (positive turns clockwise)
// the supervisor composes into wheel efforts, and a settled flag that
// holds only after the error has stayed within tolerance for the
// required run of consecutive ticks. Tolerance and settle run come from
// the config unless the active command overrides them. Turning while
// converging, Holding once settled.
type Heading struct {
	cfg  HeadingConfig
	ctrl *pid.Controller
	clk  dtClock

	imu    *share.Cell[IMUSample]
	mode   *share.Cell[HeadingMode]
	target *share.Cell[HeadingCommand]

	correction *share.CellWriter[float64]
	status     *share.CellWriter[HeadingStatus]

	state      HeadingState
	filtered   float64
	primed     bool // filter seeded from a live sample
	settleRun  int
	settled    bool
	lastTarget float64
	lastErr    float64
}

// NewHeading declares the correction and status shares and returns the
// task. The imu share belongs to the sensor poll task, mode and target
// to the mission supervisor; period is the task's schedule period.
func NewHeading(store *share.Store, cfg HeadingConfig, imu *share.Cell[IMUSample], mode *share.Cell[HeadingMode], target *share.Cell[HeadingCommand], period time.Duration) (*Heading, error) {
	if cfg.FilterAlpha <= 0 || cfg.FilterAlpha > 1 {
		return nil, fmt.Errorf("tasks: filter alpha %v outside (0, 1]", cfg.FilterAlpha)
	}
	if cfg.ToleranceDeg <= 0 {
		return nil, fmt.Errorf("tasks: heading tolerance must be positive, got %v", cfg.ToleranceDeg)
	}
	if cfg.SettleTicks < 1 {
		return nil, fmt.Errorf("tasks: settle ticks must be at least 1, got %d", cfg.SettleTicks)
	}
	if period <= 0 {
		return nil, fmt.Errorf("tasks: period must be positive, got %v", period)
	}
	ctrl, err := pid.New(cfg.PID)
	if err != nil {
		return nil, err
	}
	correction, err := share.DeclareCell(store, CellHeadingCorrection, 0.0)
	if err != nil {
		return nil, err
	}
	status, err := share.DeclareCell(store, CellHeadingStatus, HeadingStatus{})
	if err != nil {
		return nil, err
	}
	return &Heading{
		cfg:        cfg,
		ctrl:       ctrl,
		clk:        dtClock{period: period},
		imu:        imu,
		mode:       mode,
		target:     target,
		correction: correction,
		status:     status,
	}, nil
}

// Tick advances the state machine one step and republishes status.
func (t *Heading) Tick(now time.Time) {
	sample := t.imu.Get()
	t.filter(sample)

	active := t.mode.Get() == HeadingOn && sample.Ready

	switch t.state {
	case HeadingIdle:
		if active {
			t.ctrl.Reset()
			t.clk.reset()
			t.settleRun = 0
			t.settled = false
			t.state = HeadingTurning
		}

	case HeadingTurning, HeadingHolding:
		if !active {
			t.state = HeadingIdle
			t.settleRun = 0
			t.settled = false
			t.correction.Set(0)
			break
		}
		t.regulate(now)
	}

	t.status.Set(HeadingStatus{
		State:    t.state,
		Ready:    sample.Ready,
		Filtered: t.filtered,
		Target:   t.lastTarget,
		Error:    t.lastErr,
		Settled:  t.settled,
	})
}

// filter folds the latest raw heading into the low-pass estimate. It
// runs Idle or not, so the estimate is already warm when a turn starts.
func (t *Heading) filter(sample IMUSample) {
	if !sample.Ready {
		return
	}
	if !t.primed {
		t.filtered = wrap360(sample.Heading)
		t.primed = true
		return
	}
	t.filtered = wrap360(t.filtered + t.cfg.FilterAlpha*angleDiff(sample.Heading, t.filtered))
}

// regulate runs one control step toward the current target.
func (t *Heading) regulate(now time.Time) {
	cmd := t.target.Get()
	tol := t.cfg.ToleranceDeg
	if cmd.ToleranceDeg > 0 {
		tol = cmd.ToleranceDeg
	}
	settle := t.cfg.SettleTicks
	if cmd.SettleTicks > 0 {
		settle = cmd.SettleTicks
	}

	err := angleDiff(cmd.TargetDeg, t.filtered)
	t.lastTarget = wrap360(cmd.TargetDeg)
	t.lastErr = err

	if math.Abs(err) <= tol {
		t.settleRun++
	} else {
		t.settleRun = 0
	}
	t.settled = t.settleRun >= settle
	if t.settled {
		t.state = HeadingHolding
	} else {
		t.state = HeadingTurning
	}

	u, cerr := t.ctrl.Compute(err, 0, t.clk.dt(now))
	if cerr != nil {
		// dtClock never yields a non-positive interval.
		return
	}
	t.correction.Set(u)
}

// Correction is the scalar turn correction share; positive values turn
// the chassis clockwise.
func (t *Heading) Correction() *share.Cell[float64] { return t.correction.Cell() }

// Status is the heading status share.
func (t *Heading) Status() *share.Cell[HeadingStatus] { return t.status.Cell() }

// angleDiff returns the shortest signed difference a-b in degrees,
// normalized to [-180, 180).
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	switch {
	case d < -180:
		d += 360
	case d >= 180:
		d -= 360
	}
	return d
}

// wrap360 normalizes an angle in degrees to [0, 360).
func wrap360(a float64) float64 {
	m := math.Mod(a, 360)
	if m < 0 {
		m += 360
	}
	return m
}
