// Package sim is a differential-drive plant that stands in for the
// robot: one Robot implements every hw port, so the full task stack
// runs against it unchanged. The model is kinematic (effort maps
// linearly to wheel speed), which is enough to close the control loops
// deterministically under a virtual clock.
package sim

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
)

const (
	degPerRad = 180 / math.Pi
	radPerDeg = math.Pi / 180
)

// Segment is a stretch of line tape along the world's north axis.
type Segment struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
}

// Config sets the plant's geometry and the world it drives in. The
// line lies on the x = 0 axis over the configured segments; an
// optional wall crosses the course at WallY.
type Config struct {
	CountsPerMeter float64 `yaml:"counts_per_meter"`
	TrackWidthM    float64 `yaml:"track_width_m"`
	// MaxSpeedMPS is the wheel speed commanded by full effort.
	MaxSpeedMPS    float64 `yaml:"max_speed_mps"`
	SensorSpacingM float64 `yaml:"sensor_spacing_m"`
	// LineHalfWidthM is the lateral distance at which a sensor's
	// response falls to zero.
	LineHalfWidthM float64   `yaml:"line_half_width_m"`
	Segments       []Segment `yaml:"segments"`
	// WallY places a wall across the course; zero removes it.
	WallY float64 `yaml:"wall_y,omitempty"`
	// IMUWarmupTicks delays Ready, mimicking gyro calibration.
	IMUWarmupTicks uint64 `yaml:"imu_warmup_ticks,omitempty"`
}

// DefaultConfig approximates the chassis the software was tuned on.
func DefaultConfig() Config {
	return Config{
		CountsPerMeter: 6500,
		TrackWidthM:    0.149,
		MaxSpeedMPS:    0.75,
		SensorSpacingM: 0.0095,
		LineHalfWidthM: 0.012,
		Segments:       []Segment{{From: 0, To: 2.5}},
		WallY:          3.0,
	}
}

// Robot is the plant. It lives on the control loop goroutine: Step and
// the polling ports are called from task ticks only. The button latch
// and fault flag are atomics because the dashboard injects those from
// its own goroutine, the way a real driver latches them in an
// interrupt.
type Robot struct {
	cfg Config

	x, y       float64 // meters; +y north, +x east
	headingDeg float64 // compass degrees, clockwise positive
	lastRate   float64 // deg/s from the last step

	leftEffort  float64
	rightEffort float64
	enabled     bool

	leftCounts  float64
	rightCounts float64

	pressing bool // against the wall and pushing in
	steps    uint64

	pressed atomic.Bool
	fault   atomic.Bool
}

// NewRobot builds a plant at the origin facing north.
func NewRobot(cfg Config) (*Robot, error) {
	switch {
	case cfg.CountsPerMeter <= 0, cfg.TrackWidthM <= 0, cfg.MaxSpeedMPS <= 0:
		return nil, fmt.Errorf("sim: chassis parameters must be positive, got %+v", cfg)
	case cfg.SensorSpacingM <= 0, cfg.LineHalfWidthM <= 0:
		return nil, fmt.Errorf("sim: line sensor parameters must be positive, got %+v", cfg)
	}
	return &Robot{cfg: cfg, enabled: true}, nil
}

// Hardware bundles the plant's ports for the sensor and motor tasks.
func (r *Robot) Hardware() hw.Hardware {
	return hw.Hardware{
		Motors:   r,
		Encoders: r,
		Line:     r,
		IMU:      r,
		Bumps:    r,
		Button:   r,
	}
}

// Step advances the model by dt. Wheels slip rather than stall at the
// wall, so encoder counts keep accumulating while pressing.
func (r *Robot) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	s := dt.Seconds()

	vl := r.leftEffort / hw.EffortLimit * r.cfg.MaxSpeedMPS
	vr := r.rightEffort / hw.EffortLimit * r.cfg.MaxSpeedMPS
	if !r.enabled || r.fault.Load() {
		vl, vr = 0, 0
	}

	v := (vl + vr) / 2
	omega := (vl - vr) / r.cfg.TrackWidthM * degPerRad
	r.headingDeg = wrapHeading(r.headingDeg + omega*s)
	r.lastRate = omega

	th := r.headingDeg * radPerDeg
	r.x += v * math.Sin(th) * s
	r.y += v * math.Cos(th) * s

	r.pressing = false
	if r.cfg.WallY > 0 && r.y >= r.cfg.WallY {
		r.y = r.cfg.WallY
		r.pressing = v*math.Cos(th) > 0
	}

	r.leftCounts += vl * s * r.cfg.CountsPerMeter
	r.rightCounts += vr * s * r.cfg.CountsPerMeter
	r.steps++
}

// Pose returns the world position in meters and the heading in
// degrees.
func (r *Robot) Pose() (x, y, headingDeg float64) {
	return r.x, r.y, r.headingDeg
}

// SetPose teleports the plant, for scenario setup.
func (r *Robot) SetPose(x, y, headingDeg float64) {
	r.x, r.y, r.headingDeg = x, y, wrapHeading(headingDeg)
}

// PressButton latches an operator press. Safe from any goroutine.
func (r *Robot) PressButton() { r.pressed.Store(true) }

// SetFault scripts the motor driver's fault flag. Safe from any
// goroutine.
func (r *Robot) SetFault(on bool) { r.fault.Store(on) }

// SetEfforts implements hw.MotorDriver.
func (r *Robot) SetEfforts(left, right float64) error {
	if math.Abs(left) > hw.EffortLimit || math.Abs(right) > hw.EffortLimit {
		return fmt.Errorf("%w: %.1f, %.1f", hw.ErrEffortRange, left, right)
	}
	r.leftEffort, r.rightEffort = left, right
	return nil
}

// Enable implements hw.MotorDriver.
func (r *Robot) Enable() { r.enabled = true }

// Disable implements hw.MotorDriver. A disabled driver coasts.
func (r *Robot) Disable() { r.enabled = false }

// Fault implements hw.MotorDriver.
func (r *Robot) Fault() bool { return r.fault.Load() }

// Counts implements hw.Encoders.
func (r *Robot) Counts() (left, right int64) {
	return int64(math.Round(r.leftCounts)), int64(math.Round(r.rightCounts))
}

// Read implements hw.LineArray. Each element responds linearly to its
// lateral distance from the tape, zero beyond the half width or off
// the taped segments.
func (r *Robot) Read() [hw.LineSensorCount]float64 {
	var out [hw.LineSensorCount]float64
	if !r.onTape() {
		return out
	}
	th := r.headingDeg * radPerDeg
	rightX := math.Cos(th) // x component of the robot's right-hand unit vector
	center := (float64(hw.LineSensorCount) - 1) / 2
	for i := range out {
		off := (float64(i) - center) * r.cfg.SensorSpacingM
		d := math.Abs(r.x + rightX*off)
		if v := 1 - d/r.cfg.LineHalfWidthM; v > 0 {
			out[i] = v
		}
	}
	return out
}

func (r *Robot) onTape() bool {
	for _, s := range r.cfg.Segments {
		if r.y >= s.From && r.y <= s.To {
			return true
		}
	}
	return false
}

// Ready implements hw.IMU.
func (r *Robot) Ready() bool { return r.steps >= r.cfg.IMUWarmupTicks }

// Heading implements hw.IMU.
func (r *Robot) Heading() float64 { return r.headingDeg }

// AngularRate implements hw.IMU.
func (r *Robot) AngularRate() float64 { return r.lastRate }

// Pressed implements hw.BumpArray. Pressing the wall closes the front
// center pair, one switch in each cluster.
func (r *Robot) Pressed() [hw.BumpSwitchCount]bool {
	var out [hw.BumpSwitchCount]bool
	if r.pressing {
		out[hw.BumpSwitchCount/2-1] = true
		out[hw.BumpSwitchCount/2] = true
	}
	return out
}

// TakePress implements hw.Button.
func (r *Robot) TakePress() bool { return r.pressed.Swap(false) }

func wrapHeading(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}
