package tasks

import (
	"fmt"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/pid"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// LineFollowConfig tunes the line follow task. Offsets assign each
// reflectance element its lateral position in sensor units, leftmost
// first; the centroid of the readings weighted by these offsets is the
// line position the PID regulates to zero.
type LineFollowConfig struct {
	PID             pid.Config                  `yaml:"pid"`
	Offsets         [hw.LineSensorCount]float64 `yaml:"offsets"`
	DetectThreshold float64                     `yaml:"detect_threshold"`
	LostAfter       int                         `yaml:"lost_after"`
}

// LineFollow tracks the course line. While Tracking it computes the
// weighted-centroid line position each tick, regulates it to center
// through its PID loop, and proposes wheel efforts around the base
// effort the supervisor publishes per phase. LostAfter consecutive
// ticks with no element above the detection threshold move it to
// LineLost, where it proposes a stop and waits; a fresh detection
// recovers it to Tracking on its own.
type LineFollow struct {
	cfg  LineFollowConfig
	ctrl *pid.Controller
	clk  dtClock

	raw     *share.Cell[[hw.LineSensorCount]float64]
	mode    *share.Cell[LineMode]
	base    *share.Cell[float64]
	efforts *share.CellWriter[EffortPair]
	status  *share.CellWriter[LineStatus]

	state    LineState
	lost     int // consecutive sub-threshold ticks
	position float64
	detected bool
}

// NewLineFollow declares the line efforts and status shares and returns
// the task. The raw share belongs to the sensor poll task, the mode and
// base effort shares to the mission supervisor; period is the task's
// schedule period, used as the nominal control interval.
func NewLineFollow(store *share.Store, cfg LineFollowConfig, raw *share.Cell[[hw.LineSensorCount]float64], mode *share.Cell[LineMode], base *share.Cell[float64], period time.Duration) (*LineFollow, error) {
	if cfg.DetectThreshold <= 0 || cfg.DetectThreshold > 1 {
		return nil, fmt.Errorf("tasks: detect threshold %v outside (0, 1]", cfg.DetectThreshold)
	}
	if cfg.LostAfter < 1 {
		return nil, fmt.Errorf("tasks: lost-after must be at least 1, got %d", cfg.LostAfter)
	}
	if period <= 0 {
		return nil, fmt.Errorf("tasks: period must be positive, got %v", period)
	}
	ctrl, err := pid.New(cfg.PID)
	if err != nil {
		return nil, err
	}
	efforts, err := share.DeclareCell(store, CellLineEfforts, EffortPair{})
	if err != nil {
		return nil, err
	}
	status, err := share.DeclareCell(store, CellLineStatus, LineStatus{})
	if err != nil {
		return nil, err
	}
	return &LineFollow{
		cfg:     cfg,
		ctrl:    ctrl,
		clk:     dtClock{period: period},
		raw:     raw,
		mode:    mode,
		base:    base,
		efforts: efforts,
		status:  status,
	}, nil
}

// Tick advances the state machine one step and republishes status.
func (t *LineFollow) Tick(now time.Time) {
	switch mode := t.mode.Get(); t.state {
	case LineIdle:
		if mode == LineTrack {
			// Re-entering active control: no PID or timing history
			// may carry over from the previous phase.
			t.ctrl.Reset()
			t.clk.reset()
			t.lost = 0
			t.state = LineTracking
		}

	case LineTracking, LineLost:
		if mode == LineOff {
			t.state = LineIdle
			t.detected = false
			t.efforts.Set(EffortPair{})
			break
		}
		t.track(now)
	}

	t.status.Set(LineStatus{State: t.state, Position: t.position, Detected: t.detected})
}

// track runs one control step against the latest reflectance snapshot.
func (t *LineFollow) track(now time.Time) {
	readings := t.raw.Get()

	var peak float64
	for _, r := range readings {
		if r > peak {
			peak = r
		}
	}
	t.detected = peak >= t.cfg.DetectThreshold

	if !t.detected {
		t.lost++
		if t.state == LineTracking && t.lost >= t.cfg.LostAfter {
			t.state = LineLost
			t.efforts.Set(EffortPair{})
		}
		// Short dropouts hold the previous correction; the line is
		// usually back within a tick or two.
		return
	}

	t.lost = 0
	if t.state == LineLost {
		t.state = LineTracking
	}

	t.position = centroid(readings, t.cfg.Offsets)
	u, err := t.ctrl.Compute(0, t.position, t.clk.dt(now))
	if err != nil {
		// dtClock never yields a non-positive interval.
		return
	}
	base := clampEffort(t.base.Get(), hw.EffortLimit)
	t.efforts.Set(EffortPair{
		Left:  clampEffort(base-u, hw.EffortLimit),
		Right: clampEffort(base+u, hw.EffortLimit),
	})
}

// Efforts is the proposed wheel effort share.
func (t *LineFollow) Efforts() *share.Cell[EffortPair] { return t.efforts.Cell() }

// Status is the line follow status share.
func (t *LineFollow) Status() *share.Cell[LineStatus] { return t.status.Cell() }

// centroid returns the reading-weighted average of the sensor offsets.
// Callers guarantee at least one reading is above the detection
// threshold, so the weight sum is positive.
func centroid(readings, offsets [hw.LineSensorCount]float64) float64 {
	var sum, weighted float64
	for i, r := range readings {
		sum += r
		weighted += r * offsets[i]
	}
	return weighted / sum
}
