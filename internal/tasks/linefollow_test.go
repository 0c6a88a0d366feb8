package tasks

import (
	"testing"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/pid"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// standard half-sensor-pitch offsets, leftmost negative
var testOffsets = [hw.LineSensorCount]float64{-3.5, -2.5, -1.5, -0.5, 0.5, 1.5, 2.5, 3.5}

func lineConfig() LineFollowConfig {
	return LineFollowConfig{
		PID:             pid.Config{Kp: 2, OutMin: -50, OutMax: 50},
		Offsets:         testOffsets,
		DetectThreshold: 0.5,
		LostAfter:       3,
	}
}

type lineRig struct {
	task    *LineFollow
	line    *share.CellWriter[[hw.LineSensorCount]float64]
	mode    *share.CellWriter[LineMode]
	base    *share.CellWriter[float64]
	efforts *share.Cell[EffortPair]
	status  *share.Cell[LineStatus]
	now     time.Time
}

func newLineRig(t *testing.T, cfg LineFollowConfig) *lineRig {
	t.Helper()
	store := share.NewStore()
	line, err := share.DeclareCell(store, CellLineRaw, [hw.LineSensorCount]float64{})
	if err != nil {
		t.Fatal(err)
	}
	mode, err := share.DeclareCell(store, "line.mode", LineOff)
	if err != nil {
		t.Fatal(err)
	}
	base, err := share.DeclareCell(store, "line.base", 30.0)
	if err != nil {
		t.Fatal(err)
	}
	task, err := NewLineFollow(store, cfg, line.Cell(), mode.Cell(), base.Cell(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLineFollow: %v", err)
	}
	return &lineRig{
		task:    task,
		line:    line,
		mode:    mode,
		base:    base,
		efforts: task.Efforts(),
		status:  task.Status(),
		now:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (r *lineRig) tick() {
	r.now = r.now.Add(20 * time.Millisecond)
	r.task.Tick(r.now)
}

// centered puts the line squarely under the middle two sensors.
func centered() [hw.LineSensorCount]float64 {
	return [hw.LineSensorCount]float64{0, 0, 0, 0.9, 0.9, 0, 0, 0}
}

func TestNewLineFollow_Validation(t *testing.T) {
	store := share.NewStore()
	line, _ := share.DeclareCell(store, CellLineRaw, [hw.LineSensorCount]float64{})
	mode, _ := share.DeclareCell(store, "line.mode", LineOff)
	base, _ := share.DeclareCell(store, "line.base", 0.0)

	cases := []struct {
		label  string
		mutate func(*LineFollowConfig)
		period time.Duration
	}{
		{"zero threshold", func(c *LineFollowConfig) { c.DetectThreshold = 0 }, time.Millisecond},
		{"threshold above one", func(c *LineFollowConfig) { c.DetectThreshold = 1.5 }, time.Millisecond},
		{"zero lost-after", func(c *LineFollowConfig) { c.LostAfter = 0 }, time.Millisecond},
		{"bad pid clamp", func(c *LineFollowConfig) { c.PID.OutMin, c.PID.OutMax = 1, -1 }, time.Millisecond},
		{"zero period", func(c *LineFollowConfig) {}, 0},
	}
	for _, tc := range cases {
		cfg := lineConfig()
		tc.mutate(&cfg)
		if _, err := NewLineFollow(share.NewStore(), cfg, line.Cell(), mode.Cell(), base.Cell(), tc.period); err == nil {
			t.Errorf("%s: NewLineFollow succeeded, want error", tc.label)
		}
	}
}

func TestLineFollow_IdleUntilTrackMode(t *testing.T) {
	r := newLineRig(t, lineConfig())
	r.line.Set(centered())

	r.tick()
	if got := r.status.Get().State; got != LineIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if got := r.efforts.Get(); !got.Zero() {
		t.Errorf("efforts = %+v while idle, want zero", got)
	}

	r.mode.Set(LineTrack)
	r.tick() // consumes the mode change
	r.tick() // first control step
	if got := r.status.Get().State; got != LineTracking {
		t.Fatalf("state = %v, want tracking", got)
	}
}

func TestLineFollow_CenteredLineDrivesStraight(t *testing.T) {
	r := newLineRig(t, lineConfig())
	r.line.Set(centered())
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()

	st := r.status.Get()
	if !st.Detected {
		t.Fatal("line not detected")
	}
	if st.Position != 0 {
		t.Errorf("position = %v, want 0 for a centered line", st.Position)
	}
	if got := r.efforts.Get(); got.Left != 30 || got.Right != 30 {
		t.Errorf("efforts = %+v, want 30/30", got)
	}
}

// TestLineFollow_BaseEffortFollowsShare changes the supervisor's base
// effort mid-run; the next proposal is built around the new value.
func TestLineFollow_BaseEffortFollowsShare(t *testing.T) {
	r := newLineRig(t, lineConfig())
	r.line.Set(centered())
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()
	if got := r.efforts.Get(); got.Left != 30 || got.Right != 30 {
		t.Fatalf("efforts = %+v, want 30/30", got)
	}

	r.base.Set(12)
	r.tick()
	if got := r.efforts.Get(); got.Left != 12 || got.Right != 12 {
		t.Errorf("efforts = %+v after base change, want 12/12", got)
	}
}

func TestLineFollow_SteersTowardOffsetLine(t *testing.T) {
	r := newLineRig(t, lineConfig())
	// Line under the rightmost sensors: centroid positive.
	r.line.Set([hw.LineSensorCount]float64{0, 0, 0, 0, 0, 0, 0.9, 0.9})
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()

	st := r.status.Get()
	if st.Position != 3 {
		t.Errorf("position = %v, want 3", st.Position)
	}
	got := r.efforts.Get()
	if got.Left <= got.Right {
		t.Errorf("efforts = %+v, want left > right to steer toward a line on the right", got)
	}
}

// TestLineFollow_SingleDropoutStaysTracking feeds one sub-threshold tick
// between good ones: the lost counter must demand consecutive misses.
func TestLineFollow_SingleDropoutStaysTracking(t *testing.T) {
	r := newLineRig(t, lineConfig())
	r.line.Set(centered())
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()

	r.line.Set([hw.LineSensorCount]float64{}) // dropout
	r.tick()
	if got := r.status.Get(); got.State != LineTracking || got.Detected {
		t.Fatalf("after one dropout: state = %v detected = %v, want tracking/undetected", got.State, got.Detected)
	}

	r.line.Set(centered()) // back
	r.tick()
	if got := r.status.Get().State; got != LineTracking {
		t.Fatalf("state = %v, want tracking preserved across a single dropout", got)
	}

	// A fresh run of misses must start over: two more dropouts are not
	// enough for LostAfter=3.
	r.line.Set([hw.LineSensorCount]float64{})
	r.tick()
	r.tick()
	if got := r.status.Get().State; got != LineTracking {
		t.Fatalf("state = %v after 2/3 misses, want tracking", got)
	}
	r.tick()
	if got := r.status.Get().State; got != LineLost {
		t.Fatalf("state = %v after 3/3 misses, want lost", got)
	}
}

func TestLineFollow_LostStopsAndRecovers(t *testing.T) {
	r := newLineRig(t, lineConfig())
	r.line.Set(centered())
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()

	r.line.Set([hw.LineSensorCount]float64{})
	for i := 0; i < 3; i++ {
		r.tick()
	}
	if got := r.status.Get().State; got != LineLost {
		t.Fatalf("state = %v, want lost", got)
	}
	if got := r.efforts.Get(); !got.Zero() {
		t.Errorf("efforts = %+v while lost, want zero proposal", got)
	}

	// Line reappears: self-recovery without supervisor involvement.
	r.line.Set(centered())
	r.tick()
	st := r.status.Get()
	if st.State != LineTracking {
		t.Fatalf("state = %v, want tracking after recovery", st.State)
	}
	if got := r.efforts.Get(); got.Left != 30 || got.Right != 30 {
		t.Errorf("efforts = %+v after recovery, want 30/30", got)
	}
}

// TestLineFollow_ReentryResetsController verifies no PID history leaks
// across an off/on cycle: the first correction after re-entry matches
// the first correction of the initial entry.
func TestLineFollow_ReentryResetsController(t *testing.T) {
	cfg := lineConfig()
	cfg.PID.Ki = 5
	cfg.PID.IntegralLimit = 40
	r := newLineRig(t, cfg)
	offCenter := [hw.LineSensorCount]float64{0, 0, 0, 0, 0, 0, 0.9, 0.9}

	r.line.Set(offCenter)
	r.mode.Set(LineTrack)
	r.tick()
	r.tick()
	first := r.efforts.Get()

	// Accumulate integral for a while, then stop.
	for i := 0; i < 10; i++ {
		r.tick()
	}
	r.mode.Set(LineOff)
	r.tick()

	r.mode.Set(LineTrack)
	r.tick()
	r.tick()
	if got := r.efforts.Get(); got != first {
		t.Errorf("first efforts after re-entry = %+v, want %+v (controller reset)", got, first)
	}
}
