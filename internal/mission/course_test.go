package mission

import (
	"strings"
	"testing"
)

// smallCourse is a minimal valid course: standby into a straight leg
// into a turn whose completion finishes the mission.
func smallCourse() Course {
	return Course{
		Name: "test-course",
		Phases: []Phase{
			{ID: "S0", Kind: KindStandby, Next: "A"},
			{ID: "A", Kind: KindStraightDrive, DistanceTicks: 100, BaseEffort: 30, Next: "B"},
			{ID: "B", Kind: KindHeadingTurn, HeadingDeg: 90},
		},
	}
}

func TestCourseValidate_Accepts(t *testing.T) {
	c := smallCourse()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	d := DefaultCourse()
	if err := d.Validate(); err != nil {
		t.Fatalf("DefaultCourse().Validate() = %v, want nil", err)
	}
	if got := d.Standby().ID; got != "S0_STANDBY" {
		t.Errorf("default course standby = %q", got)
	}
	if p := d.Phase("S7_LINE_FOLLOW_UNTIL_BUMP"); p == nil || p.OnBump != "S8_REVERSE" {
		t.Errorf("default course bump branch = %+v", p)
	}
	last := d.Phase("S10_DRIVE_TO_FINISH")
	if last == nil || resolveNext(last.Next) != FinishedState {
		t.Errorf("default course last phase should finish the mission, got %+v", last)
	}
}

func TestCourseValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Course)
		wantErr string
	}{
		{
			name:    "no name",
			mutate:  func(c *Course) { c.Name = "" },
			wantErr: "no name",
		},
		{
			name:    "no phases",
			mutate:  func(c *Course) { c.Phases = nil },
			wantErr: "no phases",
		},
		{
			name:    "blank phase id",
			mutate:  func(c *Course) { c.Phases[1].ID = "" },
			wantErr: "has no id",
		},
		{
			name:    "reserved phase id",
			mutate:  func(c *Course) { c.Phases[2].ID = FinishedState },
			wantErr: "reserved",
		},
		{
			name: "duplicate phase id",
			mutate: func(c *Course) {
				c.Phases = append(c.Phases, Phase{ID: "A", Kind: KindHeadingTurn, HeadingDeg: 10, Next: "B"})
			},
			wantErr: "duplicate phase id",
		},
		{
			name: "no standby",
			mutate: func(c *Course) {
				c.Phases[0] = Phase{ID: "S0", Kind: KindStraightDrive, DistanceTicks: 100, BaseEffort: 30, Next: "A"}
			},
			wantErr: "standby phases",
		},
		{
			name: "two standbys",
			mutate: func(c *Course) {
				c.Phases = append(c.Phases, Phase{ID: "S00", Kind: KindStandby, Next: "A"})
			},
			wantErr: "standby phases",
		},
		{
			name:    "dangling next target",
			mutate:  func(c *Course) { c.Phases[1].Next = "NOWHERE" },
			wantErr: "targets unknown phase",
		},
		{
			name: "dangling bump target",
			mutate: func(c *Course) {
				c.Phases[1] = Phase{ID: "A", Kind: KindLineUntilBump, BaseEffort: 25, OnBump: "NOWHERE"}
			},
			wantErr: "targets unknown phase",
		},
		{
			name:    "no finish edge",
			mutate:  func(c *Course) { c.Phases[2].Next = "A" },
			wantErr: "edges into FINISHED",
		},
		{
			name:    "two finish edges",
			mutate:  func(c *Course) { c.Phases[1].Next = "" },
			wantErr: "edges into FINISHED",
		},
		{
			name: "cycle",
			mutate: func(c *Course) {
				c.Phases[1].Next = ""
				c.Phases[2] = Phase{ID: "B", Kind: KindStraightDrive, DistanceTicks: 50, BaseEffort: 30, Next: "C"}
				c.Phases = append(c.Phases, Phase{ID: "C", Kind: KindStraightDrive, DistanceTicks: 50, BaseEffort: 30, Next: "B"})
			},
			wantErr: "contains a cycle",
		},
		{
			name: "unreachable phase",
			mutate: func(c *Course) {
				c.Phases[1].Next = ""
				c.Phases[2] = Phase{ID: "B", Kind: KindHeadingTurn, HeadingDeg: 90, Next: "A"}
			},
			wantErr: "unreachable",
		},
		{
			name: "bump phase without branch",
			mutate: func(c *Course) {
				c.Phases[1] = Phase{ID: "A", Kind: KindLineUntilBump, BaseEffort: 25}
			},
			wantErr: "on_bump",
		},
		{
			name: "bump phase with next",
			mutate: func(c *Course) {
				c.Phases[1] = Phase{ID: "A", Kind: KindLineUntilBump, BaseEffort: 25, OnBump: "B", Next: "B"}
			},
			wantErr: "exits only on collision",
		},
		{
			name:    "zero distance",
			mutate:  func(c *Course) { c.Phases[1].DistanceTicks = 0 },
			wantErr: "distance must be positive",
		},
		{
			name:    "zero base effort",
			mutate:  func(c *Course) { c.Phases[1].BaseEffort = 0 },
			wantErr: "base effort",
		},
		{
			name:    "base effort beyond limit",
			mutate:  func(c *Course) { c.Phases[1].BaseEffort = 150 },
			wantErr: "base effort",
		},
		{
			name:    "standby without next",
			mutate:  func(c *Course) { c.Phases[0].Next = "" },
			wantErr: "next target",
		},
		{
			name:    "unknown kind",
			mutate:  func(c *Course) { c.Phases[1].Kind = "wander" },
			wantErr: "unknown kind",
		},
		{
			name:    "negative tolerance",
			mutate:  func(c *Course) { c.Phases[2].ToleranceDeg = -1 },
			wantErr: "tolerance",
		},
		{
			name:    "negative settle",
			mutate:  func(c *Course) { c.Phases[2].SettleTicks = -1 },
			wantErr: "settle ticks",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := smallCourse()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPresetsAllValidate(t *testing.T) {
	presets := Presets()
	if len(presets) == 0 {
		t.Fatal("no preset courses")
	}
	if presets[0].Name != DefaultCourse().Name {
		t.Errorf("first preset = %q, want the default course", presets[0].Name)
	}

	seen := map[string]bool{}
	for _, c := range presets {
		if seen[c.Name] {
			t.Errorf("duplicate preset name %q", c.Name)
		}
		seen[c.Name] = true
		if err := c.Validate(); err != nil {
			t.Errorf("preset %q: Validate() = %v", c.Name, err)
		}
	}
}

func TestPresetByName(t *testing.T) {
	c, ok := PresetByName("straight-sprint")
	if !ok || c.Name != "straight-sprint" {
		t.Fatalf("PresetByName(straight-sprint) = %q, %v", c.Name, ok)
	}
	if _, ok := PresetByName("no-such-course"); ok {
		t.Error("PresetByName accepted an unknown name")
	}
}
