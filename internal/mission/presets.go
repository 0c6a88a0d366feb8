package mission

// Presets returns the courses compiled into the binary, default first.
// A config file can still carry a fully custom course; these are the
// ones worth keeping on hand at the bench.
func Presets() []Course {
	return []Course{
		DefaultCourse(),
		SprintCourse(),
		SquareDrillCourse(),
	}
}

// PresetByName looks up a compiled-in course.
func PresetByName(name string) (Course, bool) {
	for _, c := range Presets() {
		if c.Name == name {
			return c, true
		}
	}
	return Course{}, false
}

// SprintCourse is the minimal schedule shakedown: arm, drive straight,
// done. Useful for verifying motors, encoders, and timing without a
// taped course.
func SprintCourse() Course {
	return Course{
		Name: "straight-sprint",
		Phases: []Phase{
			{ID: "S0_STANDBY", Kind: KindStandby, Next: "S1_SPRINT"},
			{ID: "S1_SPRINT", Kind: KindDriveToFinish, DistanceTicks: 3000, BaseEffort: 40},
		},
	}
}

// SquareDrillCourse drives a square using relative turns: four legs,
// four 90 degree corners, then a short run home. It exercises the
// heading loop harder than the competition course does.
func SquareDrillCourse() Course {
	return Course{
		Name: "square-drill",
		Phases: []Phase{
			{ID: "S0_STANDBY", Kind: KindStandby, Next: "S1_LEG_1"},
			{ID: "S1_LEG_1", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S2_CORNER_1"},
			{ID: "S2_CORNER_1", Kind: KindHeadingTurn, HeadingDeg: 90, HeadingRelative: true, Next: "S3_LEG_2"},
			{ID: "S3_LEG_2", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S4_CORNER_2"},
			{ID: "S4_CORNER_2", Kind: KindHeadingTurn, HeadingDeg: 90, HeadingRelative: true, Next: "S5_LEG_3"},
			{ID: "S5_LEG_3", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S6_CORNER_3"},
			{ID: "S6_CORNER_3", Kind: KindHeadingTurn, HeadingDeg: 90, HeadingRelative: true, Next: "S7_LEG_4"},
			{ID: "S7_LEG_4", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S8_HOME"},
			{ID: "S8_HOME", Kind: KindDriveToFinish, DistanceTicks: 500, BaseEffort: 30},
		},
	}
}
