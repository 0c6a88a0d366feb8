package mission

import (
	"github.com/LucaSlade/ME405-Romulus/internal/share"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// Canonical names of the supervisor-owned shares.
const (
	CellMissionStatus = "mission.status"
	CellLineMode      = "line.mode"
	CellLineBase      = "line.base"
	CellHeadingMode   = "heading.mode"
	CellHeadingTarget = "heading.target"
	CellBumpMode      = "bump.mode"
	CellBumpAck       = "bump.ack"
	CellMotorCommand  = "motor.command"
	CellMotorReset    = "motor.reset"
)

// Status is the supervisor's published view of the mission, refreshed
// every thinker tick.
type Status struct {
	State      string // current phase ID, or FINISHED / FAULTED
	PhaseTicks uint64 // thinker ticks spent in the current state
	Advance    int64  // mean encoder advance since phase entry
	Retries    uint64 // line losses observed this run
	Bumps      uint64 // collision events consumed this run
	Fault      string // reason, set while FAULTED
}

// Outputs bundles the writer handles for every supervisor-owned share.
// They are declared before the subsystem tasks are built so each task
// can take its read view at construction while the thinker keeps the
// only writers.
type Outputs struct {
	Status        *share.CellWriter[Status]
	LineMode      *share.CellWriter[tasks.LineMode]
	LineBase      *share.CellWriter[float64]
	HeadingMode   *share.CellWriter[tasks.HeadingMode]
	HeadingTarget *share.CellWriter[tasks.HeadingCommand]
	BumpMode      *share.CellWriter[tasks.BumpMode]
	BumpAck       *share.CellWriter[uint64]
	MotorCommand  *share.CellWriter[tasks.EffortPair]
	MotorReset    *share.CellWriter[uint64]
}

// DeclareOutputs declares every supervisor-owned share on store.
func DeclareOutputs(store *share.Store) (*Outputs, error) {
	status, err := share.DeclareCell(store, CellMissionStatus, Status{})
	if err != nil {
		return nil, err
	}
	lineMode, err := share.DeclareCell(store, CellLineMode, tasks.LineOff)
	if err != nil {
		return nil, err
	}
	lineBase, err := share.DeclareCell(store, CellLineBase, 0.0)
	if err != nil {
		return nil, err
	}
	headingMode, err := share.DeclareCell(store, CellHeadingMode, tasks.HeadingOff)
	if err != nil {
		return nil, err
	}
	headingTarget, err := share.DeclareCell(store, CellHeadingTarget, tasks.HeadingCommand{})
	if err != nil {
		return nil, err
	}
	bumpMode, err := share.DeclareCell(store, CellBumpMode, tasks.BumpOff)
	if err != nil {
		return nil, err
	}
	bumpAck, err := share.DeclareCell(store, CellBumpAck, uint64(0))
	if err != nil {
		return nil, err
	}
	motorCommand, err := share.DeclareCell(store, CellMotorCommand, tasks.EffortPair{})
	if err != nil {
		return nil, err
	}
	motorReset, err := share.DeclareCell(store, CellMotorReset, uint64(0))
	if err != nil {
		return nil, err
	}
	return &Outputs{
		Status:        status,
		LineMode:      lineMode,
		LineBase:      lineBase,
		HeadingMode:   headingMode,
		HeadingTarget: headingTarget,
		BumpMode:      bumpMode,
		BumpAck:       bumpAck,
		MotorCommand:  motorCommand,
		MotorReset:    motorReset,
	}, nil
}
