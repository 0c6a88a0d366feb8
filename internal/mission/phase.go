// Package mission implements the supervisor that sequences the robot
// through a course: a table of phases validated into a directed acyclic
// graph, and a Thinker task that walks it, arming subsystem tasks and
// composing their proposals into the final motor command.
package mission

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
)

// PhaseKind selects the control recipe a phase runs and which guard
// completes it.
type PhaseKind string

const (
	// KindStandby waits for the operator's start signal with the
	// motors stopped. Every course has exactly one.
	KindStandby PhaseKind = "standby"
	// KindLineFollow routes the line task's proposal to the motors
	// until the encoder advance reaches DistanceTicks.
	KindLineFollow PhaseKind = "line_follow"
	// KindStraightDrive drives at BaseEffort, heading-held when the
	// IMU is ready, until the encoder advance reaches DistanceTicks.
	KindStraightDrive PhaseKind = "straight"
	// KindHeadingTurn rotates in place until the heading task settles
	// on the target.
	KindHeadingTurn PhaseKind = "turn"
	// KindLineUntilBump follows the line with the bump task armed; the
	// only way forward is a collision, which branches to OnBump.
	KindLineUntilBump PhaseKind = "line_until_bump"
	// KindReverse backs up at BaseEffort until the encoder advance
	// reaches DistanceTicks.
	KindReverse PhaseKind = "reverse"
	// KindDriveToFinish is a straight drive whose completion ends the
	// mission.
	KindDriveToFinish PhaseKind = "drive_to_finish"
)

// Reserved state IDs present in every mission machine in addition to
// the course phases. A phase may name FinishedState as its Next target;
// FaultedState is reached through a phase timeout or an external
// fault.
const (
	FinishedState = "FINISHED"
	FaultedState  = "FAULTED"
)

// Phase is one leg of a course.
type Phase struct {
	ID   string    `yaml:"id"`
	Kind PhaseKind `yaml:"kind"`

	// DistanceTicks completes distance-guarded kinds once the mean
	// encoder advance since phase entry reaches it.
	DistanceTicks int64 `yaml:"distance_ticks,omitempty"`

	// BaseEffort is the drive effort in percent. Always positive;
	// reverse legs apply it backward.
	BaseEffort float64 `yaml:"base_effort,omitempty"`

	// HeadingDeg is the turn target in degrees. Relative targets are
	// resolved against the filtered heading at phase entry.
	HeadingDeg      float64 `yaml:"heading_deg,omitempty"`
	HeadingRelative bool    `yaml:"heading_relative,omitempty"`

	// ToleranceDeg and SettleTicks override the heading task's
	// defaults for this turn when positive.
	ToleranceDeg float64 `yaml:"tolerance_deg,omitempty"`
	SettleTicks  int     `yaml:"settle_ticks,omitempty"`

	// TimeoutTicks faults the mission if the phase has not completed
	// within this many supervisor ticks. Zero waits forever.
	TimeoutTicks uint64 `yaml:"timeout_ticks,omitempty"`

	// Next is the phase entered when the completion guard fires. An
	// empty Next on the last leg means FINISHED.
	Next string `yaml:"next,omitempty"`

	// OnBump is the branch a line_until_bump phase takes on collision.
	OnBump string `yaml:"on_bump,omitempty"`
}

// distanceGuarded reports whether the phase completes on encoder
// advance.
func (p *Phase) distanceGuarded() bool {
	switch p.Kind {
	case KindLineFollow, KindStraightDrive, KindReverse, KindDriveToFinish:
		return true
	}
	return false
}

// driven reports whether the phase commands a nonzero base effort.
func (p *Phase) driven() bool {
	return p.Kind != KindStandby && p.Kind != KindHeadingTurn
}

// Course is a named sequence of phases forming the mission graph.
type Course struct {
	Name   string  `yaml:"name"`
	Phases []Phase `yaml:"phases"`
}

// Standby returns the course's entry phase. Valid only after Validate
// has passed.
func (c *Course) Standby() *Phase {
	for i := range c.Phases {
		if c.Phases[i].Kind == KindStandby {
			return &c.Phases[i]
		}
	}
	return nil
}

// Phase returns the phase with the given ID, or nil.
func (c *Course) Phase(id string) *Phase {
	for i := range c.Phases {
		if c.Phases[i].ID == id {
			return &c.Phases[i]
		}
	}
	return nil
}

// resolveNext maps an empty Next to the finished terminal.
func resolveNext(next string) string {
	if next == "" {
		return FinishedState
	}
	return next
}

// Validate checks the course table and proves the phase graph is a DAG
// with every phase reachable from standby and exactly one edge into
// FINISHED. It returns an error describing the first problem found.
func (c *Course) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mission: course has no name")
	}
	if len(c.Phases) == 0 {
		return fmt.Errorf("mission: course %q has no phases", c.Name)
	}

	byID := make(map[string]*Phase, len(c.Phases))
	standbys := 0
	for i := range c.Phases {
		p := &c.Phases[i]
		if p.ID == "" {
			return fmt.Errorf("mission: course %q: phase %d has no id", c.Name, i)
		}
		if p.ID == FinishedState || p.ID == FaultedState {
			return fmt.Errorf("mission: course %q: phase id %q is reserved", c.Name, p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("mission: course %q: duplicate phase id %q", c.Name, p.ID)
		}
		byID[p.ID] = p
		if p.Kind == KindStandby {
			standbys++
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("mission: course %q: phase %q: %w", c.Name, p.ID, err)
		}
	}
	if standbys != 1 {
		return fmt.Errorf("mission: course %q has %d standby phases, want exactly 1", c.Name, standbys)
	}

	// Every target must exist, and exactly one edge may enter the
	// finished terminal.
	finishEdges := 0
	for _, p := range c.Phases {
		for _, target := range p.targets() {
			if target == FinishedState {
				finishEdges++
				continue
			}
			if _, ok := byID[target]; !ok {
				return fmt.Errorf("mission: course %q: phase %q targets unknown phase %q", c.Name, p.ID, target)
			}
		}
	}
	if finishEdges != 1 {
		return fmt.Errorf("mission: course %q has %d edges into %s, want exactly 1", c.Name, finishEdges, FinishedState)
	}

	// Topological sort proves acyclicity.
	var edges []toposort.Edge
	for _, p := range c.Phases {
		edges = append(edges, toposort.Edge{nil, p.ID})
		for _, target := range p.targets() {
			if target != FinishedState {
				edges = append(edges, toposort.Edge{p.ID, target})
			}
		}
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("mission: course %q contains a cycle: %w", c.Name, err)
	}

	// Every phase must be reachable from standby.
	reached := map[string]bool{}
	frontier := []string{c.Standby().ID}
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, target := range byID[id].targets() {
			if target != FinishedState {
				frontier = append(frontier, target)
			}
		}
	}
	if len(reached) != len(c.Phases) {
		var missing []string
		for _, p := range c.Phases {
			if !reached[p.ID] {
				missing = append(missing, p.ID)
			}
		}
		return fmt.Errorf("mission: course %q: unreachable phases: %s", c.Name, strings.Join(missing, ", "))
	}

	return nil
}

// targets lists the phase's outgoing edges with Next resolution
// applied.
func (p *Phase) targets() []string {
	switch p.Kind {
	case KindLineUntilBump:
		return []string{p.OnBump}
	case KindStandby:
		return []string{p.Next}
	default:
		return []string{resolveNext(p.Next)}
	}
}

// validate checks the per-kind parameter requirements.
func (p *Phase) validate() error {
	if p.driven() {
		if p.BaseEffort <= 0 || p.BaseEffort > hw.EffortLimit {
			return fmt.Errorf("base effort %v outside (0, %v]", p.BaseEffort, hw.EffortLimit)
		}
	}
	switch p.Kind {
	case KindStandby:
		if p.Next == "" {
			return fmt.Errorf("standby phase needs a next target")
		}
	case KindLineFollow, KindStraightDrive, KindReverse, KindDriveToFinish:
		if p.DistanceTicks <= 0 {
			return fmt.Errorf("distance must be positive, got %d", p.DistanceTicks)
		}
	case KindHeadingTurn:
		if p.ToleranceDeg < 0 {
			return fmt.Errorf("tolerance must not be negative, got %v", p.ToleranceDeg)
		}
		if p.SettleTicks < 0 {
			return fmt.Errorf("settle ticks must not be negative, got %d", p.SettleTicks)
		}
	case KindLineUntilBump:
		if p.OnBump == "" {
			return fmt.Errorf("line-until-bump phase needs an on_bump target")
		}
		if p.Next != "" {
			return fmt.Errorf("line-until-bump phase exits only on collision, next %q is unreachable", p.Next)
		}
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	return nil
}

// DefaultCourse is the course the robot was tuned on: two line-follow
// legs separated by straight gaps, a turn onto the approach, line
// following into the wall, then back out, about face, and a straight
// run home.
func DefaultCourse() Course {
	return Course{
		Name: "romi-spring-final",
		Phases: []Phase{
			{ID: "S0_STANDBY", Kind: KindStandby, Next: "S1_LINE_FOLLOW_1"},
			{ID: "S1_LINE_FOLLOW_1", Kind: KindLineFollow, DistanceTicks: 5000, BaseEffort: 30, Next: "S2_STRAIGHT_DRIVE_1"},
			{ID: "S2_STRAIGHT_DRIVE_1", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S3_LINE_FOLLOW_2"},
			{ID: "S3_LINE_FOLLOW_2", Kind: KindLineFollow, DistanceTicks: 1000, BaseEffort: 30, Next: "S4_STRAIGHT_DRIVE_2"},
			{ID: "S4_STRAIGHT_DRIVE_2", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S5_HEADING_TURN_1"},
			{ID: "S5_HEADING_TURN_1", Kind: KindHeadingTurn, HeadingDeg: 50, Next: "S6_STRAIGHT_DRIVE_3"},
			{ID: "S6_STRAIGHT_DRIVE_3", Kind: KindStraightDrive, DistanceTicks: 1000, BaseEffort: 30, Next: "S7_LINE_FOLLOW_UNTIL_BUMP"},
			{ID: "S7_LINE_FOLLOW_UNTIL_BUMP", Kind: KindLineUntilBump, BaseEffort: 25, OnBump: "S8_REVERSE"},
			{ID: "S8_REVERSE", Kind: KindReverse, DistanceTicks: 600, BaseEffort: 30, Next: "S9_HEADING_TURN_2"},
			{ID: "S9_HEADING_TURN_2", Kind: KindHeadingTurn, HeadingDeg: 180, HeadingRelative: true, Next: "S10_DRIVE_TO_FINISH"},
			{ID: "S10_DRIVE_TO_FINISH", Kind: KindDriveToFinish, DistanceTicks: 1500, BaseEffort: 30},
		},
	}
}
