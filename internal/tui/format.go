package tui

import (
	"fmt"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
)

// formatEvent renders a discrete event as one log line. Snapshot frames
// are high-rate status, not log material, so they report false.
func formatEvent(ev events.Event) (string, bool) {
	ts := ev.When().Format("15:04:05.000")
	switch ev := ev.(type) {
	case events.SnapshotEvent:
		return "", false
	case events.PhaseChangedEvent:
		return fmt.Sprintf("%s  phase %s -> %s (%s)", ts, ev.From, ev.To, ev.Cause), true
	case events.MissionFinishedEvent:
		return fmt.Sprintf("%s  mission finished: %q in %d ticks", ts, ev.Course, ev.Ticks), true
	case events.MissionFaultedEvent:
		return fmt.Sprintf("%s  mission faulted in %s: %s", ts, ev.Phase, ev.Reason), true
	case events.BumpDetectedEvent:
		return fmt.Sprintf("%s  bump in %s (%s)", ts, ev.Phase, bumpSides(ev.Left, ev.Right)), true
	case events.LineLostEvent:
		return fmt.Sprintf("%s  line lost in %s (retry %d)", ts, ev.Phase, ev.Retries), true
	case events.LineFoundEvent:
		return fmt.Sprintf("%s  line reacquired in %s", ts, ev.Phase), true
	case events.TaskFaultedEvent:
		return fmt.Sprintf("%s  task %s faulted: %s", ts, ev.Task, ev.Reason), true
	case events.DeadlineMissedEvent:
		return fmt.Sprintf("%s  deadline missed: %s (%d total, worst %s)", ts, ev.Task, ev.Missed, ev.MaxLate), true
	case events.RunStartedEvent:
		return fmt.Sprintf("%s  run %s started: course %q", ts, shortID(ev.RunID), ev.Course), true
	case events.RunEndedEvent:
		return fmt.Sprintf("%s  run %s ended: %s after %d ticks", ts, shortID(ev.RunID), ev.Result, ev.Ticks), true
	default:
		return fmt.Sprintf("%s  %s", ts, ev.EventType()), true
	}
}

// bumpSides names the switch clusters that closed.
func bumpSides(left, right bool) string {
	switch {
	case left && right:
		return "left+right"
	case left:
		return "left"
	case right:
		return "right"
	default:
		return "unknown side"
	}
}

// shortID abbreviates a run UUID for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// operatorPressLine is the log line for a local start/stop keystroke.
func operatorPressLine() string {
	return fmt.Sprintf("%s  operator: start/stop pressed", time.Now().Format("15:04:05.000"))
}
