package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
)

// PhaseSpan is one phase's dwell within a run, reconstructed from the
// transition log.
type PhaseSpan struct {
	Phase     string
	EnteredAt time.Time
	Duration  time.Duration
	Ticks     uint64 // supervisor ticks spent in the phase
	ExitCause string // machine event that left the phase; empty for the terminal state
}

// Report is the post-run digest: the run row, its phase timeline, the
// final scheduler statistics, and the sample count.
type Report struct {
	Run     Run
	Phases  []PhaseSpan
	Stats   []scheduler.TaskStats
	Samples int
}

// Missed sums the missed-deadline counts across all tasks.
func (r *Report) Missed() uint64 {
	var total uint64
	for _, st := range r.Stats {
		total += st.Missed
	}
	return total
}

// BuildReport assembles the digest for one run.
func BuildReport(ctx context.Context, store *Store, runID string) (*Report, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	transitions, err := store.Transitions(ctx, runID)
	if err != nil {
		return nil, err
	}

	stats, err := store.TaskStats(ctx, runID)
	if err != nil {
		return nil, err
	}

	samples, err := store.SampleCount(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &Report{
		Run:     *run,
		Phases:  phaseSpans(run, transitions),
		Stats:   stats,
		Samples: samples,
	}, nil
}

// phaseSpans folds the transition log into dwell spans. The first
// span opens at run start; each transition closes the previous span
// and opens the next; the terminal state's span closes at run end.
func phaseSpans(run *Run, transitions []Transition) []PhaseSpan {
	if len(transitions) == 0 {
		return nil
	}

	spans := make([]PhaseSpan, 0, len(transitions)+1)
	enteredAt := run.StartedAt
	var enteredTick uint64

	for _, t := range transitions {
		spans = append(spans, PhaseSpan{
			Phase:     t.From,
			EnteredAt: enteredAt,
			Duration:  t.At.Sub(enteredAt),
			Ticks:     t.Tick - enteredTick,
			ExitCause: t.Cause,
		})
		enteredAt = t.At
		enteredTick = t.Tick
	}

	last := transitions[len(transitions)-1]
	terminal := PhaseSpan{Phase: last.To, EnteredAt: enteredAt}
	if !run.EndedAt.IsZero() {
		terminal.Duration = run.EndedAt.Sub(enteredAt)
	}
	return append(spans, terminal)
}

// ResolveRunID maps an empty ID to the latest recorded run.
func ResolveRunID(ctx context.Context, store *Store, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	run, err := store.LatestRun(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving latest run: %w", err)
	}
	return run.ID, nil
}
