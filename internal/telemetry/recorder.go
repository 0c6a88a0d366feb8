package telemetry

import (
	"context"
	"log"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
)

// Recorder drains a bus subscription into the store. It runs on its
// own goroutine, away from the control loop: the loop publishes
// without blocking and the recorder absorbs SQLite latency here.
//
// Store failures are logged and skipped rather than returned; losing a
// sample must never take the mission down with it.
type Recorder struct {
	store *Store

	runID string
	seq   int
	stats []scheduler.TaskStats
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Run consumes events until the subscription closes or ctx is
// cancelled. Events arriving before the run-started marker carry no
// run ID to file them under and are dropped.
func (r *Recorder) Run(ctx context.Context, sub <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, ev events.Event) {
	switch e := ev.(type) {
	case events.RunStartedEvent:
		r.runID = e.RunID
		r.seq = 0
		r.stats = nil
		if err := r.store.CreateRun(ctx, e.RunID, e.Course, e.Timestamp); err != nil {
			log.Printf("WARNING: recorder: %v", err)
		}

	case events.PhaseChangedEvent:
		if r.runID == "" {
			return
		}
		t := Transition{
			Seq:   r.seq,
			At:    e.Timestamp,
			From:  e.From,
			To:    e.To,
			Cause: e.Cause,
			Tick:  e.Tick,
		}
		r.seq++
		if err := r.store.AppendTransition(ctx, r.runID, t); err != nil {
			log.Printf("WARNING: recorder: %v", err)
		}

	case events.SnapshotEvent:
		if r.runID == "" {
			return
		}
		if len(e.Stats) > 0 {
			r.stats = e.Stats
		}
		if err := r.store.AppendSample(ctx, r.runID, sampleFrom(e)); err != nil {
			log.Printf("WARNING: recorder: %v", err)
		}

	case events.RunEndedEvent:
		if r.runID == "" {
			return
		}
		if len(r.stats) > 0 {
			if err := r.store.SaveTaskStats(ctx, r.runID, r.stats); err != nil {
				log.Printf("WARNING: recorder: %v", err)
			}
		}
		if err := r.store.EndRun(ctx, r.runID, e.Result, e.Ticks, e.Timestamp); err != nil {
			log.Printf("WARNING: recorder: %v", err)
		}
		r.runID = ""
	}
}

func sampleFrom(e events.SnapshotEvent) Sample {
	return Sample{
		Seq:           e.Seq,
		At:            e.Timestamp,
		Phase:         e.Phase,
		LineState:     e.Line.State.String(),
		LinePosition:  e.Line.Position,
		Heading:       e.Heading.Filtered,
		HeadingError:  e.Heading.Error,
		LeftEffort:    e.Motor.Applied.Left,
		RightEffort:   e.Motor.Applied.Right,
		LeftVelocity:  e.Velocity.Left,
		RightVelocity: e.Velocity.Right,
		LeftCounts:    e.Encoders.Left,
		RightCounts:   e.Encoders.Right,
	}
}
