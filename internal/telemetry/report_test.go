package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
)

func TestBuildReport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	start := time.Date(2026, 5, 12, 14, 30, 0, 0, time.UTC)
	if err := store.CreateRun(ctx, "run-r", "romi-spring-final", start); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	transitions := []Transition{
		{Seq: 0, At: start.Add(2 * time.Second), From: "S0_STANDBY", To: "S1_LINE", Cause: "start", Tick: 66},
		{Seq: 1, At: start.Add(10 * time.Second), From: "S1_LINE", To: "S2_TURN", Cause: "advance", Tick: 333},
		{Seq: 2, At: start.Add(12 * time.Second), From: "S2_TURN", To: "FINISHED", Cause: "advance", Tick: 400},
	}
	for _, tr := range transitions {
		if err := store.AppendTransition(ctx, "run-r", tr); err != nil {
			t.Fatalf("failed to append transition: %v", err)
		}
	}

	for seq := uint64(0); seq < 5; seq++ {
		if err := store.AppendSample(ctx, "run-r", Sample{Seq: seq, At: start, Phase: "S1_LINE"}); err != nil {
			t.Fatalf("failed to append sample: %v", err)
		}
	}

	stats := []scheduler.TaskStats{
		{Name: "sensors", Priority: 5, Period: 10 * time.Millisecond, Runs: 1200, Missed: 2},
		{Name: "heading", Priority: 1, Period: 40 * time.Millisecond, Runs: 300, Missed: 1},
	}
	if err := store.SaveTaskStats(ctx, "run-r", stats); err != nil {
		t.Fatalf("failed to save stats: %v", err)
	}

	if err := store.EndRun(ctx, "run-r", "finished", 2400, start.Add(12*time.Second)); err != nil {
		t.Fatalf("failed to end run: %v", err)
	}

	report, err := BuildReport(ctx, store, "run-r")
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}

	if report.Run.Result != "finished" {
		t.Errorf("result = %q, want finished", report.Run.Result)
	}
	if report.Samples != 5 {
		t.Errorf("samples = %d, want 5", report.Samples)
	}
	if report.Missed() != 3 {
		t.Errorf("missed = %d, want 3", report.Missed())
	}

	// Three phases plus the terminal state.
	if len(report.Phases) != 4 {
		t.Fatalf("got %d phase spans, want 4", len(report.Phases))
	}
	standby := report.Phases[0]
	if standby.Phase != "S0_STANDBY" || standby.ExitCause != "start" {
		t.Errorf("first span = %+v, want S0_STANDBY left by start", standby)
	}
	if standby.Duration != 2*time.Second || standby.Ticks != 66 {
		t.Errorf("standby dwell = %v/%d ticks, want 2s/66", standby.Duration, standby.Ticks)
	}
	line := report.Phases[1]
	if line.Phase != "S1_LINE" || line.Ticks != 333-66 || line.Duration != 8*time.Second {
		t.Errorf("line span = %+v, want 8s and 267 ticks", line)
	}
	terminal := report.Phases[3]
	if terminal.Phase != "FINISHED" || terminal.ExitCause != "" {
		t.Errorf("terminal span = %+v, want FINISHED with no exit", terminal)
	}
}

func TestResolveRunID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	store.CreateRun(ctx, "old", "test", base)
	store.CreateRun(ctx, "new", "test", base.Add(time.Minute))

	id, err := ResolveRunID(ctx, store, "")
	if err != nil {
		t.Fatalf("failed to resolve empty id: %v", err)
	}
	if id != "new" {
		t.Errorf("resolved = %s, want new", id)
	}

	id, err = ResolveRunID(ctx, store, "old")
	if err != nil {
		t.Fatalf("failed to resolve explicit id: %v", err)
	}
	if id != "old" {
		t.Errorf("resolved = %s, want old", id)
	}
}

func TestResolveRunIDEmptyStore(t *testing.T) {
	store := testStore(t)

	if _, err := ResolveRunID(context.Background(), store, ""); err == nil {
		t.Fatal("expected error resolving latest run on an empty store")
	}
}
