package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock() *VirtualClock {
	return NewVirtualClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
}

func noop(time.Time) {}

func TestRegister_Validation(t *testing.T) {
	s := New(testClock())
	if err := s.Register("motor", 4, 25*time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatalf("valid registration failed: %v", err)
	}

	cases := []struct {
		label   string
		name    string
		period  time.Duration
		routine Routine
	}{
		{"empty name", "", time.Millisecond, RoutineFunc(noop)},
		{"duplicate name", "motor", time.Millisecond, RoutineFunc(noop)},
		{"zero period", "sensor", 0, RoutineFunc(noop)},
		{"negative period", "sensor", -time.Millisecond, RoutineFunc(noop)},
		{"nil routine", "sensor", time.Millisecond, nil},
	}
	for _, tc := range cases {
		if err := s.Register(tc.name, 1, tc.period, tc.routine); err == nil {
			t.Errorf("%s: registration succeeded, want error", tc.label)
		}
	}

	// Once the loop has started the table is fixed.
	s.RunOnce()
	if err := s.Register("late", 1, time.Millisecond, RoutineFunc(noop)); err == nil {
		t.Error("registration after start succeeded, want error")
	}
}

// TestRunOnce_PriorityOrder verifies the opening round: every deadline is
// armed to the same instant, so dispatch order is priority alone, highest
// value first, registration order breaking exact ties.
func TestRunOnce_PriorityOrder(t *testing.T) {
	s := New(testClock())
	// Registration order deliberately scrambled relative to priority.
	for _, reg := range []struct {
		name string
		pri  int
	}{
		{"imu", 1},
		{"motor", 4},
		{"bump", 3},
		{"mastermind", 3},
		{"line", 2},
	} {
		if err := s.Register(reg.name, reg.pri, 20*time.Millisecond, RoutineFunc(noop)); err != nil {
			t.Fatalf("Register(%q): %v", reg.name, err)
		}
	}

	want := []string{"motor", "bump", "mastermind", "line", "imu"}
	for i, w := range want {
		name, ok := s.RunOnce()
		if !ok {
			t.Fatalf("dispatch %d: nothing ran, want %q", i, w)
		}
		if name != w {
			t.Fatalf("dispatch %d: ran %q, want %q", i, name, w)
		}
	}
	if name, ok := s.RunOnce(); ok {
		t.Fatalf("extra dispatch of %q before any deadline elapsed", name)
	}
}

// TestRunOnce_DeadlineOrder verifies dispatch across differing periods:
// the earliest deadline runs first regardless of priority, and priority
// decides only between equal deadlines.
func TestRunOnce_DeadlineOrder(t *testing.T) {
	clk := testClock()
	s := New(clk)
	if err := s.Register("slow", 9, 30*time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("fast", 1, 10*time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatal(err)
	}

	var got []string
	for i := 0; i < 9; i++ {
		if name, ok := s.RunOnce(); ok {
			got = append(got, name)
			continue
		}
		clk.Advance(10 * time.Millisecond)
	}

	// t0: both due, slow wins on priority. Then fast at 10, 20; both due
	// again at 30 with slow first.
	want := []string{"slow", "fast", "fast", "fast", "slow", "fast"}
	if len(got) != len(want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatched %v, want %v", got, want)
		}
	}
}

func TestRunOnce_MissedDeadlineDiagnostic(t *testing.T) {
	clk := testClock()
	s := New(clk)
	if err := s.Register("line", 2, 10*time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatal(err)
	}

	s.RunOnce() // arms and dispatches at t0; next deadline t0+10ms

	// Stall the loop for 35ms: the task is now 3 periods behind and
	// catches up over repeated dispatches, counting each period it was
	// behind by.
	clk.Advance(35 * time.Millisecond)
	dispatches := 0
	for {
		if _, ok := s.RunOnce(); !ok {
			break
		}
		dispatches++
	}
	if dispatches != 3 {
		t.Errorf("catch-up dispatches = %d, want 3", dispatches)
	}

	st := s.Stats()[0]
	if st.Runs != 4 {
		t.Errorf("Runs = %d, want 4", st.Runs)
	}
	// Deadlines at 10 and 20 were both already past on their dispatch.
	if st.Missed != 2 {
		t.Errorf("Missed = %d, want 2", st.Missed)
	}
	if st.MaxLate != 25*time.Millisecond {
		t.Errorf("MaxLate = %v, want 25ms", st.MaxLate)
	}
}

func TestSuspendResume(t *testing.T) {
	clk := testClock()
	s := New(clk)
	ran := 0
	if err := s.Register("heading", 1, 10*time.Millisecond, RoutineFunc(func(time.Time) { ran++ })); err != nil {
		t.Fatal(err)
	}

	s.RunOnce()
	if err := s.Suspend("heading"); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	clk.Advance(100 * time.Millisecond)
	if name, ok := s.RunOnce(); ok {
		t.Fatalf("suspended task %q was dispatched", name)
	}
	if got := s.Stats()[0].State; got != TaskSuspended {
		t.Errorf("State = %v, want suspended", got)
	}

	// Resume re-arms the deadline at the current instant: the task runs
	// immediately and the 100ms gap is not charged as missed periods.
	if err := s.Resume("heading"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if name, ok := s.RunOnce(); !ok || name != "heading" {
		t.Fatalf("after resume: ran %q, %v; want heading", name, ok)
	}
	if _, ok := s.RunOnce(); ok {
		t.Error("task dispatched twice after resume without its period elapsing")
	}
	if got := s.Stats()[0].Missed; got != 0 {
		t.Errorf("Missed = %d after suspend/resume, want 0", got)
	}
	if ran != 2 {
		t.Errorf("routine ran %d times, want 2", ran)
	}

	if err := s.Suspend("nope"); err == nil {
		t.Error("Suspend of unknown task succeeded")
	}
	if err := s.Resume("nope"); err == nil {
		t.Error("Resume of unknown task succeeded")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	clk := testClock()
	s := New(clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	err := s.Register("mastermind", 3, 30*time.Millisecond, RoutineFunc(func(time.Time) {
		runs++
		if runs == 5 {
			cancel()
		}
	}))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if runs != 5 {
		t.Errorf("routine ran %d times before stop, want 5", runs)
	}
}

func TestRun_NoRunnableTasks(t *testing.T) {
	s := New(testClock())
	ctx := context.Background()
	if err := s.Run(ctx); !errors.Is(err, ErrNoRunnableTasks) {
		t.Fatalf("Run with empty table returned %v, want ErrNoRunnableTasks", err)
	}

	s = New(testClock())
	if err := s.Register("only", 1, time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatal(err)
	}
	if err := s.Suspend("only"); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); !errors.Is(err, ErrNoRunnableTasks) {
		t.Fatalf("Run with all tasks suspended returned %v, want ErrNoRunnableTasks", err)
	}
}

func TestStats_States(t *testing.T) {
	clk := testClock()
	s := New(clk)
	if err := s.Register("a", 1, 10*time.Millisecond, RoutineFunc(noop)); err != nil {
		t.Fatal(err)
	}

	if got := s.Stats()[0].State; got != TaskWaiting {
		t.Errorf("before start: State = %v, want waiting", got)
	}

	s.RunOnce() // arms and dispatches
	if got := s.Stats()[0].State; got != TaskWaiting {
		t.Errorf("after dispatch: State = %v, want waiting", got)
	}

	clk.Advance(10 * time.Millisecond)
	if got := s.Stats()[0].State; got != TaskReady {
		t.Errorf("deadline elapsed: State = %v, want ready", got)
	}
}

func TestTaskStateString(t *testing.T) {
	cases := []struct {
		state TaskState
		want  string
	}{
		{TaskWaiting, "waiting"},
		{TaskReady, "ready"},
		{TaskSuspended, "suspended"},
		{TaskState(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("TaskState(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
