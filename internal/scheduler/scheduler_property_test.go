package scheduler

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Property: over any task set and any run length, dispatched deadlines
// form a non-decreasing sequence, and tasks sharing a deadline run in
// descending priority order (registration order for exact ties).
func TestProperty_DispatchOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "tasks")
		iterations := rapid.IntRange(1, 400).Draw(rt, "iterations")

		type spec struct {
			priority int
			period   time.Duration
			count    uint64 // dispatches seen so far
		}
		specs := make(map[string]*spec, n)

		start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
		clk := NewVirtualClock(start)
		s := New(clk)
		order := make(map[string]int, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("task-%d", i)
			sp := &spec{
				priority: rapid.IntRange(0, 4).Draw(rt, name+"-priority"),
				period:   time.Duration(rapid.IntRange(1, 6).Draw(rt, name+"-period")) * 10 * time.Millisecond,
			}
			specs[name] = sp
			order[name] = i
			if err := s.Register(name, sp.priority, sp.period, RoutineFunc(noop)); err != nil {
				t.Fatalf("Register(%q): %v", name, err)
			}
		}

		// The k-th dispatch of a task happens against deadline
		// start + k*period, so the full dispatch order can be checked
		// from names alone.
		var (
			seen         bool
			prevDeadline time.Time
			prevPriority int
			prevOrder    int
		)
		for i := 0; i < iterations; i++ {
			name, ok := s.RunOnce()
			if !ok {
				clk.Advance(10 * time.Millisecond)
				continue
			}
			sp := specs[name]
			deadline := start.Add(time.Duration(sp.count) * sp.period)
			sp.count++
			if !seen {
				seen = true
				prevDeadline, prevPriority, prevOrder = deadline, sp.priority, order[name]
				continue
			}

			if deadline.Before(prevDeadline) {
				t.Fatalf("dispatch %d (%s): deadline %v before previous %v",
					i, name, deadline, prevDeadline)
			}
			if deadline.Equal(prevDeadline) {
				if sp.priority > prevPriority {
					t.Fatalf("dispatch %d (%s): priority %d ran after priority %d at equal deadline",
						i, name, sp.priority, prevPriority)
				}
				if sp.priority == prevPriority && order[name] < prevOrder {
					t.Fatalf("dispatch %d (%s): registration order violated at equal deadline and priority",
						i, name)
				}
			}
			prevDeadline = deadline
			prevPriority = sp.priority
			prevOrder = order[name]
		}
	})
}
