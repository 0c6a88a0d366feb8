// Package share provides the typed shared-state layer the control tasks use
// to exchange data: single-writer cells holding a latest value, and bounded
// FIFO queues for event streams. Nothing in this package locks; safety comes
// from the cooperative scheduler, which runs at most one task at a time and
// never preempts a task mid-update. Values must therefore only be touched
// from the control goroutine; observers on other goroutines get their data
// through the events bus, never by reading cells directly.
package share

import (
	"fmt"
	"sort"
)

// Store is the registry of every shared cell and queue in the system.
// All declarations happen once at wiring time, before the scheduler starts;
// the registry exists so diagnostics can enumerate what the tasks share.
type Store struct {
	entries map[string]describable
}

// describable is implemented by cells and queues for diagnostics.
type describable interface {
	describe() Description
}

// Description is a diagnostic snapshot of one cell or queue, used by the
// post-run report (the moral successor of task_share's show-all dump).
type Description struct {
	Name   string
	Kind   string // "cell" or "queue"
	Type   string
	Writes uint64 // cell Set count / queue push count
	Drops  uint64 // queue only: items discarded by the overflow policy
	Value  string // cell only: current value, formatted
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]describable)}
}

// register claims a name. Cells and queues share one namespace so diagnostics
// and config references stay unambiguous.
func (s *Store) register(name string, e describable) error {
	if name == "" {
		return fmt.Errorf("share: empty name")
	}
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("share: name %q already declared", name)
	}
	s.entries[name] = e
	return nil
}

// Names returns every declared name in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a diagnostic snapshot of every cell and queue, sorted by
// name. Must only be called from the control goroutine (or after the
// scheduler has stopped).
func (s *Store) Describe() []Description {
	descs := make([]Description, 0, len(s.entries))
	for _, name := range s.Names() {
		descs = append(descs, s.entries[name].describe())
	}
	return descs
}
