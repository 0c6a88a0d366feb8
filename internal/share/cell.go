package share

import "fmt"

// Cell is the read side of a single shared value. Any task may hold a *Cell
// and call Get; only the task holding the matching CellWriter can change it.
// Readers always observe the last fully written value: a write completes
// within the producer's dispatch, so no reader can see a torn update.
type Cell[T any] struct {
	name   string
	value  T
	writes uint64
}

// Get returns the most recently written value, or the initial value if the
// producer has not written yet.
func (c *Cell[T]) Get() T { return c.value }

// Name returns the cell's declared name.
func (c *Cell[T]) Name() string { return c.name }

// Writes returns how many times the producer has written the cell.
func (c *Cell[T]) Writes() uint64 { return c.writes }

func (c *Cell[T]) describe() Description {
	return Description{
		Name:   c.name,
		Kind:   "cell",
		Type:   fmt.Sprintf("%T", c.value),
		Writes: c.writes,
		Value:  fmt.Sprintf("%v", c.value),
	}
}

// CellWriter is the producer's handle for a cell. Exactly one writer exists
// per cell, created by DeclareCell, so the single-writer rule is enforced by
// construction rather than by convention.
type CellWriter[T any] struct {
	cell *Cell[T]
}

// Set replaces the cell's value.
func (w *CellWriter[T]) Set(v T) {
	w.cell.value = v
	w.cell.writes++
}

// Cell returns the read view to hand to consumer tasks.
func (w *CellWriter[T]) Cell() *Cell[T] { return w.cell }

// DeclareCell registers a named cell with an initial value and returns its
// sole writer handle. The wiring code keeps the writer for the producing
// task and distributes w.Cell() to consumers.
func DeclareCell[T any](s *Store, name string, initial T) (*CellWriter[T], error) {
	c := &Cell[T]{name: name, value: initial}
	if err := s.register(name, c); err != nil {
		return nil, err
	}
	return &CellWriter[T]{cell: c}, nil
}
