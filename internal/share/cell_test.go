package share

import "testing"

// TestCellLastWriteWins verifies a reader always observes the most recent
// completed write, starting from the initial value.
func TestCellLastWriteWins(t *testing.T) {
	s := NewStore()
	w, err := DeclareCell(s, "left_effort", 0.0)
	if err != nil {
		t.Fatalf("DeclareCell: %v", err)
	}
	c := w.Cell()

	if got := c.Get(); got != 0.0 {
		t.Errorf("initial value = %v, want 0", got)
	}

	for _, v := range []float64{15, -30, 99.5, 0} {
		w.Set(v)
		if got := c.Get(); got != v {
			t.Errorf("after Set(%v): Get() = %v", v, got)
		}
	}

	if got := c.Writes(); got != 4 {
		t.Errorf("Writes() = %d, want 4", got)
	}
}

// TestCellStructNotTorn verifies multi-field values are observed whole: a
// read after any Set returns exactly one written value, never a mix of two.
func TestCellStructNotTorn(t *testing.T) {
	type snapshot struct {
		Seq     uint64
		Heading float64
		Ready   bool
	}

	s := NewStore()
	w, err := DeclareCell(s, "imu", snapshot{})
	if err != nil {
		t.Fatalf("DeclareCell: %v", err)
	}
	c := w.Cell()

	writes := []snapshot{
		{Seq: 1, Heading: 90, Ready: false},
		{Seq: 2, Heading: 180.5, Ready: true},
		{Seq: 3, Heading: -45, Ready: true},
	}
	for _, want := range writes {
		w.Set(want)
		if got := c.Get(); got != want {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
	}
}

// TestDeclareCellDuplicate verifies the one-writer-per-name rule: a second
// declaration under the same name fails.
func TestDeclareCellDuplicate(t *testing.T) {
	s := NewStore()
	if _, err := DeclareCell(s, "heading", 0.0); err != nil {
		t.Fatalf("first declaration: %v", err)
	}
	if _, err := DeclareCell(s, "heading", 0.0); err == nil {
		t.Fatal("second declaration of \"heading\" did not fail")
	}
	// A queue may not reuse a cell name either.
	if _, err := DeclareQueue[int](s, "heading", 4, Reject); err == nil {
		t.Fatal("queue declaration reusing cell name did not fail")
	}
}

func TestDeclareCellEmptyName(t *testing.T) {
	s := NewStore()
	if _, err := DeclareCell(s, "", 0); err == nil {
		t.Fatal("empty name accepted")
	}
}

// TestStoreDescribe verifies the diagnostic dump covers all declarations in
// sorted order.
func TestStoreDescribe(t *testing.T) {
	s := NewStore()
	w, _ := DeclareCell(s, "speed", 15)
	w.Set(20)
	if _, err := DeclareQueue[string](s, "bumps", 8, DropOldest); err != nil {
		t.Fatalf("DeclareQueue: %v", err)
	}

	descs := s.Describe()
	if len(descs) != 2 {
		t.Fatalf("Describe() returned %d entries, want 2", len(descs))
	}
	if descs[0].Name != "bumps" || descs[0].Kind != "queue" {
		t.Errorf("descs[0] = %+v, want queue \"bumps\"", descs[0])
	}
	if descs[1].Name != "speed" || descs[1].Kind != "cell" || descs[1].Writes != 1 {
		t.Errorf("descs[1] = %+v, want cell \"speed\" with 1 write", descs[1])
	}
	if descs[1].Value != "20" {
		t.Errorf("descs[1].Value = %q, want \"20\"", descs[1].Value)
	}
}
