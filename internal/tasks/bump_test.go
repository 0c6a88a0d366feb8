package tasks

import (
	"testing"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

type bumpRig struct {
	task   *Bump
	raw    *share.CellWriter[[hw.BumpSwitchCount]bool]
	mode   *share.CellWriter[BumpMode]
	ack    *share.CellWriter[uint64]
	status *share.Cell[BumpStatus]
	events *share.Queue[BumpEvent]
}

func newBumpRig(t *testing.T) *bumpRig {
	t.Helper()
	store := share.NewStore()
	raw, err := share.DeclareCell(store, CellBumpRaw, [hw.BumpSwitchCount]bool{})
	if err != nil {
		t.Fatal(err)
	}
	mode, err := share.DeclareCell(store, "bump.mode", BumpOff)
	if err != nil {
		t.Fatal(err)
	}
	ack, err := share.DeclareCell(store, "bump.ack", uint64(0))
	if err != nil {
		t.Fatal(err)
	}
	task, err := NewBump(store, raw.Cell(), mode.Cell(), ack.Cell())
	if err != nil {
		t.Fatalf("NewBump: %v", err)
	}
	return &bumpRig{
		task:   task,
		raw:    raw,
		mode:   mode,
		ack:    ack,
		status: task.Status(),
		events: task.Events(),
	}
}

func TestBump_IdleWhileOff(t *testing.T) {
	r := newBumpRig(t)
	r.raw.Set([hw.BumpSwitchCount]bool{true, true, true, true, true, true})

	tick(r.task)
	if got := r.status.Get().State; got != BumpIdle {
		t.Fatalf("state = %v while off, want idle", got)
	}
	if _, ok := r.events.TryPop(); ok {
		t.Error("event enqueued while off")
	}
}

func TestBump_TriggerEnqueuesOneEvent(t *testing.T) {
	r := newBumpRig(t)
	r.mode.Set(BumpArm)
	tick(r.task) // Idle -> Armed

	r.raw.Set([hw.BumpSwitchCount]bool{false, true, false, false, false, false})
	tick(r.task)

	st := r.status.Get()
	if st.State != BumpTriggered {
		t.Fatalf("state = %v, want triggered", st.State)
	}
	if st.Events != 1 {
		t.Errorf("Events = %d, want 1", st.Events)
	}

	ev, ok := r.events.TryPop()
	if !ok {
		t.Fatal("no event enqueued")
	}
	if !ev.Left || ev.Right {
		t.Errorf("event sides = left %v right %v, want left only", ev.Left, ev.Right)
	}
	if !ev.Switches[1] {
		t.Error("event does not record the closed switch")
	}
}

// TestBump_TriggerIsIdempotent holds the switch closed and slams it
// again: no second event until the supervisor acknowledges.
func TestBump_TriggerIsIdempotent(t *testing.T) {
	r := newBumpRig(t)
	r.mode.Set(BumpArm)
	tick(r.task)

	r.raw.Set([hw.BumpSwitchCount]bool{true, false, false, false, false, false})
	tick(r.task)
	tick(r.task) // still closed
	r.raw.Set([hw.BumpSwitchCount]bool{})
	tick(r.task)
	r.raw.Set([hw.BumpSwitchCount]bool{true, false, false, false, false, false}) // second closure
	tick(r.task)

	if got := r.status.Get().Events; got != 1 {
		t.Fatalf("Events = %d before ack, want 1", got)
	}
	if _, ok := r.events.TryPop(); !ok {
		t.Fatal("first event missing")
	}
	if _, ok := r.events.TryPop(); ok {
		t.Fatal("second event enqueued before ack")
	}

	// Acknowledge: re-armed, the held closure triggers a fresh event.
	r.ack.Set(1)
	tick(r.task) // Triggered -> Armed
	tick(r.task) // Armed: closure observed
	if got := r.status.Get().Events; got != 2 {
		t.Fatalf("Events = %d after ack, want 2", got)
	}
}

func TestBump_RightClusterAttribution(t *testing.T) {
	r := newBumpRig(t)
	r.mode.Set(BumpArm)
	tick(r.task)

	r.raw.Set([hw.BumpSwitchCount]bool{false, false, false, false, true, false})
	tick(r.task)

	ev, ok := r.events.TryPop()
	if !ok {
		t.Fatal("no event enqueued")
	}
	if ev.Left || !ev.Right {
		t.Errorf("event sides = left %v right %v, want right only", ev.Left, ev.Right)
	}
}

func TestBump_ModeOffDisarmsAndResyncsAck(t *testing.T) {
	r := newBumpRig(t)
	r.mode.Set(BumpArm)
	tick(r.task)
	r.raw.Set([hw.BumpSwitchCount]bool{true, false, false, false, false, false})
	tick(r.task)
	if got := r.status.Get().State; got != BumpTriggered {
		t.Fatalf("state = %v, want triggered", got)
	}

	// Supervisor turns the task off and acks while it is off.
	r.mode.Set(BumpOff)
	r.ack.Set(1)
	r.raw.Set([hw.BumpSwitchCount]bool{})
	tick(r.task)
	if got := r.status.Get().State; got != BumpIdle {
		t.Fatalf("state = %v, want idle", got)
	}

	// Back on: the stale ack must not re-trigger anything by itself.
	r.mode.Set(BumpArm)
	tick(r.task)
	tick(r.task)
	if got := r.status.Get(); got.State != BumpArmed || got.Events != 1 {
		t.Fatalf("state = %v events = %d after re-arm, want armed/1", got.State, got.Events)
	}
}
