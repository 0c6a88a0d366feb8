package tasks

import (
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// bumpQueueCap bounds pending collision events. The task stops pushing
// the moment it latches Triggered, so the queue only ever fills if the
// supervisor re-arms without draining it; rejecting the extra push keeps
// the oldest, still-unhandled events.
const bumpQueueCap = 4

// Bump watches the debounced bump switches. While Armed, any closure
// enqueues one collision event, sets the Triggered status, and latches:
// further closures are ignored until the supervisor acknowledges by
// changing the ack counter share, which re-arms the task.
type Bump struct {
	raw  *share.Cell[[hw.BumpSwitchCount]bool]
	mode *share.Cell[BumpMode]
	ack  *share.Cell[uint64]

	status *share.CellWriter[BumpStatus]
	events *share.QueueWriter[BumpEvent]

	state   BumpState
	lastAck uint64
	count   uint64
}

// NewBump declares the bump status share and event queue and returns
// the task. The raw share belongs to the sensor poll task, mode and ack
// to the mission supervisor.
func NewBump(store *share.Store, raw *share.Cell[[hw.BumpSwitchCount]bool], mode *share.Cell[BumpMode], ack *share.Cell[uint64]) (*Bump, error) {
	status, err := share.DeclareCell(store, CellBumpStatus, BumpStatus{})
	if err != nil {
		return nil, err
	}
	events, err := share.DeclareQueue[BumpEvent](store, QueueBumpEvents, bumpQueueCap, share.Reject)
	if err != nil {
		return nil, err
	}
	return &Bump{
		raw:     raw,
		mode:    mode,
		ack:     ack,
		status:  status,
		events:  events,
		lastAck: ack.Get(),
	}, nil
}

// Tick advances the state machine one step and republishes status.
func (t *Bump) Tick(now time.Time) {
	if t.mode.Get() == BumpOff {
		t.state = BumpIdle
		t.lastAck = t.ack.Get()
	} else {
		switch t.state {
		case BumpIdle:
			t.state = BumpArmed

		case BumpArmed:
			if ev, hit := t.sample(now); hit {
				_ = t.events.Push(ev)
				t.count++
				t.state = BumpTriggered
			}

		case BumpTriggered:
			if a := t.ack.Get(); a != t.lastAck {
				t.lastAck = a
				t.state = BumpArmed
			}
		}
	}

	t.status.Set(BumpStatus{State: t.state, Events: t.count})
}

// sample reads the switch snapshot and builds an event if any switch is
// closed.
func (t *Bump) sample(now time.Time) (BumpEvent, bool) {
	pressed := t.raw.Get()
	ev := BumpEvent{At: now, Switches: pressed}
	for i, p := range pressed {
		if !p {
			continue
		}
		if i < hw.BumpSwitchCount/2 {
			ev.Left = true
		} else {
			ev.Right = true
		}
	}
	return ev, ev.Left || ev.Right
}

// Events is the collision event queue.
func (t *Bump) Events() *share.Queue[BumpEvent] { return t.events.Queue() }

// Status is the bump status share.
func (t *Bump) Status() *share.Cell[BumpStatus] { return t.status.Cell() }
