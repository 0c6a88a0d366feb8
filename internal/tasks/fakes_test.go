package tasks

import (
	"github.com/LucaSlade/ME405-Romulus/internal/hw"
)

// fakeMotor records driver calls for inspection.
type fakeMotor struct {
	left, right float64
	enabled     bool
	faulted     bool  // latched fault flag reported to the task
	reject      error // returned by the next SetEfforts when non-nil
	sets        int
}

func (m *fakeMotor) SetEfforts(left, right float64) error {
	if m.reject != nil {
		err := m.reject
		m.reject = nil
		return err
	}
	m.left, m.right = left, right
	m.sets++
	return nil
}

func (m *fakeMotor) Enable()     { m.enabled = true }
func (m *fakeMotor) Disable()    { m.enabled = false }
func (m *fakeMotor) Fault() bool { return m.faulted }

type fakeEncoders struct {
	left, right int64
}

func (e *fakeEncoders) Counts() (int64, int64) { return e.left, e.right }

type fakeLine struct {
	readings [hw.LineSensorCount]float64
}

func (l *fakeLine) Read() [hw.LineSensorCount]float64 { return l.readings }

type fakeIMU struct {
	ready         bool
	heading, rate float64
}

func (i *fakeIMU) Ready() bool          { return i.ready }
func (i *fakeIMU) Heading() float64     { return i.heading }
func (i *fakeIMU) AngularRate() float64 { return i.rate }

type fakeBumps struct {
	pressed [hw.BumpSwitchCount]bool
}

func (b *fakeBumps) Pressed() [hw.BumpSwitchCount]bool { return b.pressed }

// fakeButton latches a fixed number of presses.
type fakeButton struct {
	presses int
}

func (b *fakeButton) TakePress() bool {
	if b.presses > 0 {
		b.presses--
		return true
	}
	return false
}
