package tasks

import (
	"errors"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// buttonQueueCap bounds pending start/stop presses. Presses older than
// the newest few are stale by definition, so overflow drops the oldest.
const buttonQueueCap = 4

// SensorPoll carries the driver boundary into the loop: each tick it
// reads every sensor once and publishes the snapshots to the raw shares
// all other tasks consume. It is the single writer of those shares, so
// within any one tick every consumer sees one coherent reading per
// sensor.
type SensorPoll struct {
	hw hw.Hardware

	encoders *share.CellWriter[EncoderCounts]
	imu      *share.CellWriter[IMUSample]
	line     *share.CellWriter[[hw.LineSensorCount]float64]
	bumps    *share.CellWriter[[hw.BumpSwitchCount]bool]
	presses  *share.QueueWriter[time.Time]
	seq      *share.CellWriter[uint64]
	polls    uint64
}

// NewSensorPoll declares the raw sensor shares on store and returns the
// task. Every driver in hardware must be present.
func NewSensorPoll(store *share.Store, hardware hw.Hardware) (*SensorPoll, error) {
	switch {
	case hardware.Encoders == nil:
		return nil, errors.New("tasks: sensor poll needs an encoder driver")
	case hardware.IMU == nil:
		return nil, errors.New("tasks: sensor poll needs an IMU driver")
	case hardware.Line == nil:
		return nil, errors.New("tasks: sensor poll needs a line array driver")
	case hardware.Bumps == nil:
		return nil, errors.New("tasks: sensor poll needs a bump array driver")
	case hardware.Button == nil:
		return nil, errors.New("tasks: sensor poll needs a button driver")
	}

	encoders, err := share.DeclareCell(store, CellEncoders, EncoderCounts{})
	if err != nil {
		return nil, err
	}
	imu, err := share.DeclareCell(store, CellIMU, IMUSample{})
	if err != nil {
		return nil, err
	}
	line, err := share.DeclareCell(store, CellLineRaw, [hw.LineSensorCount]float64{})
	if err != nil {
		return nil, err
	}
	bumps, err := share.DeclareCell(store, CellBumpRaw, [hw.BumpSwitchCount]bool{})
	if err != nil {
		return nil, err
	}
	presses, err := share.DeclareQueue[time.Time](store, QueueButton, buttonQueueCap, share.DropOldest)
	if err != nil {
		return nil, err
	}
	seq, err := share.DeclareCell(store, CellSensorSeq, uint64(0))
	if err != nil {
		return nil, err
	}

	return &SensorPoll{
		hw:       hardware,
		encoders: encoders,
		imu:      imu,
		line:     line,
		bumps:    bumps,
		presses:  presses,
		seq:      seq,
	}, nil
}

// Tick reads every driver once and publishes the results.
func (t *SensorPoll) Tick(now time.Time) {
	left, right := t.hw.Encoders.Counts()
	t.encoders.Set(EncoderCounts{Left: left, Right: right})

	t.imu.Set(IMUSample{
		Ready:   t.hw.IMU.Ready(),
		Heading: t.hw.IMU.Heading(),
		Rate:    t.hw.IMU.AngularRate(),
	})

	t.line.Set(t.hw.Line.Read())
	t.bumps.Set(t.hw.Bumps.Pressed())

	if t.hw.Button.TakePress() {
		_ = t.presses.Push(now) // DropOldest never fails
	}

	// Poll counter last: a consumer that sees sequence n is guaranteed
	// every raw share above already reflects poll n.
	t.polls++
	t.seq.Set(t.polls)
}

// Encoders is the encoder snapshot share.
func (t *SensorPoll) Encoders() *share.Cell[EncoderCounts] { return t.encoders.Cell() }

// IMU is the inertial snapshot share.
func (t *SensorPoll) IMU() *share.Cell[IMUSample] { return t.imu.Cell() }

// Line is the reflectance snapshot share.
func (t *SensorPoll) Line() *share.Cell[[hw.LineSensorCount]float64] { return t.line.Cell() }

// Bumps is the bump switch snapshot share.
func (t *SensorPoll) Bumps() *share.Cell[[hw.BumpSwitchCount]bool] { return t.bumps.Cell() }

// Presses is the start/stop button press queue.
func (t *SensorPoll) Presses() *share.Queue[time.Time] { return t.presses.Queue() }

// Seq is the poll sequence share, incremented after every completed
// poll.
func (t *SensorPoll) Seq() *share.Cell[uint64] { return t.seq.Cell() }
