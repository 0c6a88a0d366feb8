package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/hw"
)

// UplinkOptions configures retry and buffering for the radio sender.
type UplinkOptions struct {
	OutboxSize      int           // frames buffered between send attempts
	BreakerFailures uint32        // consecutive failures before the breaker opens
	BreakerCooldown time.Duration // how long the breaker stays open before testing recovery
	RetryInitial    time.Duration // first retry interval
	RetryMax        time.Duration // retry interval ceiling
	MaxRetries      uint64        // attempts per frame before it is abandoned
}

// DefaultUplinkOptions returns the default uplink configuration.
func DefaultUplinkOptions() UplinkOptions {
	return UplinkOptions{
		OutboxSize:      64,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		RetryInitial:    200 * time.Millisecond,
		RetryMax:        5 * time.Second,
		MaxRetries:      4,
	}
}

// Uplink streams selected events over the radio link as JSON lines.
// The control loop never blocks on the radio: frames pass through a
// bounded outbox that drops the oldest on overflow, and a circuit
// breaker stops hammering a link that is down.
type Uplink struct {
	link    hw.Link
	opts    UplinkOptions
	breaker *gobreaker.CircuitBreaker
	outbox  chan []byte

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewUplink creates an uplink over link. Zero-value options fall back
// to the defaults field by field.
func NewUplink(link hw.Link, opts UplinkOptions) *Uplink {
	def := DefaultUplinkOptions()
	if opts.OutboxSize < 1 {
		opts.OutboxSize = def.OutboxSize
	}
	if opts.BreakerFailures < 1 {
		opts.BreakerFailures = def.BreakerFailures
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = def.BreakerCooldown
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = def.RetryInitial
	}
	if opts.RetryMax < opts.RetryInitial {
		opts.RetryMax = def.RetryMax
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "uplink",
		MaxRequests: 3, // test requests allowed in half-open state
		Interval:    0, // don't clear counts automatically
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Don't count shutdown as a link failure.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	return &Uplink{
		link:    link,
		opts:    opts,
		breaker: breaker,
		outbox:  make(chan []byte, opts.OutboxSize),
	}
}

// Sent returns how many frames reached the link.
func (u *Uplink) Sent() uint64 { return u.sent.Load() }

// Dropped returns how many frames were discarded: outbox overflow plus
// frames abandoned after the retry budget.
func (u *Uplink) Dropped() uint64 { return u.dropped.Load() }

// Run pumps the subscription through the outbox and onto the link
// until the subscription closes or ctx is cancelled. The link is
// closed on the way out.
func (u *Uplink) Run(ctx context.Context, sub <-chan events.Event) error {
	defer u.link.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return u.pump(ctx, sub) })
	g.Go(func() error { return u.drain(ctx) })
	return g.Wait()
}

// pump encodes events into the outbox. Closing the outbox is the
// drain goroutine's signal to flush and exit.
func (u *Uplink) pump(ctx context.Context, sub <-chan events.Event) error {
	defer close(u.outbox)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			frame, ok := encodeFrame(ev)
			if !ok {
				continue
			}
			u.offer(frame)
		}
	}
}

// offer queues one frame, evicting the oldest when the outbox is full.
func (u *Uplink) offer(frame []byte) {
	select {
	case u.outbox <- frame:
		return
	default:
	}

	select {
	case <-u.outbox:
		u.dropped.Add(1)
	default:
	}

	select {
	case u.outbox <- frame:
	default:
		u.dropped.Add(1)
	}
}

func (u *Uplink) drain(ctx context.Context) error {
	for frame := range u.outbox {
		if err := u.send(ctx, frame); err != nil {
			u.dropped.Add(1)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		u.sent.Add(1)
	}
	return nil
}

// send pushes one frame through the circuit breaker with exponential
// backoff. An open breaker or cancelled context stops the retries.
func (u *Uplink) send(ctx context.Context, frame []byte) error {
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := u.breaker.Execute(func() (interface{}, error) {
			return nil, u.link.Send(ctx, frame)
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = u.opts.RetryInitial
	policy.MaxInterval = u.opts.RetryMax
	policy.MaxElapsedTime = 0 // bounded by the retry count instead

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, u.opts.MaxRetries), ctx))
}

// Wire frames. One JSON object per line; every frame carries its type
// and a millisecond timestamp, the rest varies by type.
type frameHeader struct {
	Type string `json:"type"`
	AtMS int64  `json:"at_ms"`
}

type snapshotFrame struct {
	frameHeader
	Seq           uint64  `json:"seq"`
	Phase         string  `json:"phase"`
	LineState     string  `json:"line_state"`
	LinePosition  float64 `json:"line_pos"`
	Heading       float64 `json:"heading"`
	HeadingError  float64 `json:"heading_err"`
	LeftEffort    float64 `json:"left"`
	RightEffort   float64 `json:"right"`
	LeftVelocity  float64 `json:"vl"`
	RightVelocity float64 `json:"vr"`
}

type phaseFrame struct {
	frameHeader
	From  string `json:"from"`
	To    string `json:"to"`
	Cause string `json:"cause"`
	Tick  uint64 `json:"tick"`
}

type missionEndFrame struct {
	frameHeader
	Course string `json:"course,omitempty"`
	Phase  string `json:"phase,omitempty"`
	Reason string `json:"reason,omitempty"`
	Ticks  uint64 `json:"ticks,omitempty"`
}

type bumpFrame struct {
	frameHeader
	Phase string `json:"phase"`
	Left  bool   `json:"left"`
	Right bool   `json:"right"`
}

type deadlineFrame struct {
	frameHeader
	Task   string `json:"task"`
	Missed uint64 `json:"missed"`
	LateUS int64  `json:"late_us"`
}

// encodeFrame picks the events worth radio bandwidth and flattens them.
// Everything else stays on the bus.
func encodeFrame(ev events.Event) ([]byte, bool) {
	header := frameHeader{Type: ev.EventType(), AtMS: ev.When().UnixMilli()}

	var payload any
	switch e := ev.(type) {
	case events.SnapshotEvent:
		payload = snapshotFrame{
			frameHeader:   header,
			Seq:           e.Seq,
			Phase:         e.Phase,
			LineState:     e.Line.State.String(),
			LinePosition:  e.Line.Position,
			Heading:       e.Heading.Filtered,
			HeadingError:  e.Heading.Error,
			LeftEffort:    e.Motor.Applied.Left,
			RightEffort:   e.Motor.Applied.Right,
			LeftVelocity:  e.Velocity.Left,
			RightVelocity: e.Velocity.Right,
		}
	case events.PhaseChangedEvent:
		payload = phaseFrame{frameHeader: header, From: e.From, To: e.To, Cause: e.Cause, Tick: e.Tick}
	case events.MissionFinishedEvent:
		payload = missionEndFrame{frameHeader: header, Course: e.Course, Ticks: e.Ticks}
	case events.MissionFaultedEvent:
		payload = missionEndFrame{frameHeader: header, Phase: e.Phase, Reason: e.Reason}
	case events.BumpDetectedEvent:
		payload = bumpFrame{frameHeader: header, Phase: e.Phase, Left: e.Left, Right: e.Right}
	case events.DeadlineMissedEvent:
		payload = deadlineFrame{frameHeader: header, Task: e.Task, Missed: e.Missed, LateUS: e.MaxLate.Microseconds()}
	default:
		return nil, false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return append(data, '\n'), true
}
