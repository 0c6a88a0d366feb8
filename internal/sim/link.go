package sim

import (
	"context"
	"errors"
	"sync"
)

// ErrLinkDown is returned by Send while the link is scripted to fail.
var ErrLinkDown = errors.New("sim: link down")

// ErrLinkClosed is returned by Send after Close.
var ErrLinkClosed = errors.New("sim: link closed")

// Link is a loopback telemetry channel that records every frame. The
// uplink calls Send from its own goroutine, so unlike the plant's
// polling ports it is mutex-guarded. FailNext scripts outages for
// retry and breaker behavior.
type Link struct {
	mu       sync.Mutex
	frames   [][]byte
	failLeft int
	closed   bool
}

func NewLink() *Link { return &Link{} }

// Send implements hw.Link, copying the frame so callers may reuse
// their buffers.
func (l *Link) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	if l.failLeft > 0 {
		l.failLeft--
		return ErrLinkDown
	}
	l.frames = append(l.frames, append([]byte(nil), frame...))
	return nil
}

// Close implements hw.Link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// FailNext makes the next n sends return ErrLinkDown.
func (l *Link) FailNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLeft = n
}

// Frames returns a snapshot of everything sent so far.
func (l *Link) Frames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.frames))
	copy(out, l.frames)
	return out
}
