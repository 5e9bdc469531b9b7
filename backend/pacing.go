package backend

import (
	"context"
	"time"
)

// presentWaitTimeout bounds the wait on presentation feedback so a
// stalled or silent surface never deadlocks the render loop.
const presentWaitTimeout = 100 * time.Millisecond

// Pacer throttles frame production against presentation feedback.
// After a frame is handed to the surface, the next Wait blocks until
// the surface signals that it consumed a frame, keeping at most one
// frame in flight. Each presented frame is paid for by exactly one
// wait; repeated Wait calls without an intervening present return
// immediately.
//
// Pacer is confined to the renderer role and needs no locking.
type Pacer struct {
	signal   <-chan struct{}
	waitOwed bool
}

// NewPacer returns a pacer consuming the given feedback channel.
// A nil channel disables pacing entirely.
func NewPacer(signal <-chan struct{}) *Pacer {
	return &Pacer{signal: signal}
}

// NotifyPresented records that a frame was handed to the surface.
func (p *Pacer) NotifyPresented() {
	p.waitOwed = true
}

// Wait blocks until the surface is ready for another frame. The wait
// is bounded by presentWaitTimeout and by ctx; timing out is not an
// error, it only means the frame starts without feedback.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.waitOwed || p.signal == nil {
		return nil
	}
	p.waitOwed = false

	t := time.NewTimer(presentWaitTimeout)
	defer t.Stop()
	select {
	case <-p.signal:
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
