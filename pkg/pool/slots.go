package pool

import (
	"context"
	"fmt"
	"time"
)

// slot is one fixed position in the pool: a connection handle and a flag
// recording whether the handle is currently lent out.
type slot struct {
	handle Handle
	busy   bool
}

// Stats is a point-in-time snapshot of pool usage.
type Stats struct {
	Capacity int    `json:"capacity"`
	InUse    int    `json:"in_use"`
	Idle     int    `json:"idle"`
	State    string `json:"state"`
}

// Acquire borrows a handle from the pool. It fails fast when the pool is
// not open, then blocks on the admission permit until a handle is free or
// ctx is cancelled. The wait for the slot table lock afterwards is bounded
// by Config.SlotLockTimeout.
//
// Acquisition order across competing goroutines is not FIFO and the slot
// picked is the first free one by index, not round-robin.
func (p *Pool) Acquire(ctx context.Context) (Handle, error) {
	if err := p.usable(); err != nil {
		return nil, p.fail(err)
	}

	select {
	case <-p.permits:
	case <-ctx.Done():
		return nil, p.fail(ctx.Err())
	}

	if err := p.lockSlots(p.cfg.SlotLockTimeout); err != nil {
		p.permits <- struct{}{}
		return nil, p.fail(err)
	}

	// The state may have flipped while we were blocked on the permit.
	p.stateMu.RLock()
	open := p.state == StateOpen
	p.stateMu.RUnlock()
	if !open {
		p.unlockSlots()
		p.permits <- struct{}{}
		return nil, p.fail(ErrNotOpen)
	}

	for i := range p.slots {
		if !p.slots[i].busy {
			p.slots[i].busy = true
			h := p.slots[i].handle
			p.unlockSlots()
			return h, nil
		}
	}

	// A granted permit guarantees a free slot; reaching here is a defect.
	p.unlockSlots()
	p.permits <- struct{}{}
	return nil, p.fail(ErrNoFreeSlot)
}

// Release returns a borrowed handle to the pool. Handles are fungible:
// the handle is stored into the first busy slot, not necessarily the slot
// it came from. Releasing when nothing is checked out is rejected as an
// invariant violation rather than silently accepted.
func (p *Pool) Release(h Handle) error {
	if h == nil {
		return p.fail(ErrInvalidHandle)
	}
	p.stateMu.RLock()
	inited := p.inited
	p.stateMu.RUnlock()
	if !inited {
		return p.fail(ErrNotInitialized)
	}

	p.slotLock <- struct{}{}
	for i := range p.slots {
		if p.slots[i].busy {
			p.slots[i].handle = h
			p.slots[i].busy = false
			p.unlockSlots()
			p.permits <- struct{}{}
			return nil
		}
	}
	p.unlockSlots()
	return p.fail(ErrNoBusySlot)
}

// Ping probes a borrowed handle for liveness through the client library.
// The client reconnects a lost handle in place when it can; the pool
// itself never mutates its state here.
func (p *Pool) Ping(ctx context.Context, h Handle) error {
	if h == nil {
		return p.fail(ErrInvalidHandle)
	}
	p.stateMu.RLock()
	inited := p.inited
	p.stateMu.RUnlock()
	if !inited {
		return p.fail(ErrNotInitialized)
	}

	if err := p.client.Ping(ctx, h); err != nil {
		return p.fail(fmt.Errorf("%w: %v", ErrPingFailed, err))
	}
	return nil
}

// Stats returns a snapshot of the slot table. Grab it for diagnostics or
// an admin surface; by the time it is read it may already be stale.
func (p *Pool) Stats() Stats {
	st := Stats{Capacity: p.cfg.Capacity, State: p.State().String()}

	p.slotLock <- struct{}{}
	for i := range p.slots {
		if p.slots[i].busy {
			st.InUse++
		}
	}
	p.unlockSlots()

	st.Idle = st.Capacity - st.InUse
	return st
}

// usable is the fail-fast entry check shared by Acquire: the pool must be
// initialized, not fatally broken, and currently open.
func (p *Pool) usable() error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.fatal != nil {
		return p.fatal
	}
	if !p.inited {
		return ErrNotInitialized
	}
	if p.state != StateOpen {
		return ErrNotOpen
	}
	return nil
}

// lockSlots takes the slot table lock, giving up after timeout.
func (p *Pool) lockSlots(timeout time.Duration) error {
	select {
	case p.slotLock <- struct{}{}:
		return nil
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case p.slotLock <- struct{}{}:
		return nil
	case <-t.C:
		return ErrLockTimeout
	}
}

func (p *Pool) unlockSlots() {
	<-p.slotLock
}
