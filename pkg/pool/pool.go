package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dbpool/pkg/logger"
)

// State represents the pool lifecycle state. The zero value is StateClosed,
// so a pool that was never opened reports itself as closed.
type State int

const (
	// StateClosed means the pool was explicitly closed (or never opened);
	// no reconnect is expected until the next Open.
	StateClosed State = iota

	// StateOpen means normal operation; handles may be dispensed.
	StateOpen

	// StateLost means connectivity was lost without an explicit Close;
	// the caller should Open again.
	StateLost
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateLost:
		return "lost"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pool is a fixed-capacity pool of database connection handles. Construct
// it with New and pass the instance to every caller; there is no package
// level singleton, so tests and processes may run several independent pools.
type Pool struct {
	cfg    Config
	client Client
	log    *logger.Logger

	// stateMu guards state, inited and fatal. It is read-locked on the
	// hot path (Acquire state checks) and write-locked only by the rare
	// Open/Close/MarkLost transitions.
	stateMu sync.RWMutex
	state   State
	inited  bool
	fatal   error

	// slotLock serializes every read and write of the slot table. A
	// buffered channel is used instead of sync.Mutex so Acquire can
	// bound its wait.
	slotLock chan struct{}
	slots    []slot

	// permits is the counting permit gating admission. It starts full;
	// holding a handle means holding one permit.
	permits chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// New creates a pool with the given client capability and configuration.
// The pool starts closed; call Open to provision its handles.
func New(client Client, cfg Config) (*Pool, error) {
	if client == nil {
		return nil, fmt.Errorf("pool client must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:      cfg,
		client:   client,
		log:      logger.Get(),
		state:    StateClosed,
		slotLock: make(chan struct{}, 1),
		slots:    make([]slot, cfg.Capacity),
		permits:  make(chan struct{}, cfg.Capacity),
	}
	for i := 0; i < cfg.Capacity; i++ {
		p.permits <- struct{}{}
	}
	return p, nil
}

// Open provisions every slot and flips the pool to StateOpen. On the first
// call ever it also performs one-shot client library initialization; an
// initialization failure is permanent for the process.
//
// Provisioning is all-or-nothing: empty slots connect fresh, populated
// slots (a re-open) are liveness-pinged instead, and any single failure
// tears down every handle freshly connected by this attempt before the
// error is returned. Handles that predate this attempt are kept as-is.
func (p *Pool) Open(ctx context.Context, params ConnectParams) error {
	if err := p.initOnce(); err != nil {
		return p.fail(err)
	}

	p.slotLock <- struct{}{}
	defer func() { <-p.slotLock }()

	var fresh []int
	provisioned := false
	defer func() {
		if provisioned {
			return
		}
		for _, i := range fresh {
			p.client.Close(p.slots[i].handle)
			p.slots[i].handle = nil
		}
	}()

	for i := range p.slots {
		s := &p.slots[i]
		if s.handle == nil {
			h, err := p.client.Connect(ctx, params)
			if err != nil {
				return p.fail(fmt.Errorf("%w: slot %d: %v", ErrConnect, i, err))
			}
			s.handle = h
			fresh = append(fresh, i)
			p.log.DebugWith("slot connected", "slot", i)
		} else {
			// Reuse the previously created handle. The client pings it,
			// reconnecting in place when the server is reachable.
			if err := p.client.Ping(ctx, s.handle); err != nil {
				return p.fail(fmt.Errorf("%w: slot %d: %v", ErrReconnect, i, err))
			}
			p.log.DebugWith("slot reused", "slot", i)
		}
	}
	provisioned = true

	p.stateMu.Lock()
	p.state = StateOpen
	p.stateMu.Unlock()

	p.log.InfoWith("pool opened", "capacity", p.cfg.Capacity, "fresh", len(fresh))
	return nil
}

// Close flips the pool to StateClosed and blocks until every handle has
// been returned. It is idempotent; closing an already closed pool returns
// nil immediately. The underlying handles are NOT destroyed: they stay in
// their slots so a later Open can reuse them after a liveness check.
func (p *Pool) Close() error {
	p.stateMu.Lock()
	if !p.inited {
		p.stateMu.Unlock()
		return p.fail(ErrNotInitialized)
	}
	if p.state == StateClosed {
		p.stateMu.Unlock()
		return nil
	}
	// After this no new Acquire succeeds; in-flight acquirers past the
	// state check re-check under the slot lock and back out.
	p.state = StateClosed
	p.stateMu.Unlock()

	// Quiesce by claiming every permit. Each outstanding handle returns
	// one permit on Release, so this completes once no slot is busy.
	for i := 0; i < p.cfg.Capacity; i++ {
		<-p.permits
	}
	for i := 0; i < p.cfg.Capacity; i++ {
		p.permits <- struct{}{}
	}

	p.log.InfoWith("pool closed", "capacity", p.cfg.Capacity)
	return nil
}

// IsOpen reports whether the pool is currently dispensing handles. A pool
// that was never opened reports false.
func (p *Pool) IsOpen() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state == StateOpen
}

// IsClosed reports whether the pool was explicitly closed (or never
// opened). A pool in StateLost reports false from both IsOpen and
// IsClosed, which is the caller's cue to Open again.
func (p *Pool) IsClosed() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state == StateClosed
}

// MarkLost records that connectivity was lost without an explicit Close.
// Callers that observe persistent ping failures on borrowed handles may
// use it so other goroutines stop acquiring; Open moves the pool back to
// normal operation. Marking a closed pool has no effect.
func (p *Pool) MarkLost() {
	p.stateMu.Lock()
	if p.state == StateOpen {
		p.state = StateLost
		p.log.WarnWith("pool marked lost")
	}
	p.stateMu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pool) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// ThreadInit registers the calling goroutine with the client library.
// Every goroutine that uses the pool should call it first.
func (p *Pool) ThreadInit() { p.client.ThreadInit() }

// ThreadEnd deregisters the calling goroutine from the client library.
func (p *Pool) ThreadEnd() { p.client.ThreadEnd() }

// LastError returns a description of the most recent failure observed by
// any caller. It is last-write-wins across goroutines and therefore only
// reliable immediately after a failing call on the same goroutine; prefer
// the error values the operations return directly.
func (p *Pool) LastError() string {
	p.errMu.Lock()
	err := p.lastErr
	p.errMu.Unlock()
	if err != nil {
		return err.Error()
	}

	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if !p.inited {
		return ErrNotInitialized.Error()
	}
	if p.state != StateOpen {
		return ErrNotOpen.Error()
	}
	return "unknown error or no error"
}

// initOnce performs the one-shot client library initialization. Any
// failure is recorded as fatal and repeated on every later call.
func (p *Pool) initOnce() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.fatal != nil {
		return p.fatal
	}
	if p.inited {
		return nil
	}
	if err := p.client.Init(); err != nil {
		if errors.Is(err, ErrNotThreadSafe) {
			p.fatal = err
		} else {
			p.fatal = fmt.Errorf("%w: %v", ErrInitFailed, err)
		}
		return p.fatal
	}
	p.inited = true
	return nil
}

// fail records err as the pool-wide last error and returns it. Invariant
// violations are additionally logged at error level so they cannot pass
// unnoticed.
func (p *Pool) fail(err error) error {
	p.errMu.Lock()
	p.lastErr = err
	p.errMu.Unlock()

	if errors.Is(err, ErrNoFreeSlot) || errors.Is(err, ErrNoBusySlot) {
		p.log.ErrorWithErr("pool invariant violated", err)
	}
	return err
}
