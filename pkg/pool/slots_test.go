package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAcquireRelease(t *testing.T) {
	p, _ := newTestPool(t, 2)
	mustOpen(t, p)

	h1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	h2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h1 == h2 {
		t.Error("Two outstanding acquires must return distinct handles")
	}

	if err := p.Release(h1); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if err := p.Release(h2); err != nil {
		t.Errorf("Release failed: %v", err)
	}

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestHandlesAreFungible(t *testing.T) {
	p, _ := newTestPool(t, 2)
	mustOpen(t, p)

	h1, _ := p.Acquire(context.Background())
	h2, _ := p.Acquire(context.Background())

	// Returning h2 first parks it in the first busy slot; the next
	// acquire hands it straight back out.
	if err := p.Release(h2); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	h3, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h3 != h2 {
		t.Error("First free slot should hold the most recently released handle")
	}

	p.Release(h1)
	p.Release(h3)
}

func TestReleaseInvalid(t *testing.T) {
	p, _ := newTestPool(t, 2)
	mustOpen(t, p)

	if err := p.Release(nil); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Release(nil) should fail with ErrInvalidHandle, got %v", err)
	}

	// Nothing is checked out; a release is an invariant violation, not a no-op.
	if err := p.Release(&fakeConn{id: 99}); !errors.Is(err, ErrNoBusySlot) {
		t.Errorf("Release with no busy slot should fail with ErrNoBusySlot, got %v", err)
	}
}

func TestPing(t *testing.T) {
	p, client := newTestPool(t, 2)
	mustOpen(t, p)

	h, _ := p.Acquire(context.Background())
	if err := p.Ping(context.Background(), h); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	client.mu.Lock()
	client.pingErr = errors.New("server gone")
	client.mu.Unlock()

	if err := p.Ping(context.Background(), h); !errors.Is(err, ErrPingFailed) {
		t.Errorf("Ping should fail with ErrPingFailed, got %v", err)
	}
	if err := p.Ping(context.Background(), nil); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Ping(nil) should fail with ErrInvalidHandle, got %v", err)
	}

	// A failed ping never flips the pool state by itself.
	if !p.IsOpen() {
		t.Error("Pool must stay open after a failed ping")
	}
	p.Release(h)
}

func TestAcquireContextCancel(t *testing.T) {
	p, _ := newTestPool(t, 1)
	mustOpen(t, p)

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire should fail with the context error, got %v", err)
	}

	// Cancellation must not leak the permit.
	if err := p.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire after cancel+release failed: %v", err)
	}
}

func TestSlotLockTimeout(t *testing.T) {
	client := &fakeClient{}
	p, err := New(client, Config{Capacity: 2, SlotLockTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mustOpen(t, p)

	// Hold the slot table lock so Acquire times out after its permit.
	p.slotLock <- struct{}{}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Acquire should fail with ErrLockTimeout, got %v", err)
	}
	<-p.slotLock

	// The permit taken before the timeout must have been returned.
	if len(p.permits) != 2 {
		t.Errorf("Expected 2 free permits after the timeout, got %d", len(p.permits))
	}
}

func TestBoundedConcurrency(t *testing.T) {
	const capacity, extra = 4, 3
	client := &fakeClient{}
	p, err := New(client, Config{Capacity: capacity, SlotLockTimeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mustOpen(t, p)

	var acquired int32
	handles := make(chan Handle, capacity+extra)
	for i := 0; i < capacity+extra; i++ {
		go func() {
			h, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			atomic.AddInt32(&acquired, 1)
			handles <- h
		}()
	}

	waitFor(t, time.Second, "capacity acquires", func() bool {
		return atomic.LoadInt32(&acquired) == capacity
	})

	// The remaining callers stay blocked while the pool is exhausted.
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&acquired); got != capacity {
		t.Fatalf("Expected exactly %d acquires while exhausted, got %d", capacity, got)
	}

	// Each release lets exactly one blocked caller through.
	for i := 0; i < extra; i++ {
		if err := p.Release(<-handles); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}
	waitFor(t, time.Second, "blocked acquires to complete", func() bool {
		return atomic.LoadInt32(&acquired) == capacity+extra
	})

	for i := 0; i < capacity; i++ {
		p.Release(<-handles)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity, workers, rounds = 3, 12, 25
	client := &fakeClient{}
	p, err := New(client, Config{Capacity: capacity, SlotLockTimeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mustOpen(t, p)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				h, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				n := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				atomic.AddInt32(&inFlight, -1)
				if err := p.Release(h); err != nil {
					t.Errorf("Release failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > capacity {
		t.Errorf("Outstanding handles peaked at %d, capacity is %d", got, capacity)
	}
}

func TestCloseQuiesces(t *testing.T) {
	const capacity = 3
	client := &fakeClient{}
	p, err := New(client, Config{Capacity: capacity, SlotLockTimeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mustOpen(t, p)

	handles := make([]Handle, capacity)
	for i := range handles {
		if handles[i], err = p.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()

	// Close flips the state immediately, then blocks on quiescence.
	waitFor(t, time.Second, "state flip", func() bool { return p.IsClosed() })
	select {
	case err := <-closed:
		t.Fatalf("Close returned before quiescence: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// New acquires are refused while Close is draining.
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Acquire during Close should fail with ErrNotOpen, got %v", err)
	}

	for _, h := range handles {
		if err := p.Release(h); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the last release")
	}

	// Quiescence left every permit in place for the next Open.
	if len(p.permits) != capacity {
		t.Errorf("Expected %d free permits after Close, got %d", capacity, len(p.permits))
	}
}

func TestEightHandleScenario(t *testing.T) {
	p, _ := newTestPool(t, 8)
	mustOpen(t, p)

	seen := make(map[Handle]bool)
	handles := make([]Handle, 8)
	for i := range handles {
		h, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		if seen[h] {
			t.Fatalf("Acquire %d returned a handle already outstanding", i)
		}
		seen[h] = true
		handles[i] = h
	}

	ninth := make(chan Handle, 1)
	go func() {
		h, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("Ninth Acquire failed: %v", err)
		}
		ninth <- h
	}()

	select {
	case <-ninth:
		t.Fatal("Ninth Acquire should block while all 8 handles are out")
	case <-time.After(50 * time.Millisecond):
	}

	if err := p.Release(handles[3]); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case h := <-ninth:
		if h == nil {
			t.Fatal("Ninth Acquire returned a nil handle")
		}
		p.Release(h)
	case <-time.After(time.Second):
		t.Fatal("Ninth Acquire did not unblock after a release")
	}

	for i, h := range handles {
		if i != 3 {
			p.Release(h)
		}
	}
}

func TestStats(t *testing.T) {
	p, _ := newTestPool(t, 4)
	mustOpen(t, p)

	h1, _ := p.Acquire(context.Background())
	h2, _ := p.Acquire(context.Background())

	st := p.Stats()
	if st.Capacity != 4 || st.InUse != 2 || st.Idle != 2 {
		t.Errorf("Unexpected stats: %+v", st)
	}
	if st.State != "open" {
		t.Errorf("Expected state open, got %s", st.State)
	}

	p.Release(h1)
	p.Release(h2)

	st = p.Stats()
	if st.InUse != 0 || st.Idle != 4 {
		t.Errorf("Unexpected stats after release: %+v", st)
	}
}
