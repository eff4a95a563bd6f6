package translator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestThrottle_BoundsInFlight(t *testing.T) {
	th := NewThrottle(2, 0)
	var inFlight, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Do(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("observed %d concurrent calls, limit is 2", peak)
	}
}

func TestThrottle_CancelledContextSkipsCall(t *testing.T) {
	th := NewThrottle(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := th.Do(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("fn must not run after cancellation")
	}
}

func TestThrottle_NilPassesThrough(t *testing.T) {
	var th *Throttle
	want := errors.New("boom")
	if err := th.Do(context.Background(), func() error { return want }); err != want {
		t.Errorf("expected fn error, got %v", err)
	}
}

func TestThrottle_RateLimit(t *testing.T) {
	th := NewThrottle(1, 50)
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := th.Do(context.Background(), func() error { return nil }); err != nil {
			t.Fatal(err)
		}
	}
	// burst of 1 at 50/s: three waits of ~20ms
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("rate limit not applied, elapsed %v", elapsed)
	}
}

func TestThrottle_WaitPastDeadline(t *testing.T) {
	th := NewThrottle(1, 0.01)
	if err := th.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatal(err)
	}

	// the next token is ~100s away, far beyond the deadline
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	called := false
	err := th.Do(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrThrottleDeadline) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got %v", err)
	}
	if called {
		t.Error("fn must not run when the wait would outlast the deadline")
	}
	if ctx.Err() != nil {
		t.Error("Do should fail fast instead of waiting for the deadline")
	}
}
