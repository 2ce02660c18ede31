package scopelock

import (
	"context"
	"sync"
	"testing"
)

func TestWithinScopeSerializesSameScope(t *testing.T) {
	locker := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithinScope(context.Background(), "cohort:physics", func(context.Context) error {
				counter++
				return nil
			})
			if err != nil {
				t.Errorf("within scope failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("serialized increments must not race, got %d", counter)
	}
}

func TestWithinScopeHonorsCanceledContext(t *testing.T) {
	locker := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := locker.WithinScope(ctx, "cohort:physics", func(context.Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatalf("a canceled context must surface before the critical section")
	}
	if ran {
		t.Fatalf("the critical section must not run after cancellation")
	}
}

func TestWithinScopeAllowsReentryAfterError(t *testing.T) {
	locker := New()
	sentinel := context.DeadlineExceeded

	if err := locker.WithinScope(context.Background(), "cohort:physics", func(context.Context) error {
		return sentinel
	}); err != sentinel {
		t.Fatalf("the callback error must pass through, got %v", err)
	}

	if err := locker.WithinScope(context.Background(), "cohort:physics", func(context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("the scope must unlock after a failed callback: %v", err)
	}
}
