package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "persist tick", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "publish tick", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsBudgetAndWrapsLastError(t *testing.T) {
	calls := 0
	boom := errors.New("redis gone")
	err := Do(context.Background(), 3, time.Millisecond, "publish tick", func(context.Context) error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish tick") {
		t.Fatalf("expected operation name in error, got %q", err.Error())
	}
}

func TestDoSingleAttemptDoesNotSleep(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), 1, time.Hour, "persist quote", func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("single-attempt failure should not sleep")
	}
}

func TestDoPanicsOnNonPositiveAttempts(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for attempts <= 0")
		}
	}()
	_ = Do(context.Background(), 0, time.Millisecond, "noop", func(context.Context) error { return nil })
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, 50*time.Millisecond, "persist tick", func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestLinearDelaysGrowWithAttemptNumber(t *testing.T) {
	policy := NewLinear(100*time.Millisecond, 4)

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, want := range expected {
		if got := policy.NextBackOff(); got != want {
			t.Fatalf("delay %d = %v, want %v", i+1, got, want)
		}
	}
	if got := policy.NextBackOff(); got != backoff.Stop {
		t.Fatalf("expected Stop after budget, got %v", got)
	}

	policy.Reset()
	if got := policy.NextBackOff(); got != 100*time.Millisecond {
		t.Fatalf("expected reset policy to restart at base, got %v", got)
	}
}
