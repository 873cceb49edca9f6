// Package retry provides the bounded linear retry policy used by the
// market data emission pipeline and other transient I/O paths.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultAttempts bounds each I/O step unless configured otherwise.
const DefaultAttempts = 3

// DefaultBaseDelay is the first retry delay; subsequent delays grow
// linearly with the attempt number.
const DefaultBaseDelay = 50 * time.Millisecond

// Linear is a backoff.BackOff whose delay after the k-th failure is
// base * k, stopping once maxAttempts tries have been consumed.
type Linear struct {
	base        time.Duration
	maxAttempts int
	attempt     int
}

var _ backoff.BackOff = (*Linear)(nil)

// NewLinear builds a linear policy for the given attempt budget.
func NewLinear(base time.Duration, maxAttempts int) *Linear {
	return &Linear{base: base, maxAttempts: maxAttempts}
}

// NextBackOff returns the delay before the next try, or backoff.Stop when
// the attempt budget is exhausted.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	if l.attempt >= l.maxAttempts {
		return backoff.Stop
	}
	return l.base * time.Duration(l.attempt)
}

// Reset rewinds the policy for reuse.
func (l *Linear) Reset() {
	l.attempt = 0
}

// Do invokes fn up to attempts times, sleeping base*k after the k-th
// failure. The last error is returned, wrapped with the operation name,
// once the budget is exhausted. A non-positive attempts value is a
// programmer error and panics.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, op string, fn func(context.Context) error) error {
	if attempts <= 0 {
		panic(fmt.Sprintf("retry: attempts must be positive, got %d", attempts))
	}

	policy := NewLinear(baseDelay, attempts)
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		sleep := policy.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, attempts, lastErr)
}
