// Package retry implements the bounded retry policy applied to external
// calls (artifact publish/fetch, release attach, distribution push).
//
// Transient failures (network errors, 5xx-class responses) are retried with
// exponential backoff up to a fixed attempt count. Terminal failures are
// never retried. There is deliberately no unbounded retry anywhere: the
// pipeline prefers surfacing a unit failure over hanging a run.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults applied when a Policy field is zero.
const (
	DefaultMaxAttempts = 3
	DefaultInitial     = 500 * time.Millisecond
	DefaultMultiplier  = 2.0
	DefaultMaxBackoff  = 10 * time.Second
)

// Policy bounds retry behavior for one class of external call.
type Policy struct {
	// MaxAttempts is the total attempt count (1 = no retries).
	MaxAttempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Multiplier grows the delay each attempt.
	Multiplier float64
	// Max caps the delay between attempts.
	Max time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Initial:     DefaultInitial,
		Multiplier:  DefaultMultiplier,
		Max:         DefaultMaxBackoff,
	}
}

// normalized fills zero fields with defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Initial <= 0 {
		p.Initial = DefaultInitial
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Max <= 0 {
		p.Max = DefaultMaxBackoff
	}
	return p
}

// terminalError marks an error as non-retriable.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so Do stops immediately instead of retrying.
// Use for failures where repetition cannot help (auth, 4xx responses).
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// Do runs op under the policy, sleeping with exponential backoff between
// attempts. Context cancellation stops retries immediately.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	delay := p.Initial

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.Multiplier)
			if delay > p.Max {
				delay = p.Max
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsTerminal(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
