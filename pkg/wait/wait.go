// Package wait implements explicit-wait polling: a condition is checked at
// a fixed sub-second interval until it holds or the policy's timeout
// passes. Polling is synchronous; no goroutine outlives a call.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Defaults and bounds for Policy.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond

	MinTimeout  = 100 * time.Millisecond
	MaxTimeout  = 5 * time.Minute
	MaxInterval = time.Second
)

// ErrTimeout is returned by Until when the condition did not hold in time.
var ErrTimeout = errors.New("condition not met before timeout")

// Policy is a timeout plus polling interval.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultPolicy returns the 10s / 250ms policy.
func DefaultPolicy() Policy {
	return Policy{Timeout: DefaultTimeout, Interval: DefaultInterval}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	return p
}

// Validate checks the policy's bounds.
func (p Policy) Validate() error {
	if p.Timeout < MinTimeout || p.Timeout > MaxTimeout {
		return fmt.Errorf("wait timeout must be between %v and %v, got %v", MinTimeout, MaxTimeout, p.Timeout)
	}
	if p.Interval <= 0 || p.Interval >= MaxInterval {
		return fmt.Errorf("wait interval must be positive and below %v, got %v", MaxInterval, p.Interval)
	}
	if p.Interval >= p.Timeout {
		return fmt.Errorf("wait interval %v must be shorter than timeout %v", p.Interval, p.Timeout)
	}
	return nil
}

// Check reports whether a condition holds. A non-nil error aborts the
// wait: conditions return false, nil for "not yet".
type Check func(ctx context.Context) (bool, error)

// Until polls check until it returns true, returns an error, or the
// timeout elapses (ErrTimeout). The first check runs immediately and the
// last one runs at the deadline, so a condition that holds by then is
// never missed. Cancellation of ctx ends the wait with ctx's error.
func (p Policy) Until(ctx context.Context, check Check) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = p.WithDefaults()
	deadline := time.Now().Add(p.Timeout)

	// One token per interval; the initial token pays for the first check.
	limiter := rate.NewLimiter(rate.Every(p.Interval), 1)
	limiter.Reserve()

	for {
		ok, err := check(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		delay := limiter.Reserve().Delay()
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
