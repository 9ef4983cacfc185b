// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package retry runs an operation under an explicit policy: a bounded retry
// budget with backoff, free retries that do not consume the budget (for
// throttling responses), and terminal errors that stop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Decision is what the policy does with a failed attempt.
type Decision int

const (
	// Stop returns the error as is.
	Stop Decision = iota
	// Retry consumes one unit of the budget and backs off.
	Retry
	// RetryFree waits and tries again without touching the budget.
	RetryFree
)

func (d Decision) String() string {
	switch d {
	case Stop:
		return "stop"
	case Retry:
		return "retry"
	case RetryFree:
		return "retry_free"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ErrExhausted wraps the last error once MaxRetries is used up.
var ErrExhausted = errors.New("retry budget exhausted")

const (
	DefaultMaxRetries = 10
	defaultFreeDelay  = time.Second
)

// Classifier maps an error to a decision and an optional explicit delay.
// A zero delay means "use the policy default".
type Classifier func(err error) (Decision, time.Duration)

// Event describes a retry about to happen.
type Event struct {
	Attempt  int
	Retries  int
	Decision Decision
	Delay    time.Duration
	Err      error
}

type Policy struct {
	MaxRetries int
	Backoff    func(retry int) time.Duration
	Classify   Classifier
	Clock      Clock
	OnRetry    func(Event)
}

// DefaultBackoff is 2^min(n,5) seconds.
func DefaultBackoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(1<<min(n, 5)) * time.Second
}

// RetryAll treats every error as retryable.
func RetryAll(error) (Decision, time.Duration) {
	return Retry, 0
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff == nil {
		p.Backoff = DefaultBackoff
	}
	if p.Classify == nil {
		p.Classify = RetryAll
	}
	if p.Clock == nil {
		p.Clock = RealClock
	}
	return p
}

// Do calls fn until it succeeds, the classifier says Stop, the budget runs out
// or ctx is done. Free retries are bounded only by ctx.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	retries := 0
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		decision, delay := p.Classify(err)
		switch decision {
		case Stop:
			return err
		case RetryFree:
			if delay <= 0 {
				delay = defaultFreeDelay
			}
		case Retry:
			if retries >= p.MaxRetries {
				return fmt.Errorf("%w after %d retries: %w", ErrExhausted, retries, err)
			}
			retries++
			if delay <= 0 {
				delay = p.Backoff(retries)
			}
		default:
			return err
		}

		if p.OnRetry != nil {
			p.OnRetry(Event{Attempt: attempt, Retries: retries, Decision: decision, Delay: delay, Err: err})
		}

		if err := p.Clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
