// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/agentreg/lib/clock"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
)

// RetryPolicy bounds the retries of idempotent store operations.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 mean 1.
	Attempts int

	// InitialDelay is the wait after the first failure. Each later
	// wait doubles, up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

// do runs fn until it succeeds, fails permanently, or the attempts
// run out. Only errors entrystore.IsTransient accepts are retried.
func (p RetryPolicy) do(ctx context.Context, clk clock.Clock, logger *slog.Logger, operation string, fn func() error) error {
	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !entrystore.IsTransient(err) || attempt >= p.Attempts {
			return err
		}

		logger.Warn("transient store failure, retrying",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
