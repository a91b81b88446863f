/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package retry provides bounded exponential-backoff retries for calls to
// external collaborators (model inference, tracker APIs). Retries are always
// explicit and local to the component that owns the call.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config bounds the retry behavior for one class of call.
type Config struct {
	// Attempts is the number of retries after the initial call.
	// Zero disables retrying.
	Attempts int
	// BaseDelay is the first backoff duration; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// Jitter is the maximum random addition to each backoff.
	Jitter time.Duration
}

// DefaultConfig suits quota and rate-limit errors from inference backends,
// which tend to need longer recovery than ordinary transient failures.
func DefaultConfig() Config {
	return Config{
		Attempts:  5,
		BaseDelay: time.Second,
		MaxDelay:  time.Minute,
		Jitter:    500 * time.Millisecond,
	}
}

// Validate reports a configuration with negative bounds.
func (c Config) Validate() error {
	switch {
	case c.Attempts < 0:
		return errors.New("attempts cannot be negative")
	case c.BaseDelay < 0:
		return errors.New("base delay cannot be negative")
	case c.MaxDelay < 0:
		return errors.New("max delay cannot be negative")
	case c.Jitter < 0:
		return errors.New("jitter cannot be negative")
	}
	return nil
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. retryable classifies which errors are worth
// another attempt; everything else is returned immediately.
func Do[T any](ctx context.Context, cfg Config, operation string, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var (
		out     T
		lastErr error
	)

	for attempt := 0; attempt <= cfg.Attempts; attempt++ {
		out, lastErr = fn()
		if lastErr == nil {
			return out, nil
		}
		if !retryable(lastErr) || attempt >= cfg.Attempts {
			break
		}

		delay := min(cfg.BaseDelay<<attempt, cfg.MaxDelay)
		delay += jitter(cfg.Jitter)

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_attempts", cfg.Attempts).
			With("delay", delay).
			With("error", lastErr.Error()).
			Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr != nil && retryable(lastErr) {
		return out, fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.Attempts+1, lastErr)
	}
	return out, lastErr
}

// jitter returns a uniform random duration in [0, max).
func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
