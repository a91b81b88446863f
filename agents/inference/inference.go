/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package inference abstracts the language-model call behind a single
// Generate method: given a prompt, return text. Backends wrap their
// transport failures in ErrUnavailable so callers can treat the model as
// one opaque, possibly-unavailable capability.
package inference

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the inference backend could not produce a
// response (network failure, exhausted retries, empty completion).
var ErrUnavailable = errors.New("inference unavailable")

// Provider is the opaque inference capability.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to the Provider interface. Tests use this to
// script model responses.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate implements Provider.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
