/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package trace

import (
	"context"
	"time"

	"github.com/opsleuth/opsleuth/agents/inference"
)

// Wrap returns a Provider that records every Generate call with the
// context's Recorder before passing the result through unchanged.
func Wrap(p inference.Provider) inference.Provider {
	return inference.Func(func(ctx context.Context, prompt string) (string, error) {
		r := &Record{
			ID:     newID(),
			Prompt: prompt,
			Start:  time.Now(),
		}
		resp, err := p.Generate(ctx, prompt)
		r.Response, r.Err, r.End = resp, err, time.Now()
		FromContext(ctx).Record(ctx, r)
		return resp, err
	})
}
