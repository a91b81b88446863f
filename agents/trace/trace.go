/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package trace records model interactions: the prompt that went in, the
// text that came back, and how long it took. A Recorder travels on the
// context so any code path that talks to the model is observable without
// threading a collaborator through every constructor.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/chainguard-dev/clog"
)

// Record is one completed model call.
type Record struct {
	ID       string    `json:"id"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response,omitempty"`
	Err      error     `json:"-"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Duration is the wall time of the call.
func (r *Record) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Recorder receives completed records.
type Recorder interface {
	Record(ctx context.Context, r *Record)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, r *Record)

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, r *Record) {
	f(ctx, r)
}

type recorderKey struct{}

// WithRecorder returns a context carrying the recorder.
func WithRecorder(ctx context.Context, rec Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// FromContext returns the context's recorder, or a default that logs a
// summary line per call.
func FromContext(ctx context.Context) Recorder {
	if rec, ok := ctx.Value(recorderKey{}).(Recorder); ok {
		return rec
	}
	return defaultRecorder
}

var defaultRecorder = RecorderFunc(func(ctx context.Context, r *Record) {
	log := clog.FromContext(ctx).With(
		"trace_id", r.ID,
		"duration_ms", r.Duration().Milliseconds(),
		"prompt_bytes", len(r.Prompt),
	)
	if r.Err != nil {
		log.Warnf("Model call failed: %v", r.Err)
		return
	}
	log.With("response_bytes", len(r.Response)).Info("Model call completed")
})

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
