/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package logquery retrieves log entries for a target service despite
// unknown or inconsistent label conventions on the log backend. It walks an
// ordered list of filter variations per service kind, widens the time
// window once when everything comes back empty, and reports every attempt
// so total failure is diagnosable rather than silent.
package logquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

const (
	// DefaultLookback is the initial query window.
	DefaultLookback = time.Hour
	// MaxLookback is the ceiling the window may be widened to.
	MaxLookback = 48 * time.Hour
)

// Attempt records one filter/window try and its outcome.
type Attempt struct {
	Variation string        `json:"variation"`
	Filter    string        `json:"filter"`
	Lookback  time.Duration `json:"lookback"`
	Entries   int           `json:"entries"`
	Error     string        `json:"error,omitempty"`
}

// Report is the result of a retrieval run. Exhausted reports that every
// filter variation and the widened window came back empty; that is a valid
// terminal outcome, not a crash.
type Report struct {
	Service    string        `json:"service"`
	Kind       Kind          `json:"kind"`
	Entries    []Entry       `json:"entries,omitempty"`
	FilterUsed int           `json:"filter_used,omitempty"` // 1-based index of the variation that hit
	Lookback   time.Duration `json:"lookback"`
	Attempts   []Attempt     `json:"attempts"`
	Exhausted  bool          `json:"exhausted"`
}

// ExhaustionSummary enumerates the attempted filters and windows for a
// retrieval run that found nothing.
func (r *Report) ExhaustionSummary() string {
	out := fmt.Sprintf("no logs found for %s service %q; attempted:", r.Kind, r.Service)
	for _, a := range r.Attempts {
		out += fmt.Sprintf("\n  - %s (window %s): ", a.Variation, a.Lookback)
		if a.Error != "" {
			out += "error: " + a.Error
		} else {
			out += fmt.Sprintf("%d entries", a.Entries)
		}
	}
	return out
}

// Retriever owns the filter-sequence and window-widening policy.
type Retriever struct {
	store       Store
	project     string
	lookback    time.Duration
	maxLookback time.Duration
	minSeverity Severity
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever) error

// WithLookback overrides the initial query window.
func WithLookback(d time.Duration) RetrieverOption {
	return func(r *Retriever) error {
		if d <= 0 || d > MaxLookback {
			return fmt.Errorf("lookback must be in (0, %s], got %s", MaxLookback, d)
		}
		r.lookback = d
		return nil
	}
}

// WithMinSeverity raises the severity floor above the default.
func WithMinSeverity(s Severity) RetrieverOption {
	return func(r *Retriever) error {
		r.minSeverity = s
		return nil
	}
}

// NewRetriever constructs a Retriever over the given store. The project is
// used by variations that filter on fully qualified log names.
func NewRetriever(store Store, project string, opts ...RetrieverOption) (*Retriever, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	r := &Retriever{
		store:       store,
		project:     project,
		lookback:    DefaultLookback,
		maxLookback: MaxLookback,
		minSeverity: SeverityDefault,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return r, nil
}

// Fetch runs the filter sequence for the service at the initial window and,
// if everything is empty, once more at the widened window. It stops at the
// first variation returning entries. An error is returned only when every
// attempt failed with a store error; empty results yield an exhausted
// Report instead.
func (r *Retriever) Fetch(ctx context.Context, service string, kind Kind) (*Report, error) {
	log := clog.FromContext(ctx)

	report := &Report{
		Service:  service,
		Kind:     kind,
		Lookback: r.lookback,
	}

	variations := Variations(kind, service, r.project)
	storeErrs := 0

	windows := []time.Duration{r.lookback}
	if r.maxLookback > r.lookback {
		windows = append(windows, r.maxLookback)
	}

	for _, lookback := range windows {
		for i, v := range variations {
			entries, err := r.store.Query(ctx, Query{
				Filter:      v.Filter,
				Lookback:    lookback,
				MinSeverity: r.minSeverity,
			})

			attempt := Attempt{
				Variation: v.Name,
				Filter:    v.Filter,
				Lookback:  lookback,
				Entries:   len(entries),
			}
			if err != nil {
				attempt.Error = err.Error()
				storeErrs++
				log.With("variation", v.Name).With("error", err).Warn("Log query failed")
			}
			report.Attempts = append(report.Attempts, attempt)

			if err == nil && len(entries) > 0 {
				log.With("variation", v.Name).
					With("entries", len(entries)).
					With("lookback", lookback).
					Info("Filter variation matched")
				report.Entries = entries
				report.FilterUsed = i + 1
				report.Lookback = lookback
				return report, nil
			}
		}
	}

	if storeErrs == len(report.Attempts) {
		return nil, fmt.Errorf("log store rejected every query for %s %q", kind, service)
	}

	log.With("service", service).With("kind", kind).
		With("attempts", len(report.Attempts)).
		Info("Log retrieval exhausted all filter variations")
	report.Exhausted = true
	report.Lookback = r.maxLookback
	return report, nil
}
