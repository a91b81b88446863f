/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package logquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeStore scripts per-filter results and records the queries it saw.
type fakeStore struct {
	results map[string][]Entry // keyed on substring of the filter
	errs    map[string]error
	queries []Query
}

func (f *fakeStore) Query(_ context.Context, q Query) ([]Entry, error) {
	f.queries = append(f.queries, q)
	for key, err := range f.errs {
		if strings.Contains(q.Filter, key) {
			return nil, err
		}
	}
	for key, entries := range f.results {
		if strings.Contains(q.Filter, key) {
			return entries, nil
		}
	}
	return nil, nil
}

func entries(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{
			Timestamp: time.Date(2026, 8, 26, 12, 0, n-i, 0, time.UTC),
			Severity:  "ERROR",
			Payload:   fmt.Sprintf("boom %d", i),
		}
	}
	return out
}

func TestFetchStopsAtFirstMatchingVariation(t *testing.T) {
	store := &fakeStore{results: map[string][]Entry{
		"configuration_name": entries(5),
	}}
	r, err := NewRetriever(store, "proj")
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	report, err := r.Fetch(context.Background(), "foo", KindCloudRun)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(report.Entries) != 5 {
		t.Errorf("Fetch() entries = %d, want 5", len(report.Entries))
	}
	if report.FilterUsed != 2 {
		t.Errorf("Fetch() filter_used = %d, want 2", report.FilterUsed)
	}
	if report.Exhausted {
		t.Error("Fetch() reported exhaustion on a hit")
	}
	// filter1 empty, filter2 hit; filter3 (text search) never attempted.
	if got := len(report.Attempts); got != 2 {
		t.Errorf("Fetch() attempts = %d, want 2", got)
	}
	if got := len(store.queries); got != 2 {
		t.Errorf("store saw %d queries, want 2 (no variation after the hit)", got)
	}
}

func TestFetchWidensWindowOnce(t *testing.T) {
	store := &fakeStore{}
	r, err := NewRetriever(store, "proj")
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	report, err := r.Fetch(context.Background(), "foo", KindCloudRun)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !report.Exhausted {
		t.Fatal("Fetch() = not exhausted, want exhausted")
	}
	if len(report.Entries) != 0 {
		t.Errorf("Fetch() entries = %d, want 0", len(report.Entries))
	}

	// 3 cloud_run variations at 1h, then the same 3 at the 48h ceiling.
	if got := len(report.Attempts); got != 6 {
		t.Fatalf("Fetch() attempts = %d, want 6", got)
	}
	for i, a := range report.Attempts {
		want := DefaultLookback
		if i >= 3 {
			want = MaxLookback
		}
		if a.Lookback != want {
			t.Errorf("attempt[%d].Lookback = %s, want %s", i, a.Lookback, want)
		}
	}

	summary := report.ExhaustionSummary()
	for _, variation := range []string{"service_name", "configuration_name", "text_search"} {
		if !strings.Contains(summary, variation) {
			t.Errorf("ExhaustionSummary() missing variation %q:\n%s", variation, summary)
		}
	}
}

func TestFetchNoWideningWhenAlreadyAtCeiling(t *testing.T) {
	store := &fakeStore{}
	r, err := NewRetriever(store, "proj", WithLookback(MaxLookback))
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	report, err := r.Fetch(context.Background(), "fn-1", KindCloudFunctions)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	// 2 cloud_functions variations, one pass only.
	if got := len(report.Attempts); got != 2 {
		t.Errorf("Fetch() attempts = %d, want 2", got)
	}
}

func TestFetchRecordsStoreErrorsAndContinues(t *testing.T) {
	store := &fakeStore{
		errs:    map[string]error{"service_name": errors.New("backend exploded")},
		results: map[string][]Entry{"configuration_name": entries(1)},
	}
	r, err := NewRetriever(store, "proj")
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	report, err := r.Fetch(context.Background(), "foo", KindCloudRun)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if report.FilterUsed != 2 {
		t.Errorf("Fetch() filter_used = %d, want 2", report.FilterUsed)
	}
	if report.Attempts[0].Error == "" {
		t.Error("Fetch() did not record the store error on the first attempt")
	}
}

func TestFetchFailsWhenEveryQueryErrors(t *testing.T) {
	store := &fakeStore{errs: map[string]error{"resource.type": errors.New("denied")}}
	r, err := NewRetriever(store, "proj")
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	if _, err := r.Fetch(context.Background(), "foo", KindCloudRun); err == nil {
		t.Error("Fetch() = nil error, want store failure")
	}
}

func TestVariationsPerKind(t *testing.T) {
	tests := []struct {
		kind  Kind
		first string
		count int
	}{
		{KindCloudRun, "service_name", 3},
		{KindCloudBuild, "build_id", 4}, // includes cloudbuild_log and text_search
		{KindCloudFunctions, "function_name", 2},
		{KindGCE, "instance_id", 3},
		{KindGKE, "cluster_name", 4},
		{KindAppEngine, "module_id", 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			vs := Variations(tt.kind, "svc", "proj")
			if len(vs) != tt.count {
				t.Fatalf("Variations() = %d variations, want %d", len(vs), tt.count)
			}
			if vs[0].Name != tt.first {
				t.Errorf("Variations()[0].Name = %q, want %q", vs[0].Name, tt.first)
			}
			if vs[len(vs)-1].Name != "text_search" {
				t.Errorf("last variation = %q, want text_search", vs[len(vs)-1].Name)
			}
			for _, v := range vs {
				if v.Name != "cloudbuild_log" && !strings.Contains(v.Filter, string(tt.kind.ResourceType())) {
					t.Errorf("variation %q filter %q missing resource type", v.Name, v.Filter)
				}
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		if got, err := ParseKind(string(k)); err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseKind("mainframe"); err == nil {
		t.Error("ParseKind() accepted unknown kind")
	}
}
