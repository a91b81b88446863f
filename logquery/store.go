/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package logquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"github.com/chainguard-dev/clog"
	"google.golang.org/api/iterator"
)

// Severity is the minimum severity threshold for a query. The zero-ish
// default, SeverityDefault, is the lowest level the backend knows, so no
// entries are silently dropped unless a caller asks for a higher floor.
type Severity string

const (
	SeverityDefault Severity = "DEFAULT"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Entry is one retrieved log record.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Severity  string            `json:"severity"`
	Payload   string            `json:"payload"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Render formats an entry the way it is shown to the analysis model.
func (e Entry) Render() string {
	return fmt.Sprintf("%s %s %s", e.Timestamp.UTC().Format(time.RFC3339), e.Severity, e.Payload)
}

// Query is one request against the log store. Filter is the label/resource
// clause; the store adds the time window and severity floor.
type Query struct {
	Filter      string
	Lookback    time.Duration
	MinSeverity Severity
}

// Store is the log backend's query surface. Implementations return entries
// newest-first; an empty result is not an error.
type Store interface {
	Query(ctx context.Context, q Query) ([]Entry, error)
}

// maxStoreEntries bounds a single query so a noisy service cannot pull an
// unbounded result set into memory.
const maxStoreEntries = 1000

// GCPStore queries Google Cloud Logging.
type GCPStore struct {
	client  *logadmin.Client
	project string
}

// NewGCPStore wraps a logadmin client for the given project.
func NewGCPStore(client *logadmin.Client, project string) (*GCPStore, error) {
	if client == nil {
		return nil, fmt.Errorf("logadmin client cannot be nil")
	}
	if project == "" {
		return nil, fmt.Errorf("project cannot be empty")
	}
	return &GCPStore{client: client, project: project}, nil
}

// Query implements Store.
func (s *GCPStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	filter := s.fullFilter(q)
	clog.FromContext(ctx).With("filter", filter).Debug("Querying log store")

	it := s.client.Entries(ctx, logadmin.Filter(filter), logadmin.NewestFirst())

	var entries []Entry
	for len(entries) < maxStoreEntries {
		e, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating log entries: %w", err)
		}
		entries = append(entries, Entry{
			Timestamp: e.Timestamp,
			Severity:  e.Severity.String(),
			Payload:   payloadString(e),
			Labels:    e.Labels,
		})
	}
	return entries, nil
}

func (s *GCPStore) fullFilter(q Query) string {
	minSeverity := q.MinSeverity
	if minSeverity == "" {
		minSeverity = SeverityDefault
	}
	since := time.Now().Add(-q.Lookback).UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s AND timestamp >= %q AND severity >= %s", q.Filter, since, minSeverity)
}

func payloadString(e *logging.Entry) string {
	switch p := e.Payload.(type) {
	case string:
		return strings.TrimRight(p, "\n")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", p)
	}
}
