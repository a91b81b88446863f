/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/tracker"
	"github.com/opsleuth/opsleuth/workflow"
)

// Filer applies the duplicate policy and files one candidate. The concrete
// implementation is tracker.File.
type Filer func(ctx context.Context, t tracker.Tracker, repo tracker.Repo, c tracker.Candidate) (tracker.Decision, error)

// IssueFiling files the drafted issues on the state, one duplicate-checked
// creation per draft. It is a terminal handler.
type IssueFiling struct {
	tracker tracker.Tracker
	file    Filer
}

// NewIssueFiling constructs the handler.
func NewIssueFiling(t tracker.Tracker) (*IssueFiling, error) {
	if t == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	return &IssueFiling{tracker: t, file: tracker.File}, nil
}

// Step implements workflow.StepFunc.
func (h *IssueFiling) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	if st.RepoURL == "" {
		return workflow.Update{Next: workflow.HandlerClarification}, nil
	}
	repo, err := tracker.ParseRepo(st.RepoURL)
	if err != nil {
		return workflow.Update{}, fmt.Errorf("resolving repository %q: %w", st.RepoURL, err)
	}

	drafts := pendingDrafts(st)
	if len(drafts) == 0 {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerIssueFiling,
				"There are no drafted issues to file.")},
		}, nil
	}

	log := clog.FromContext(ctx).With("repo", repo.String())
	update := workflow.Update{History: map[workflow.Handler][]string{}}
	var report []string

	for _, d := range drafts {
		decision, err := h.file(ctx, h.tracker, repo, tracker.Candidate{
			Title:    d.Title,
			Body:     d.Body,
			Severity: severityFromLabels(d.Labels),
		})
		if err != nil {
			return workflow.Update{}, fmt.Errorf("filing %q: %w", d.Title, err)
		}

		note := fmt.Sprintf("%s: %s", d.Title, decision.Reason)
		update.History[workflow.HandlerIssueFiling] = append(update.History[workflow.HandlerIssueFiling], note)

		switch decision.Reason {
		case tracker.ReasonCreated:
			// The created record carries the tracker number; merging it
			// resolves the draft on the state in place.
			update.Issues = append(update.Issues, decision.Issue)
			report = append(report, fmt.Sprintf("- Filed %q as %s", d.Title, decision.Issue.URL))
		case tracker.ReasonSkippedOpenDuplicate:
			report = append(report, fmt.Sprintf("- Skipped %q: already open as #%d", d.Title, decision.Issue.Number))
		case tracker.ReasonSkippedWontFix:
			report = append(report, fmt.Sprintf("- Skipped %q: maintainers declined it in #%d", d.Title, decision.Issue.Number))
		}
		log.With("title", d.Title).With("reason", string(decision.Reason)).Info("Filing decision")
	}

	update.Messages = []workflow.Message{assistant(workflow.HandlerIssueFiling, strings.Join(report, "\n"))}
	return update, nil
}

// pendingDrafts picks out state issues that have not been filed yet.
func pendingDrafts(st *workflow.State) []tracker.Issue {
	var out []tracker.Issue
	for _, is := range st.Issues {
		if is.Number == 0 {
			out = append(out, is)
		}
	}
	return out
}

// severityFromLabels recovers the drafted severity from a severity/<level>
// label.
func severityFromLabels(labels []string) string {
	for _, l := range labels {
		if rest, ok := strings.CutPrefix(l, "severity/"); ok {
			return rest
		}
	}
	return ""
}
