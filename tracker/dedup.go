/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
)

// Reason describes how a candidate was disposed of.
type Reason string

const (
	// ReasonCreated means a new issue was filed.
	ReasonCreated Reason = "created"
	// ReasonSkippedOpenDuplicate means an open issue already covers the
	// candidate, so nothing was filed.
	ReasonSkippedOpenDuplicate Reason = "skipped_open_duplicate"
	// ReasonSkippedWontFix means a closed issue covering the candidate was
	// declined by maintainers, so it is not reopened.
	ReasonSkippedWontFix Reason = "skipped_wontfix"
)

// Decision is the outcome of filing one candidate. Issue is the created
// issue for ReasonCreated, or the existing issue that suppressed filing.
type Decision struct {
	Reason Reason `json:"reason"`
	Issue  Issue  `json:"issue"`
}

// declinedLabels mark a closed issue as deliberately not fixed.
var declinedLabels = map[string]bool{
	"wontfix":     true,
	"won't fix":   true,
	"not planned": true,
}

// minTruncationRunes is the shortest title that can match another as a
// truncation. Below this, prefix matches are too likely to be coincidence.
const minTruncationRunes = 16

// File applies the duplicate policy to one candidate and files it when
// nothing suppresses it. Existing issues are matched on near-exact title: an
// open match skips filing, a closed match labeled as declined skips filing,
// and any other closed match does not block a fresh issue.
func File(ctx context.Context, t Tracker, repo Repo, c Candidate) (Decision, error) {
	existing, err := t.List(ctx, repo)
	if err != nil {
		return Decision{}, fmt.Errorf("checking for duplicates of %q: %w", c.Title, err)
	}

	log := clog.FromContext(ctx).With("repo", repo.String()).With("title", c.Title)

	var declined *Issue
	for i := range existing {
		is := &existing[i]
		if !titlesMatch(c.Title, is.Title) {
			continue
		}
		if is.State == "open" {
			log.With("number", is.Number).Info("Skipping candidate, open duplicate exists")
			return Decision{Reason: ReasonSkippedOpenDuplicate, Issue: *is}, nil
		}
		if declined == nil && isDeclined(*is) {
			declined = is
		}
	}
	if declined != nil {
		log.With("number", declined.Number).Info("Skipping candidate, maintainers declined it")
		return Decision{Reason: ReasonSkippedWontFix, Issue: *declined}, nil
	}

	created, err := t.Create(ctx, repo, c)
	if err != nil {
		return Decision{}, fmt.Errorf("filing %q: %w", c.Title, err)
	}
	log.With("number", created.Number).Info("Filed new issue")
	return Decision{Reason: ReasonCreated, Issue: created}, nil
}

// titlesMatch reports whether two titles describe the same problem: equal
// after case folding and whitespace collapsing, or one a truncation of the
// other at minTruncationRunes or longer.
func titlesMatch(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return utf8.RuneCountInString(shorter) >= minTruncationRunes && strings.HasPrefix(longer, shorter)
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isDeclined(is Issue) bool {
	for _, l := range is.Labels {
		if declinedLabels[strings.ToLower(l)] {
			return true
		}
	}
	return false
}
