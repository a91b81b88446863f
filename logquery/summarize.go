/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package logquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
)

// SummarizeThreshold is the entry count above which retrieved logs are
// condensed before being handed to the analysis step. The raw entries stay
// on the Report; only the rendering for the next consumer is compressed.
const SummarizeThreshold = 200

var summaryPrompt = promptbuilder.MustNew(`Condense the following log entries for service {{service}} into a summary that preserves every error, warning, anomaly, and representative timestamps. Keep exact messages for anything that looks like a problem; collapse repeated lines into one line with a repeat count.

Log entries ({{count}} total, newest first):
{{logs}}`)

// RenderForAnalysis returns the text the analysis step should consume:
// the rendered entries verbatim when at or below SummarizeThreshold, or a
// model-condensed summary above it.
func RenderForAnalysis(ctx context.Context, provider inference.Provider, report *Report) (string, error) {
	rendered := renderEntries(report.Entries)
	if len(report.Entries) <= SummarizeThreshold {
		return rendered, nil
	}

	clog.FromContext(ctx).With("entries", len(report.Entries)).
		With("threshold", SummarizeThreshold).
		Info("Summarizing oversized log result before analysis")

	p, err := summaryPrompt.BindString("service", report.Service)
	if err != nil {
		return "", fmt.Errorf("binding service: %w", err)
	}
	p, err = p.BindString("count", fmt.Sprintf("%d", len(report.Entries)))
	if err != nil {
		return "", fmt.Errorf("binding count: %w", err)
	}
	p, err = p.BindString("logs", rendered)
	if err != nil {
		return "", fmt.Errorf("binding logs: %w", err)
	}
	prompt, err := p.Build()
	if err != nil {
		return "", fmt.Errorf("building summary prompt: %w", err)
	}

	summary, err := provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarizing %d log entries: %w", len(report.Entries), err)
	}
	return summary, nil
}

func renderEntries(entries []Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Render())
	}
	return strings.Join(lines, "\n")
}
