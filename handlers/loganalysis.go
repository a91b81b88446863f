/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package handlers implements the workflow steps: log analysis, issue
// authoring and filing, recommendations, remediation, and clarification.
// Each handler is a small struct over its collaborators whose Step method
// satisfies workflow.StepFunc.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
	"github.com/opsleuth/opsleuth/agents/result"
	"github.com/opsleuth/opsleuth/agents/schema"
	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/workflow"
)

// Fetcher is the slice of the log retriever the handlers need. The concrete
// implementation is logquery.Retriever.
type Fetcher interface {
	Fetch(ctx context.Context, service string, kind logquery.Kind) (*logquery.Report, error)
}

// diagnosis is the structured analysis answer. The verdict decides the
// terminal outcome: an all-clear keeps the no-problem default.
type diagnosis struct {
	ProblemFound bool   `json:"problem_found" jsonschema:"description=Whether the logs show a real problem"`
	Analysis     string `json:"analysis" jsonschema:"description=The diagnosis, or the all-clear explanation, quoting the decisive log lines"`
}

var analysisPrompt = promptbuilder.MustNew(`You are a site reliability engineer diagnosing a production problem.

The user asked: {{query}}

Service: {{service}} ({{kind}})

Conversation so far:
{{conversation}}

Relevant log entries (newest first):
{{logs}}

Explain what is going wrong, grounded strictly in the log evidence above. Name the failing component, quote the decisive log lines, and state the most likely root cause. If the logs do not show a problem, say so plainly and set problem_found to false.

Respond with a fenced JSON block matching this schema:
{{schema}}`)

// LogAnalysis diagnoses a service from its logs. It is a terminal handler.
type LogAnalysis struct {
	fetcher  Fetcher
	provider inference.Provider
}

// NewLogAnalysis constructs the handler.
func NewLogAnalysis(fetcher Fetcher, provider inference.Provider) (*LogAnalysis, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("inference provider cannot be nil")
	}
	return &LogAnalysis{fetcher: fetcher, provider: provider}, nil
}

// Step implements workflow.StepFunc.
func (h *LogAnalysis) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	if st.Service.Name == "" {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerLogAnalysis,
				"I could not tell which service to look at. Please name the service (for example: \"cloud run service checkout\").")},
		}, nil
	}

	report, err := h.fetcher.Fetch(ctx, st.Service.Name, st.Service.Kind)
	if err != nil {
		return workflow.Update{}, fmt.Errorf("fetching logs for %s: %w", st.Service.Name, err)
	}

	if report.Exhausted {
		// Finding nothing is a valid diagnosis, reported with the full
		// search trail so the user can see what was tried.
		clog.FromContext(ctx).With("service", st.Service.Name).Info("Log retrieval exhausted")
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerLogAnalysis, report.ExhaustionSummary())},
			History:  historyNote(workflow.HandlerLogAnalysis, "retrieval exhausted after %d attempts", len(report.Attempts)),
		}, nil
	}

	logs, err := logquery.RenderForAnalysis(ctx, h.provider, report)
	if err != nil {
		return workflow.Update{}, err
	}

	schemaText, err := schema.MarshalFor[diagnosis]()
	if err != nil {
		return workflow.Update{}, fmt.Errorf("rendering analysis schema: %w", err)
	}

	p, err := analysisPrompt.BindString("query", st.Query)
	if err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("service", st.Service.Name); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("kind", string(st.Service.Kind)); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("conversation", renderConversation(st.Conversation)); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("logs", logs); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("schema", schemaText); err != nil {
		return workflow.Update{}, err
	}
	prompt, err := p.Build()
	if err != nil {
		return workflow.Update{}, fmt.Errorf("building analysis prompt: %w", err)
	}

	answer, err := h.provider.Generate(ctx, prompt)
	if err != nil {
		return workflow.Update{}, fmt.Errorf("analyzing logs for %s: %w", st.Service.Name, err)
	}

	update := workflow.Update{
		History: historyNote(workflow.HandlerLogAnalysis, "analyzed %d entries via filter %d at lookback %s",
			len(report.Entries), report.FilterUsed, report.Lookback),
	}

	d, err := result.Extract[diagnosis](answer)
	if err != nil {
		if !errors.Is(err, result.ErrMalformed) {
			return workflow.Update{}, err
		}
		// Treat a non-conforming answer as prose and leave the outcome to
		// the no-problem default rather than guessing a verdict.
		update.Messages = []workflow.Message{assistant(workflow.HandlerLogAnalysis, strings.TrimSpace(answer))}
		update.History[workflow.HandlerLogAnalysis] = append(update.History[workflow.HandlerLogAnalysis],
			"malformed analysis answer, reported as prose")
		return update, nil
	}

	update.Messages = []workflow.Message{assistant(workflow.HandlerLogAnalysis, d.Analysis)}
	if d.ProblemFound {
		update.Outcome = workflow.OutcomeProblemNotActionable
	}
	return update, nil
}

func assistant(h workflow.Handler, text string) workflow.Message {
	return workflow.Message{Role: workflow.RoleAssistant, Handler: h.String(), Text: text}
}

func historyNote(h workflow.Handler, format string, args ...any) map[workflow.Handler][]string {
	return map[workflow.Handler][]string{h: {fmt.Sprintf(format, args...)}}
}

func renderConversation(msgs []workflow.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Text))
	}
	return strings.Join(lines, "\n")
}
