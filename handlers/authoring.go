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

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
	"github.com/opsleuth/opsleuth/agents/result"
	"github.com/opsleuth/opsleuth/agents/schema"
	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/tracker"
	"github.com/opsleuth/opsleuth/workflow"
)

// draft is one issue the model proposes.
type draft struct {
	Title    string   `json:"title" jsonschema:"description=Short, specific issue title naming the failing component and symptom"`
	Severity string   `json:"severity" jsonschema:"enum=low,enum=medium,enum=high,enum=critical,description=Operator-facing severity"`
	LogLines []string `json:"log_lines" jsonschema:"description=The exact log lines that evidence this problem"`
}

type draftSet struct {
	Issues []draft `json:"issues" jsonschema:"description=Distinct problems worth tracking, empty if the logs show none"`
}

var authoringPrompt = promptbuilder.MustNew(`You are a site reliability engineer turning log evidence into tracker issues for service {{service}}.

The user asked: {{query}}

Existing issue titles in the tracker (do not propose duplicates of these):
{{existing}}

Log entries (newest first):
{{logs}}

Propose one issue per distinct problem. Each issue needs a precise title, a severity, and the exact log lines that evidence it. Propose nothing if the logs show no problem.

Respond with a fenced JSON block matching this schema:
{{schema}}`)

// IssueAuthoring drafts tracker issues from log evidence. Its successor is
// always issue filing.
type IssueAuthoring struct {
	fetcher  Fetcher
	provider inference.Provider
	tracker  tracker.Tracker
}

// NewIssueAuthoring constructs the handler. The tracker may be nil, in
// which case drafting proceeds without existing-issue context.
func NewIssueAuthoring(fetcher Fetcher, provider inference.Provider, t tracker.Tracker) (*IssueAuthoring, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("inference provider cannot be nil")
	}
	return &IssueAuthoring{fetcher: fetcher, provider: provider, tracker: t}, nil
}

// Step implements workflow.StepFunc.
func (h *IssueAuthoring) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	log := clog.FromContext(ctx)

	if st.Service.Name == "" {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerIssueAuthoring,
				"I need to know which service the issue is about before I can draft one. Please name the service.")},
		}, nil
	}

	report, err := h.fetcher.Fetch(ctx, st.Service.Name, st.Service.Kind)
	if err != nil {
		return workflow.Update{}, fmt.Errorf("fetching logs for %s: %w", st.Service.Name, err)
	}
	if report.Exhausted {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerIssueAuthoring,
				"I found no log evidence to base an issue on.\n\n"+report.ExhaustionSummary())},
			History: historyNote(workflow.HandlerIssueAuthoring, "retrieval exhausted, nothing drafted"),
		}, nil
	}

	logs, err := logquery.RenderForAnalysis(ctx, h.provider, report)
	if err != nil {
		return workflow.Update{}, err
	}

	existing := h.existingTitles(ctx, st)
	drafts, err := h.draft(ctx, st, existing, logs)
	if err != nil {
		return workflow.Update{}, err
	}
	if len(drafts.Issues) == 0 {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerIssueAuthoring,
				"The logs show no problem worth tracking, so I did not draft any issues.")},
			History: historyNote(workflow.HandlerIssueAuthoring, "no issues drafted"),
		}, nil
	}

	issues := make([]tracker.Issue, 0, len(drafts.Issues))
	titles := make([]string, 0, len(drafts.Issues))
	for _, d := range drafts.Issues {
		if strings.TrimSpace(d.Title) == "" {
			continue
		}
		issues = append(issues, tracker.Issue{
			Title:  d.Title,
			Body:   draftBody(st, d),
			Labels: []string{"severity/" + strings.ToLower(d.Severity)},
		})
		titles = append(titles, d.Title)
	}
	log.With("drafted", len(issues)).Info("Drafted issues from log evidence")

	return workflow.Update{
		Issues:  issues,
		History: historyNote(workflow.HandlerIssueAuthoring, "drafted: %s", strings.Join(titles, "; ")),
		Next:    workflow.HandlerIssueFiling,
	}, nil
}

// existingTitles lists the tracker's current issue titles so the model can
// steer away from duplicates. Best effort: without a repository or on
// tracker failure, drafting proceeds uninformed and the mechanical
// duplicate check at filing time still applies.
func (h *IssueAuthoring) existingTitles(ctx context.Context, st *workflow.State) string {
	if h.tracker == nil || st.RepoURL == "" {
		return "(none known)"
	}
	repo, err := tracker.ParseRepo(st.RepoURL)
	if err != nil {
		return "(none known)"
	}
	issues, err := h.tracker.List(ctx, repo)
	if err != nil {
		clog.FromContext(ctx).Warnf("Listing existing issues: %v", err)
		return "(none known)"
	}
	if len(issues) == 0 {
		return "(none)"
	}
	titles := make([]string, 0, len(issues))
	for _, is := range issues {
		titles = append(titles, "- "+is.Title)
	}
	return strings.Join(titles, "\n")
}

func (h *IssueAuthoring) draft(ctx context.Context, st *workflow.State, existing, logs string) (draftSet, error) {
	schemaText, err := schema.MarshalFor[draftSet]()
	if err != nil {
		return draftSet{}, fmt.Errorf("rendering draft schema: %w", err)
	}

	p, err := authoringPrompt.BindString("service", st.Service.Name)
	if err != nil {
		return draftSet{}, err
	}
	if p, err = p.BindString("query", st.Query); err != nil {
		return draftSet{}, err
	}
	if p, err = p.BindString("existing", existing); err != nil {
		return draftSet{}, err
	}
	if p, err = p.BindString("logs", logs); err != nil {
		return draftSet{}, err
	}
	if p, err = p.BindString("schema", schemaText); err != nil {
		return draftSet{}, err
	}
	prompt, err := p.Build()
	if err != nil {
		return draftSet{}, fmt.Errorf("building authoring prompt: %w", err)
	}

	raw, err := h.provider.Generate(ctx, prompt)
	if err != nil {
		return draftSet{}, fmt.Errorf("drafting issues for %s: %w", st.Service.Name, err)
	}
	drafts, err := result.Extract[draftSet](raw)
	if err != nil {
		return draftSet{}, fmt.Errorf("parsing drafted issues: %w", err)
	}
	return drafts, nil
}

// draftBody assembles the issue body: context plus the evidencing log
// lines, which remediation later embeds in its pull request.
func draftBody(st *workflow.State, d draft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Observed on %s service `%s`.\n\n", st.Service.Kind, st.Service.Name)
	if st.Query != "" {
		fmt.Fprintf(&sb, "Reported as: %s\n\n", st.Query)
	}
	sb.WriteString("### Log evidence\n\n```\n")
	sb.WriteString(strings.Join(d.LogLines, "\n"))
	sb.WriteString("\n```\n")
	return sb.String()
}
