/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package router decides which handler should run next for a request. It
// combines cheap deterministic extraction (service mentions, repository
// URLs) with a model classification of the user's intent, and overrides the
// model when a choice cannot proceed without information we do not have.
package router

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
	"github.com/opsleuth/opsleuth/workflow"
)

// decision is the structured routing answer we ask the model for.
type decision struct {
	NextHandler string `json:"next_handler" jsonschema:"enum=log_analysis,enum=issue_authoring,enum=issue_filing,enum=recommendation,enum=remediation,enum=clarification,description=The handler that should run next"`
	RepoURL     string `json:"repo_url,omitempty" jsonschema:"description=Repository URL if the user mentioned one"`
	IssueTitle  string `json:"issue_title,omitempty" jsonschema:"description=Issue title if the user is describing a concrete problem"`
	IssueBody   string `json:"issue_body,omitempty" jsonschema:"description=Issue body if the user is describing a concrete problem"`
}

var routePrompt = promptbuilder.MustNew(`You route requests about cloud service problems to exactly one handler:

- log_analysis: diagnose what is wrong using the service's logs.
- issue_authoring: turn a confirmed problem into tracker issue drafts.
- issue_filing: file already-drafted issues in the tracker.
- recommendation: suggest remediation steps without touching code.
- remediation: open a pull request that fixes the problem in the repository.
- clarification: ask the user for missing information.

Examples:
Q: "what is wrong with my cloud run service checkout?" -> {"next_handler": "log_analysis"}
Q: "file an issue for the crash we found" -> {"next_handler": "issue_authoring"}
Q: "open a PR to fix it, repo is https://github.com/acme/shop" -> {"next_handler": "remediation", "repo_url": "https://github.com/acme/shop"}
Q: "how do I stop this from happening again?" -> {"next_handler": "recommendation"}

Known service: {{service}}
Known repository: {{repo}}

Conversation so far:
{{conversation}}

Respond with a fenced JSON block matching this schema:
{{schema}}`)

// Router is the entry handler.
type Router struct {
	provider inference.Provider
}

// New constructs a Router.
func New(provider inference.Provider) (*Router, error) {
	if provider == nil {
		return nil, fmt.Errorf("inference provider cannot be nil")
	}
	return &Router{provider: provider}, nil
}

// Step implements workflow.StepFunc.
func (r *Router) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	update := workflow.Update{History: map[workflow.Handler][]string{}}

	// Deterministic extraction runs before the model so its findings are
	// available to the clarify override regardless of what the model says.
	text := st.Query
	for _, m := range st.Conversation {
		text += "\n" + m.Text
	}
	if svc := extractService(text); svc.Name != "" {
		update.ServiceName = svc.Name
		update.ServiceKind = svc.Kind
	}
	if url := extractRepoURL(st); url != "" {
		update.RepoURL = url
	}

	d, note, err := r.classify(ctx, st)
	if err != nil {
		return workflow.Update{}, err
	}
	if note != "" {
		update.History[workflow.HandlerRouter] = append(update.History[workflow.HandlerRouter], note)
	}
	if d.RepoURL != "" {
		update.RepoURL = strings.TrimSuffix(d.RepoURL, ".git")
	}

	next, err := workflow.ParseHandler(d.NextHandler)
	if err != nil {
		next = workflow.HandlerLogAnalysis
		update.History[workflow.HandlerRouter] = append(update.History[workflow.HandlerRouter],
			fmt.Sprintf("unknown handler %q from model, defaulting to %s", d.NextHandler, next))
	}

	// Remediation and filing cannot proceed without a repository.
	repoKnown := st.RepoURL != "" || update.RepoURL != ""
	if (next == workflow.HandlerRemediation || next == workflow.HandlerIssueFiling) && !repoKnown {
		update.History[workflow.HandlerRouter] = append(update.History[workflow.HandlerRouter],
			fmt.Sprintf("%s requested without a repository, asking for one", next))
		next = workflow.HandlerClarification
	}

	if d.IssueTitle != "" {
		update.History[workflow.HandlerRouter] = append(update.History[workflow.HandlerRouter],
			fmt.Sprintf("user-described issue: %s", d.IssueTitle))
	}

	clog.FromContext(ctx).With("next", next.String()).Info("Routed request")
	update.Next = next
	return update, nil
}

// classify asks the model for a routing decision. A malformed answer is not
// fatal: it falls back to log analysis and reports what happened in the
// note.
func (r *Router) classify(ctx context.Context, st *workflow.State) (decision, string, error) {
	schemaText, err := schema.MarshalFor[decision]()
	if err != nil {
		return decision{}, "", fmt.Errorf("rendering routing schema: %w", err)
	}

	service := "unknown"
	if st.Service.Name != "" {
		service = fmt.Sprintf("%s (%s)", st.Service.Name, st.Service.Kind)
	}
	repo := st.RepoURL
	if repo == "" {
		repo = "unknown"
	}

	p, err := routePrompt.BindString("service", service)
	if err != nil {
		return decision{}, "", err
	}
	if p, err = p.BindString("repo", repo); err != nil {
		return decision{}, "", err
	}
	if p, err = p.BindString("conversation", renderConversation(st.Conversation)); err != nil {
		return decision{}, "", err
	}
	if p, err = p.BindString("schema", schemaText); err != nil {
		return decision{}, "", err
	}
	prompt, err := p.Build()
	if err != nil {
		return decision{}, "", fmt.Errorf("building routing prompt: %w", err)
	}

	raw, err := r.provider.Generate(ctx, prompt)
	if err != nil {
		return decision{}, "", fmt.Errorf("classifying request: %w", err)
	}

	d, err := result.Extract[decision](raw)
	if err != nil {
		if !errors.Is(err, result.ErrMalformed) {
			return decision{}, "", err
		}
		return decision{NextHandler: workflow.HandlerLogAnalysis.String()},
			fmt.Sprintf("malformed routing answer (%v), defaulting to log analysis", err), nil
	}
	return d, "", nil
}

func renderConversation(msgs []workflow.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Text))
	}
	return strings.Join(lines, "\n")
}
