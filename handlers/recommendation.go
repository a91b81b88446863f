/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package handlers

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/workflow"
)

var recommendPrompt = promptbuilder.MustNew(`You are a site reliability engineer recommending how to remediate a production problem.

The user asked: {{query}}

Conversation so far:
{{conversation}}

Recent log entries for {{service}} (newest first, may be empty):
{{logs}}

Give a numbered list of concrete remediation steps, most impactful first. Ground each step in the log evidence where it exists; where the logs are silent, fall back to general best practices for this kind of service and say you are doing so.`)

// Recommendation suggests remediation steps without touching code. It is a
// terminal handler.
type Recommendation struct {
	fetcher  Fetcher
	provider inference.Provider
}

// NewRecommendation constructs the handler.
func NewRecommendation(fetcher Fetcher, provider inference.Provider) (*Recommendation, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("inference provider cannot be nil")
	}
	return &Recommendation{fetcher: fetcher, provider: provider}, nil
}

// Step implements workflow.StepFunc.
func (h *Recommendation) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	// Logs are supporting evidence here, not a prerequisite. Retrieval
	// failures degrade to general recommendations.
	logs := "(no logs available)"
	service := st.Service.Name
	if service == "" {
		service = "(unknown service)"
	} else {
		report, err := h.fetcher.Fetch(ctx, st.Service.Name, st.Service.Kind)
		switch {
		case err != nil:
			clog.FromContext(ctx).Warnf("Fetching logs for recommendations: %v", err)
		case report.Exhausted:
			// Keep the default.
		default:
			rendered, err := logquery.RenderForAnalysis(ctx, h.provider, report)
			if err != nil {
				return workflow.Update{}, err
			}
			logs = rendered
		}
	}

	p, err := recommendPrompt.BindString("query", st.Query)
	if err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("conversation", renderConversation(st.Conversation)); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("service", service); err != nil {
		return workflow.Update{}, err
	}
	if p, err = p.BindString("logs", logs); err != nil {
		return workflow.Update{}, err
	}
	prompt, err := p.Build()
	if err != nil {
		return workflow.Update{}, fmt.Errorf("building recommendation prompt: %w", err)
	}

	answer, err := h.provider.Generate(ctx, prompt)
	if err != nil {
		return workflow.Update{}, fmt.Errorf("generating recommendations: %w", err)
	}

	return workflow.Update{
		Messages:     []workflow.Message{assistant(workflow.HandlerRecommendation, answer)},
		History:      historyNote(workflow.HandlerRecommendation, "recommendations produced"),
		SuggestedFix: answer,
	}, nil
}
