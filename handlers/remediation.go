/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/remedy"
	"github.com/opsleuth/opsleuth/tracker"
	"github.com/opsleuth/opsleuth/workflow"
)

// Remediator runs the clone-patch-publish pipeline for one issue. The
// concrete implementation is remedy.Pipeline.
type Remediator interface {
	Run(ctx context.Context, repoURL string, issue tracker.Issue) (remedy.Outcome, error)
}

// Remediation attempts an automated fix for the first tracked issue. It is
// a terminal handler; pipeline failures are outcomes, not handler errors.
type Remediation struct {
	pipeline Remediator
}

// NewRemediation constructs the handler.
func NewRemediation(pipeline Remediator) (*Remediation, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	return &Remediation{pipeline: pipeline}, nil
}

// Step implements workflow.StepFunc.
func (h *Remediation) Step(ctx context.Context, st *workflow.State) (workflow.Update, error) {
	if st.RepoURL == "" {
		return workflow.Update{Next: workflow.HandlerClarification}, nil
	}
	if len(st.Issues) == 0 {
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerRemediation,
				"There is no tracked issue to remediate yet. Ask me to analyze the service and file an issue first.")},
			History: historyNote(workflow.HandlerRemediation, "nothing to remediate"),
		}, nil
	}

	issue := st.Issues[0]
	log := clog.FromContext(ctx).With("repo", st.RepoURL).With("issue", issue.Title)
	log.Info("Attempting automated remediation")

	outcome, err := h.pipeline.Run(ctx, st.RepoURL, issue)
	if err != nil {
		// The inference backend going away is an infrastructure failure;
		// everything else the pipeline reports is a legitimate terminal
		// outcome of the attempt.
		if errors.Is(err, inference.ErrUnavailable) {
			return workflow.Update{}, err
		}
		log.Warnf("Remediation stopped at %s: %v", outcome.Step, err)
		return workflow.Update{
			Messages: []workflow.Message{assistant(workflow.HandlerRemediation, remediationFailureText(outcome, err))},
			History:  historyNote(workflow.HandlerRemediation, "failed at %s: %v", outcome.Step, err),
		}, nil
	}

	text := fmt.Sprintf("I opened %s with a proposed fix for %q (branch `%s`). Please review it before merging.",
		outcome.PRRef, issue.Title, outcome.Branch)
	return workflow.Update{
		Messages:     []workflow.Message{assistant(workflow.HandlerRemediation, text)},
		History:      historyNote(workflow.HandlerRemediation, "opened %s", outcome.PRRef),
		SuggestedFix: outcome.PRRef,
	}, nil
}

func remediationFailureText(outcome remedy.Outcome, err error) string {
	switch {
	case errors.Is(err, remedy.ErrRepoAcquisition):
		return "I could not clone the repository, so no fix was attempted. Check that the URL is correct and accessible."
	case errors.Is(err, remedy.ErrNoRelevantFiles):
		return "I cloned the repository but could not identify which files are responsible, so I did not attempt a change."
	case errors.Is(err, remedy.ErrPatchGeneration):
		return "I identified the relevant files but could not produce a patch that applies cleanly, so nothing was changed."
	case errors.Is(err, remedy.ErrPullRequestCreation):
		if outcome.Branch != "" {
			return fmt.Sprintf("I prepared a fix on branch `%s` but could not open the pull request. The branch may already be pushed.", outcome.Branch)
		}
		return "I prepared a fix but could not open the pull request."
	default:
		return fmt.Sprintf("The remediation attempt failed at the %s step: %v", outcome.Step, err)
	}
}
