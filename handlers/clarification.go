/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package handlers

import (
	"context"

	"github.com/opsleuth/opsleuth/workflow"
)

// clarificationText is the fixed ask when an action needs a repository we
// do not know about.
const clarificationText = "To do that I need the repository to work against. " +
	"Please share its URL, for example https://github.com/owner/repo."

// Clarification asks the user for the missing repository reference. It is a
// terminal handler.
type Clarification struct{}

// NewClarification constructs the handler.
func NewClarification() *Clarification {
	return &Clarification{}
}

// Step implements workflow.StepFunc.
func (h *Clarification) Step(_ context.Context, _ *workflow.State) (workflow.Update, error) {
	return workflow.Update{
		Messages: []workflow.Message{assistant(workflow.HandlerClarification, clarificationText)},
	}, nil
}
