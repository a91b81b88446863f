/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package remedy

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
	"github.com/opsleuth/opsleuth/agents/result"
	"github.com/opsleuth/opsleuth/agents/schema"
	"github.com/opsleuth/opsleuth/tracker"
)

// maxSelectedFiles bounds how many files are loaded into the patch prompt.
const maxSelectedFiles = 12

type selection struct {
	Files []string `json:"files" jsonschema:"description=Repository-relative paths of the files that must change to fix the issue"`
}

var selectPrompt = promptbuilder.MustNew(`You are fixing a bug in a repository. Given the issue below and the repository's file listing, pick the files that must be read and modified to fix it. Pick at most {{limit}} files; prefer the smallest set that plausibly contains the defect.

Issue: {{title}}

{{body}}

Repository files:
{{files}}

Respond with a fenced JSON block matching this schema:
{{schema}}`)

// selectFiles asks the model which workspace files are relevant to the
// issue. Paths the workspace does not contain are dropped; an empty or
// unusable selection is an error.
func selectFiles(ctx context.Context, provider inference.Provider, issue tracker.Issue, available []string) ([]string, error) {
	schemaText, err := schema.MarshalFor[selection]()
	if err != nil {
		return nil, fmt.Errorf("rendering selection schema: %w", err)
	}

	p, err := selectPrompt.BindString("limit", fmt.Sprintf("%d", maxSelectedFiles))
	if err != nil {
		return nil, err
	}
	if p, err = p.BindString("title", issue.Title); err != nil {
		return nil, err
	}
	if p, err = p.BindString("body", issue.Body); err != nil {
		return nil, err
	}
	if p, err = p.BindString("files", strings.Join(available, "\n")); err != nil {
		return nil, err
	}
	if p, err = p.BindString("schema", schemaText); err != nil {
		return nil, err
	}
	prompt, err := p.Build()
	if err != nil {
		return nil, fmt.Errorf("building selection prompt: %w", err)
	}

	raw, err := provider.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	sel, err := result.Extract[selection](raw)
	if err != nil {
		return nil, fmt.Errorf("parsing file selection: %w", err)
	}

	known := make(map[string]bool, len(available))
	for _, f := range available {
		known[f] = true
	}
	var out []string
	for _, f := range sel.Files {
		f = strings.TrimSpace(f)
		if known[f] {
			out = append(out, f)
		}
		if len(out) == maxSelectedFiles {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model selected no files present in the repository")
	}
	return out, nil
}
