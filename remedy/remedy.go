/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package remedy turns a filed issue into a pull request: clone the
// repository, pick the relevant files, have the model propose a unified
// diff, apply it on a fresh branch, and publish. Each step has a distinct
// failure kind so callers can report exactly how far the attempt got.
package remedy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/promptbuilder"
	"github.com/opsleuth/opsleuth/tracker"
)

// Pipeline failure kinds, one per step. Inference failures pass through as
// inference.ErrUnavailable.
var (
	ErrRepoAcquisition     = errors.New("repository acquisition failed")
	ErrNoRelevantFiles     = errors.New("no relevant files identified")
	ErrPatchGeneration     = errors.New("patch generation failed")
	ErrPullRequestCreation = errors.New("pull request creation failed")
)

// Step names the pipeline stage an outcome refers to.
type Step string

const (
	StepAcquire Step = "acquire"
	StepSelect  Step = "select"
	StepPatch   Step = "patch"
	StepPublish Step = "publish"
	StepDone    Step = "done"
)

// Outcome reports how far a remediation attempt got. On success Step is
// StepDone and PRRef holds the pull request URL. Branch is set once a
// branch name was chosen, so a publish failure still names the branch that
// may have been pushed.
type Outcome struct {
	Step   Step   `json:"step"`
	Branch string `json:"branch,omitempty"`
	PRRef  string `json:"pr_ref,omitempty"`
}

var patchPrompt = promptbuilder.MustNew(`You are fixing a bug in a repository. Produce a minimal unified diff that fixes the issue below. Only touch the files provided. Use standard git unified diff format: every file starts with a "diff --git a/<path> b/<path>" line followed by ---/+++ markers and correct hunk headers. Do not include any prose outside the fenced block.

Issue: {{title}}

{{body}}

File contents:
{{files}}

Respond with the diff in a single fenced code block.`)

// Pipeline runs the remediation steps against one repository.
type Pipeline struct {
	provider inference.Provider
	prs      PullRequester
	tokens   oauth2.TokenSource
	identity string
	now      func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTokenSource supplies credentials for cloning and pushing. Without it
// the pipeline can only operate on repositories reachable anonymously.
func WithTokenSource(ts oauth2.TokenSource) PipelineOption {
	return func(p *Pipeline) { p.tokens = ts }
}

// WithIdentity sets the commit author identity.
func WithIdentity(identity string) PipelineOption {
	return func(p *Pipeline) { p.identity = identity }
}

// NewPipeline constructs a Pipeline.
func NewPipeline(provider inference.Provider, prs PullRequester, opts ...PipelineOption) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("inference provider cannot be nil")
	}
	if prs == nil {
		return nil, fmt.Errorf("pull requester cannot be nil")
	}
	p := &Pipeline{
		provider: provider,
		prs:      prs,
		identity: "opsleuth",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run attempts to remediate the issue against the repository at repoURL.
// The returned Outcome always reflects the last step reached; the workspace
// is removed on every path.
func (p *Pipeline) Run(ctx context.Context, repoURL string, issue tracker.Issue) (Outcome, error) {
	log := clog.FromContext(ctx).With("repo", repoURL).With("issue", issue.Title)

	repo, err := tracker.ParseRepo(repoURL)
	if err != nil {
		return Outcome{Step: StepAcquire}, fmt.Errorf("%w: %w", ErrRepoAcquisition, err)
	}

	auth, err := p.gitAuth()
	if err != nil {
		return Outcome{Step: StepAcquire}, fmt.Errorf("%w: %w", ErrRepoAcquisition, err)
	}

	ws, err := acquireWorkspace(ctx, repoURL, auth)
	if err != nil {
		return Outcome{Step: StepAcquire}, fmt.Errorf("%w: %w", ErrRepoAcquisition, err)
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warnf("Removing workspace: %v", cerr)
		}
	}()
	log.With("base", ws.baseBranch).With("sha", ws.baseSHA.String()).Info("Acquired workspace")

	selected, err := p.selectStep(ctx, ws, issue)
	if err != nil {
		return Outcome{Step: StepSelect}, err
	}
	log.With("files", len(selected)).Info("Selected files for patching")

	touched, err := p.patchStep(ctx, ws, issue, selected)
	if err != nil {
		return Outcome{Step: StepPatch}, err
	}

	branch := branchName(issue.Title, ws.baseSHA.String(), p.now())
	outcome := Outcome{Step: StepPublish, Branch: branch}

	if err := p.commitAndPush(ctx, ws, branch, issue); err != nil {
		return outcome, fmt.Errorf("%w: %w", ErrPullRequestCreation, err)
	}

	prRef, err := p.prs.Create(ctx, repo, branch, ws.baseBranch, "Fix: "+issue.Title, prBody(issue, touched))
	if err != nil {
		return outcome, fmt.Errorf("%w: %w", ErrPullRequestCreation, err)
	}

	log.With("pr", prRef).Info("Opened pull request")
	return Outcome{Step: StepDone, Branch: branch, PRRef: prRef}, nil
}

func (p *Pipeline) selectStep(ctx context.Context, ws *Workspace, issue tracker.Issue) ([]string, error) {
	available, err := ws.Files()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRelevantFiles, err)
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: repository has no candidate files", ErrNoRelevantFiles)
	}
	selected, err := selectFiles(ctx, p.provider, issue, available)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNoRelevantFiles, err)
	}
	return selected, nil
}

func (p *Pipeline) patchStep(ctx context.Context, ws *Workspace, issue tracker.Issue, selected []string) ([]string, error) {
	var sb strings.Builder
	for _, path := range selected {
		content, err := ws.Read(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrPatchGeneration, path, err)
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", path, content)
	}

	pr, err := patchPrompt.BindString("title", issue.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchGeneration, err)
	}
	if pr, err = pr.BindString("body", issue.Body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchGeneration, err)
	}
	if pr, err = pr.BindString("files", sb.String()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchGeneration, err)
	}
	prompt, err := pr.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchGeneration, err)
	}

	raw, err := p.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	diffText := extractDiff(raw)
	if diffText == "" {
		return nil, fmt.Errorf("%w: model produced no diff", ErrPatchGeneration)
	}
	touched, err := applyUnifiedDiff(ws, diffText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchGeneration, err)
	}
	return touched, nil
}

// extractDiff pulls the diff out of a fenced code block, tolerating a bare
// diff with no fence.
func extractDiff(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}

func (p *Pipeline) commitAndPush(ctx context.Context, ws *Workspace, branch string, issue tracker.Issue) error {
	refName := plumbing.NewBranchReferenceName(branch)
	wt, err := ws.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName, Create: true, Keep: true}); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	email := p.identity
	if !strings.Contains(email, "@") {
		email += "@opsleuth.invalid"
	}
	msg := fmt.Sprintf("Fix: %s\n\nProposed automatically from issue analysis.", issue.Title)
	if _, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: p.identity, Email: email, When: p.now()},
	}); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	auth, err := p.gitAuth()
	if err != nil {
		return err
	}
	return pushBranch(ctx, ws, refName, auth)
}

// pushBranch publishes a branch to origin. Tests override this to avoid a
// network remote.
var pushBranch = defaultPush

func defaultPush(ctx context.Context, ws *Workspace, ref plumbing.ReferenceName, auth transport.AuthMethod) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))
	if err := ws.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing %s: %w", ref.Short(), err)
	}
	return nil
}

func (p *Pipeline) gitAuth() (transport.AuthMethod, error) {
	if p.tokens == nil {
		return nil, nil
	}
	token, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}
