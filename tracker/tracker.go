/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package tracker files issues against a GitHub repository, skipping
// candidates that duplicate existing open issues or that maintainers have
// already declined.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// ErrUnavailable reports that the tracker backend could not be reached or
// answered with a server-side failure. Callers distinguish this from policy
// outcomes like a skipped duplicate.
var ErrUnavailable = errors.New("issue tracker unavailable")

// Tracker is the issue backend's surface. List returns issues in all states,
// excluding pull requests.
type Tracker interface {
	List(ctx context.Context, repo Repo) ([]Issue, error)
	Create(ctx context.Context, repo Repo, c Candidate) (Issue, error)
}

// GitHub implements Tracker against the GitHub Issues API.
type GitHub struct {
	client *github.Client
}

// NewGitHub wraps an authenticated go-github client.
func NewGitHub(client *github.Client) (*GitHub, error) {
	if client == nil {
		return nil, fmt.Errorf("github client cannot be nil")
	}
	return &GitHub{client: client}, nil
}

// NewTokenClient builds a go-github client from a personal access token.
func NewTokenClient(ctx context.Context, token string) (*github.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts)), nil
}

// NewAppClient builds a go-github client authenticated as a GitHub App
// installation, using the private key at keyPath.
func NewAppClient(appID, installationID int64, keyPath string) (*github.Client, error) {
	if appID <= 0 || installationID <= 0 {
		return nil, fmt.Errorf("app ID and installation ID must be positive")
	}
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading GitHub App key from %s: %w", keyPath, err)
	}
	return github.NewClient(&http.Client{Transport: itr}), nil
}

// List returns every issue in the repository, open and closed, newest first.
// Pull requests surface through the same API and are filtered out here.
func (g *GitHub) List(ctx context.Context, repo Repo) ([]Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []Issue
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, classify(fmt.Errorf("listing issues in %s: %w", repo, err))
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, fromGitHub(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

// Create files the candidate as a new issue.
func (g *GitHub) Create(ctx context.Context, repo Repo, c Candidate) (Issue, error) {
	if c.Title == "" {
		return Issue{}, fmt.Errorf("candidate title cannot be empty")
	}
	req := &github.IssueRequest{
		Title: github.Ptr(c.Title),
		Body:  github.Ptr(c.Body),
	}
	if labels := c.labels(); len(labels) > 0 {
		req.Labels = &labels
	}
	created, _, err := g.client.Issues.Create(ctx, repo.Owner, repo.Name, req)
	if err != nil {
		return Issue{}, classify(fmt.Errorf("creating issue %q in %s: %w", c.Title, repo, err))
	}
	return fromGitHub(created), nil
}

func fromGitHub(is *github.Issue) Issue {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	return Issue{
		Number:    is.GetNumber(),
		Title:     is.GetTitle(),
		Body:      is.GetBody(),
		State:     is.GetState(),
		Labels:    labels,
		URL:       is.GetHTMLURL(),
		CreatedAt: is.GetCreatedAt().Time,
	}
}

// classify folds transport and server-side failures into ErrUnavailable so
// callers can tell an unreachable tracker apart from a rejected request.
func classify(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Response != nil && ghErr.Response.StatusCode < 500 {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
