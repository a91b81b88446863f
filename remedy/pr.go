/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package remedy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v84/github"

	"github.com/opsleuth/opsleuth/tracker"
)

// PullRequester opens a pull request and returns its reference (URL).
type PullRequester interface {
	Create(ctx context.Context, repo tracker.Repo, head, base, title, body string) (string, error)
}

// GitHubPR implements PullRequester with the GitHub API.
type GitHubPR struct {
	client *github.Client
}

// NewGitHubPR wraps an authenticated go-github client.
func NewGitHubPR(client *github.Client) (*GitHubPR, error) {
	if client == nil {
		return nil, fmt.Errorf("github client cannot be nil")
	}
	return &GitHubPR{client: client}, nil
}

// Create opens a pull request from head into base.
func (g *GitHubPR) Create(ctx context.Context, repo tracker.Repo, head, base, title, body string) (string, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title:               github.Ptr(title),
		Head:                github.Ptr(head),
		Base:                github.Ptr(base),
		Body:                github.Ptr(body),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return "", fmt.Errorf("opening pull request %s -> %s in %s: %w", head, base, repo, err)
	}
	return pr.GetHTMLURL(), nil
}

const branchSlugMax = 40

// branchName derives a stable, readable branch name from the issue title,
// disambiguated by a short hash over title, base SHA, and time.
func branchName(title, baseSHA string, now time.Time) string {
	sum := sha256.Sum256([]byte(title + baseSHA + now.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("opsleuth/fix-%s-%x", slugify(title), sum[:4])
}

func slugify(s string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
		if sb.Len() >= branchSlugMax {
			break
		}
	}
	return strings.Trim(sb.String(), "-")
}

// prBody assembles the pull request description: the originating issue, the
// evidence it carried, and the files the patch touches.
func prBody(issue tracker.Issue, touched []string) string {
	var sb strings.Builder
	sb.WriteString("Automated fix proposed by opsleuth.\n\n")
	if issue.URL != "" {
		fmt.Fprintf(&sb, "Addresses %s\n\n", issue.URL)
	} else if issue.Number > 0 {
		fmt.Fprintf(&sb, "Addresses #%d\n\n", issue.Number)
	}
	if issue.Body != "" {
		sb.WriteString("### Evidence\n\n")
		sb.WriteString(issue.Body)
		sb.WriteString("\n\n")
	}
	sb.WriteString("### Files changed\n\n")
	for _, p := range touched {
		fmt.Fprintf(&sb, "- `%s`\n", p)
	}
	sb.WriteString("\nPlease review carefully before merging.\n")
	return sb.String()
}
