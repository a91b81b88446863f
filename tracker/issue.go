/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo extracts the owner and name from a GitHub repository URL or a
// bare "owner/name" slug.
func ParseRepo(raw string) (Repo, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".git")
	if s == "" {
		return Repo{}, fmt.Errorf("repository reference cannot be empty")
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Repo{}, fmt.Errorf("parsing repository URL %q: %w", raw, err)
		}
		s = strings.Trim(u.Path, "/")
	} else if at := strings.Index(s, "@"); at >= 0 && strings.Contains(s, ":") {
		// SSH form: git@github.com:owner/name
		s = strings.TrimPrefix(s[strings.Index(s, ":")+1:], "/")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("repository reference %q is not owner/name", raw)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

// Issue is one record in the tracker, either pre-existing or newly filed.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Candidate is an issue the analysis wants filed.
type Candidate struct {
	Title    string   `json:"title" jsonschema:"description=Short, specific issue title naming the failing component and symptom"`
	Body     string   `json:"body" jsonschema:"description=Markdown issue body with evidence, impact, and relevant log lines"`
	Severity string   `json:"severity,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=critical,description=Operator-facing severity of the problem"`
	Labels   []string `json:"labels,omitempty" jsonschema:"description=Additional labels to apply"`
}

// labels returns the full label set to apply at creation time, folding the
// severity into a severity/<level> label the way operators triage by.
func (c Candidate) labels() []string {
	out := append([]string(nil), c.Labels...)
	if sev := strings.ToLower(strings.TrimSpace(c.Severity)); sev != "" {
		out = append(out, "severity/"+sev)
	}
	return out
}
