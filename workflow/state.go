/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"github.com/google/uuid"

	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/tracker"
)

// Role distinguishes who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Handler string `json:"handler,omitempty"`
	Text    string `json:"text"`
}

// Service names the cloud service under investigation.
type Service struct {
	Name string        `json:"name,omitempty"`
	Kind logquery.Kind `json:"kind,omitempty"`
}

// State is the per-request record threaded through every handler. The
// conversation and per-handler histories are append-only; handlers never
// mutate State directly, they return an Update.
type State struct {
	ID           uuid.UUID            `json:"id"`
	Query        string               `json:"query"`
	Service      Service              `json:"service,omitzero"`
	RepoURL      string               `json:"repo_url,omitempty"`
	Conversation []Message            `json:"conversation,omitempty"`
	Issues       []tracker.Issue      `json:"issues,omitempty"`
	Histories    map[Handler][]string `json:"histories,omitempty"`
	SuggestedFix string               `json:"suggested_fix,omitempty"`
	Outcome      Outcome              `json:"-"`
	Next         Handler              `json:"-"`
}

// NewState builds the initial state for a query.
func NewState(query string) *State {
	return &State{
		ID:        uuid.New(),
		Query:     query,
		Histories: make(map[Handler][]string),
		Conversation: []Message{
			{Role: RoleUser, Text: query},
		},
	}
}

// Update is a sparse set of assignments a handler wants applied to the
// state. Scalars overwrite only when non-zero; slices concatenate.
type Update struct {
	ServiceName  string
	ServiceKind  logquery.Kind
	RepoURL      string
	SuggestedFix string

	Messages []Message
	Issues   []tracker.Issue
	History  map[Handler][]string

	// Outcome lets a terminal handler classify how the walk ended; when
	// unset the orchestrator falls back to a per-handler default.
	Outcome Outcome

	Next Handler
}

// merge applies an update to the state. Append-only fields concatenate in
// order; scalars overwrite only when the update sets them; Next is always
// taken from the update, so a handler that sets nothing terminates the
// walk. An issue carrying a tracker number resolves the unfiled draft with
// the same title in place rather than appending a duplicate record.
func (s *State) merge(u Update) {
	if u.ServiceName != "" {
		s.Service.Name = u.ServiceName
	}
	if u.ServiceKind != "" {
		s.Service.Kind = u.ServiceKind
	}
	if u.RepoURL != "" {
		s.RepoURL = u.RepoURL
	}
	if u.SuggestedFix != "" {
		s.SuggestedFix = u.SuggestedFix
	}
	if u.Outcome != "" {
		s.Outcome = u.Outcome
	}
	s.Conversation = append(s.Conversation, u.Messages...)
	for _, is := range u.Issues {
		if i := matchingDraft(s.Issues, is); i >= 0 {
			s.Issues[i] = is
			continue
		}
		s.Issues = append(s.Issues, is)
	}
	for h, lines := range u.History {
		s.Histories[h] = append(s.Histories[h], lines...)
	}
	s.Next = u.Next
}

// matchingDraft locates the unfiled draft that a freshly filed issue
// resolves: same title, no tracker number yet. Returns -1 when the update
// issue is itself a draft or no draft matches.
func matchingDraft(issues []tracker.Issue, filed tracker.Issue) int {
	if filed.Number == 0 {
		return -1
	}
	for i, is := range issues {
		if is.Number == 0 && is.Title == filed.Title {
			return i
		}
	}
	return -1
}

// LastAssistantText returns the most recent assistant message, or "".
func (s *State) LastAssistantText() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == RoleAssistant {
			return s.Conversation[i].Text
		}
	}
	return ""
}
