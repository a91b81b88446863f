/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/tracker"
)

func TestMergeRules(t *testing.T) {
	st := NewState("what is wrong with foo?")
	st.Service = Service{Name: "foo", Kind: logquery.KindCloudRun}
	st.RepoURL = "https://github.com/acme/shop"

	st.merge(Update{
		ServiceName: "bar",
		Messages:    []Message{{Role: RoleAssistant, Handler: "router", Text: "looking at bar"}},
		Issues:      []tracker.Issue{{Number: 1, Title: "first"}},
		History:     map[Handler][]string{HandlerRouter: {"chose log_analysis"}},
		Next:        HandlerLogAnalysis,
	})

	// Scalars overwrite only when set.
	if st.Service.Name != "bar" {
		t.Errorf("service name = %q, want overwrite to bar", st.Service.Name)
	}
	if st.Service.Kind != logquery.KindCloudRun {
		t.Errorf("service kind = %q, want unchanged", st.Service.Kind)
	}
	if st.RepoURL != "https://github.com/acme/shop" {
		t.Errorf("repo URL = %q, want unchanged", st.RepoURL)
	}

	// Appends concatenate in order.
	st.merge(Update{
		Messages: []Message{{Role: RoleAssistant, Handler: "log_analysis", Text: "found errors"}},
		Issues:   []tracker.Issue{{Number: 2, Title: "second"}},
		History:  map[Handler][]string{HandlerRouter: {"second pass"}},
	})

	wantTexts := []string{"what is wrong with foo?", "looking at bar", "found errors"}
	var gotTexts []string
	for _, m := range st.Conversation {
		gotTexts = append(gotTexts, m.Text)
	}
	if diff := cmp.Diff(wantTexts, gotTexts); diff != "" {
		t.Errorf("conversation order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"chose log_analysis", "second pass"}, st.Histories[HandlerRouter]); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if len(st.Issues) != 2 || st.Issues[0].Number != 1 || st.Issues[1].Number != 2 {
		t.Errorf("issues = %+v, want both in order", st.Issues)
	}

	// Next is consumed per hop: the second merge set nothing.
	if st.Next != HandlerNone {
		t.Errorf("next = %v, want HandlerNone", st.Next)
	}
}

func TestMergeResolvesFiledDraft(t *testing.T) {
	st := NewState("file the issues")
	st.merge(Update{Issues: []tracker.Issue{
		{Title: "crash on checkout"},
		{Title: "slow payments"},
	}})

	// Filing reports the tracker record back; the matching draft is
	// resolved in place, not duplicated.
	st.merge(Update{Issues: []tracker.Issue{
		{Number: 42, Title: "crash on checkout", URL: "https://github.com/acme/shop/issues/42"},
	}})

	want := []tracker.Issue{
		{Number: 42, Title: "crash on checkout", URL: "https://github.com/acme/shop/issues/42"},
		{Title: "slow payments"},
	}
	if diff := cmp.Diff(want, st.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}

	// A filed issue with no matching draft still appends.
	st.merge(Update{Issues: []tracker.Issue{{Number: 7, Title: "unrelated"}}})
	if len(st.Issues) != 3 || st.Issues[2].Number != 7 {
		t.Errorf("issues = %+v, want the unmatched record appended", st.Issues)
	}
}

func TestRunFollowsRoutingAndTerminates(t *testing.T) {
	var visited []Handler
	record := func(h Handler, u Update) StepFunc {
		return func(_ context.Context, _ *State) (Update, error) {
			visited = append(visited, h)
			return u, nil
		}
	}

	o, err := New(map[Handler]StepFunc{
		HandlerRouter:      record(HandlerRouter, Update{Next: HandlerLogAnalysis}),
		HandlerLogAnalysis: record(HandlerLogAnalysis, Update{Messages: []Message{{Role: RoleAssistant, Text: "all quiet"}}}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background(), "check foo")
	if res.Err != nil {
		t.Fatalf("Run() failed: %v", res.Err)
	}
	if diff := cmp.Diff([]Handler{HandlerRouter, HandlerLogAnalysis}, visited); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	if res.Outcome != OutcomeNoProblemFound {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeNoProblemFound)
	}
	if res.Summary != "all quiet" {
		t.Errorf("summary = %q, want last assistant message", res.Summary)
	}
}

func TestRunTerminalOutcomes(t *testing.T) {
	for _, tc := range []struct {
		last Handler
		want Outcome
	}{
		{HandlerClarification, OutcomeClarificationNeeded},
		{HandlerRemediation, OutcomeRemediationAttempted},
		{HandlerRecommendation, OutcomeProblemNotActionable},
		{HandlerIssueFiling, OutcomeProblemNotActionable},
		{HandlerLogAnalysis, OutcomeNoProblemFound},
	} {
		t.Run(tc.last.String(), func(t *testing.T) {
			o, err := New(map[Handler]StepFunc{
				HandlerRouter: func(context.Context, *State) (Update, error) {
					return Update{Next: tc.last}, nil
				},
				tc.last: func(context.Context, *State) (Update, error) {
					return Update{}, nil
				},
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			res := o.Run(context.Background(), "q")
			if res.Outcome != tc.want {
				t.Errorf("outcome = %q, want %q", res.Outcome, tc.want)
			}
		})
	}
}

func TestRunHaltsOnHandlerFailure(t *testing.T) {
	boom := errors.New("backend exploded")
	o, err := New(map[Handler]StepFunc{
		HandlerRouter: func(context.Context, *State) (Update, error) {
			return Update{
				History: map[Handler][]string{HandlerRouter: {"routed"}},
				Next:    HandlerLogAnalysis,
			}, nil
		},
		HandlerLogAnalysis: func(context.Context, *State) (Update, error) {
			return Update{}, boom
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background(), "q")
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeFailed)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("result err = %v, want wrapped %v", res.Err, boom)
	}
	// The failure result carries the state as it was after the last good
	// merge.
	if diff := cmp.Diff([]string{"routed"}, res.State.Histories[HandlerRouter]); diff != "" {
		t.Errorf("state history mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHaltsRoutingLoop(t *testing.T) {
	hops := 0
	o, err := New(map[Handler]StepFunc{
		HandlerRouter: func(context.Context, *State) (Update, error) {
			hops++
			return Update{Next: HandlerRouter}, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background(), "q")
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeFailed)
	}
	if hops != maxSteps {
		t.Errorf("router dispatched %d times, want %d", hops, maxSteps)
	}
}

func TestRunRequiresRouter(t *testing.T) {
	if _, err := New(map[Handler]StepFunc{}); err == nil {
		t.Error("New() accepted a step map without a router")
	}
}

func TestParseHandlerRoundTrip(t *testing.T) {
	for h := HandlerNone; h <= HandlerClarification; h++ {
		got, err := ParseHandler(h.String())
		if err != nil {
			t.Errorf("ParseHandler(%q) error = %v", h.String(), err)
			continue
		}
		if got != h {
			t.Errorf("ParseHandler(%q) = %v, want %v", h.String(), got, h)
		}
	}
	if _, err := ParseHandler("bogus"); err == nil {
		t.Error("ParseHandler(bogus) succeeded, want error")
	}
}
