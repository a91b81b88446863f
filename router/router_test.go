/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package router

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/workflow"
)

func fixedAnswer(answer string) inference.Provider {
	return inference.Func(func(context.Context, string) (string, error) {
		return answer, nil
	})
}

func TestExtractService(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want workflow.Service
	}{{
		name: "cloud run with service keyword",
		text: "what is wrong with my cloud run service checkout?",
		want: workflow.Service{Name: "checkout", Kind: logquery.KindCloudRun},
	}, {
		name: "cloud run quoted",
		text: `errors in cloud run "foo-bar"`,
		want: workflow.Service{Name: "foo-bar", Kind: logquery.KindCloudRun},
	}, {
		name: "cloud build logs",
		text: "look at cloud build logs for nightly-release",
		want: workflow.Service{Name: "nightly-release", Kind: logquery.KindCloudBuild},
	}, {
		name: "cloud function",
		text: "cloud function resize-images keeps timing out",
		want: workflow.Service{Name: "resize-images", Kind: logquery.KindCloudFunctions},
	}, {
		name: "gce instance",
		text: "gce instance web-1 is unreachable",
		want: workflow.Service{Name: "web-1", Kind: logquery.KindGCE},
	}, {
		name: "gke cluster",
		text: "diagnose gke cluster prod-east",
		want: workflow.Service{Name: "prod-east", Kind: logquery.KindGKE},
	}, {
		name: "app engine",
		text: "app engine service default is failing",
		want: workflow.Service{Name: "default", Kind: logquery.KindAppEngine},
	}, {
		name: "no service mention",
		text: "everything is broken, help",
		want: workflow.Service{},
	}} {
		t.Run(tc.name, func(t *testing.T) {
			got := extractService(tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("extractService(%q) mismatch (-want +got):\n%s", tc.text, diff)
			}
		})
	}
}

func TestExtractRepoURLNewestWins(t *testing.T) {
	st := workflow.NewState("check https://github.com/acme/old")
	st.Conversation = append(st.Conversation,
		workflow.Message{Role: workflow.RoleUser, Text: "actually use https://github.com/acme/new.git"},
	)
	if got, want := extractRepoURL(st), "https://github.com/acme/new"; got != want {
		t.Errorf("extractRepoURL() = %q, want %q", got, want)
	}

	st.Conversation = append(st.Conversation,
		workflow.Message{Role: workflow.RoleUser, Text: "not https://github.com/acme/stale, use https://github.com/acme/final"},
	)
	if got, want := extractRepoURL(st), "https://github.com/acme/final"; got != want {
		t.Errorf("extractRepoURL() = %q, want %q", got, want)
	}
}

func TestStepRoutesAndExtracts(t *testing.T) {
	r, err := New(fixedAnswer("```json\n{\"next_handler\": \"log_analysis\"}\n```"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st := workflow.NewState("what is wrong with my cloud run service checkout? code: https://github.com/acme/shop")
	update, err := r.Step(context.Background(), st)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if update.Next != workflow.HandlerLogAnalysis {
		t.Errorf("next = %v, want log analysis", update.Next)
	}
	if update.ServiceName != "checkout" || update.ServiceKind != logquery.KindCloudRun {
		t.Errorf("service = %q/%q, want checkout/cloud_run", update.ServiceName, update.ServiceKind)
	}
	if update.RepoURL != "https://github.com/acme/shop" {
		t.Errorf("repo = %q, want extracted URL", update.RepoURL)
	}
}

func TestStepMalformedAnswerDefaultsToLogAnalysis(t *testing.T) {
	r, err := New(fixedAnswer("I think you should look at the logs."))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st := workflow.NewState("cloud run service checkout is erroring")
	update, err := r.Step(context.Background(), st)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if update.Next != workflow.HandlerLogAnalysis {
		t.Errorf("next = %v, want log analysis fallback", update.Next)
	}
	notes := update.History[workflow.HandlerRouter]
	if len(notes) == 0 || !strings.Contains(notes[0], "malformed") {
		t.Errorf("history = %v, want a malformed-answer note", notes)
	}
}

func TestStepClarifyOverrideWithoutRepo(t *testing.T) {
	for _, handler := range []string{"remediation", "issue_filing"} {
		t.Run(handler, func(t *testing.T) {
			r, err := New(fixedAnswer("```json\n{\"next_handler\": \"" + handler + "\"}\n```"))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			st := workflow.NewState("fix my cloud run service checkout")
			update, err := r.Step(context.Background(), st)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if update.Next != workflow.HandlerClarification {
				t.Errorf("next = %v, want clarification override", update.Next)
			}
		})
	}
}

func TestStepNoOverrideWhenRepoKnown(t *testing.T) {
	r, err := New(fixedAnswer("```json\n{\"next_handler\": \"remediation\", \"repo_url\": \"https://github.com/acme/shop\"}\n```"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st := workflow.NewState("fix my cloud run service checkout")
	update, err := r.Step(context.Background(), st)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if update.Next != workflow.HandlerRemediation {
		t.Errorf("next = %v, want remediation", update.Next)
	}
	if update.RepoURL != "https://github.com/acme/shop" {
		t.Errorf("repo = %q, want the model-supplied URL", update.RepoURL)
	}
}

func TestStepPropagatesInferenceFailure(t *testing.T) {
	r, err := New(inference.Func(func(context.Context, string) (string, error) {
		return "", inference.ErrUnavailable
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := r.Step(context.Background(), workflow.NewState("q")); err == nil {
		t.Error("Step() succeeded, want inference failure")
	}
}
