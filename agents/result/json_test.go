/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{{
		name: "fenced block with prose around it",
		in: "Let me route this request.\n\n```json\n" +
			`{"next_handler": "log_analysis"}` + "\n```\n\nDone.",
		want: `{"next_handler": "log_analysis"}`,
	}, {
		name: "fenced block spanning multiple lines",
		in: "```json\n" + `{
  "title": "404s on /v1/chat",
  "severity": "high"
}` + "\n```",
		want: `{
  "title": "404s on /v1/chat",
  "severity": "high"
}`,
	}, {
		name: "whole response fenced without language",
		in:   "```\n{\"a\": 1}\n```",
		want: `{"a": 1}`,
	}, {
		name: "bare json with whitespace",
		in:   "   {\"a\": 1}\n",
		want: `{"a": 1}`,
	}, {
		name: "empty fenced block",
		in:   "```json\n```",
		want: "",
	}, {
		name: "unterminated fence keeps collected payload",
		in:   "```json\n{\"a\": 1}",
		want: `{"a": 1}`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractJSON() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	type decision struct {
		NextHandler string `json:"next_handler"`
		RepoURL     string `json:"repo_url"`
	}

	got, err := Extract[decision]("```json\n{\"next_handler\": \"remediation\", \"repo_url\": \"https://github.com/acme/api\"}\n```")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := decision{NextHandler: "remediation", RepoURL: "https://github.com/acme/api"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{{
		name: "prose only",
		in:   "I think the log_analysis handler should take this one.",
	}, {
		name: "truncated json",
		in:   "```json\n{\"next_handler\": \n```",
	}, {
		name: "empty response",
		in:   "",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract[map[string]string](tt.in)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Extract() error = %v, want ErrMalformed", err)
			}
		})
	}
}
