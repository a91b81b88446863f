/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildBindsAllSlots(t *testing.T) {
	p, err := New("Analyze logs for {{service}}:\n{{logs}}")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p, err = p.BindString("service", "checkout-api")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}
	p, err = p.BindString("logs", "line one\nline two")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}

	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "Analyze logs for checkout-api:\nline one\nline two"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFailsOnUnboundSlot(t *testing.T) {
	p := MustNew("{{query}} against {{service}}")
	p, err := p.BindString("query", "why is latency up")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}
	if _, err := p.Build(); err == nil || !strings.Contains(err.Error(), "service") {
		t.Errorf("Build() error = %v, want unbound placeholder mention of service", err)
	}
}

func TestBindRejectsUnknownAndDoubleBinding(t *testing.T) {
	p := MustNew("hello {{name}}")
	if _, err := p.BindString("nope", "x"); err == nil {
		t.Error("BindString() accepted unknown placeholder")
	}
	p, err := p.BindString("name", "world")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}
	if _, err := p.BindString("name", "again"); err == nil {
		t.Error("BindString() accepted double binding")
	}
}

func TestBindIsCopyOnWrite(t *testing.T) {
	base := MustNew("{{a}}")
	first, err := base.BindString("a", "one")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}
	second, err := base.BindString("a", "two")
	if err != nil {
		t.Fatalf("BindString() error = %v", err)
	}

	got1, _ := first.Build()
	got2, _ := second.Build()
	if got1 != "one" || got2 != "two" {
		t.Errorf("Build() = %q, %q; bindings leaked across copies", got1, got2)
	}
}

func TestBindJSON(t *testing.T) {
	p := MustNew("Existing issues:\n{{issues}}")
	p, err := p.BindJSON("issues", []map[string]string{{"title": "NPE in handler"}})
	if err != nil {
		t.Fatalf("BindJSON() error = %v", err)
	}
	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(got, `"title": "NPE in handler"`) {
		t.Errorf("Build() = %q, want embedded JSON", got)
	}
}

func TestBindYAML(t *testing.T) {
	p := MustNew("attempts:\n{{attempts}}")
	p, err := p.BindYAML("attempts", []map[string]any{{"filter": "service_name", "entries": 0}})
	if err != nil {
		t.Fatalf("BindYAML() error = %v", err)
	}
	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(got, "filter: service_name") {
		t.Errorf("Build() = %q, want embedded YAML", got)
	}
}

func TestNewRejectsMalformedPlaceholder(t *testing.T) {
	if _, err := New("broken {{place holder}}"); err == nil {
		t.Error("New() accepted malformed placeholder")
	}
}
