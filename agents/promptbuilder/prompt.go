/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder assembles model prompts from templates with named
// {{placeholder}} slots. Binding returns a new Prompt, so a parsed template
// can be shared and bound per request. Build fails if any slot is unbound,
// which catches prompt drift at the call site instead of in model output.
package promptbuilder

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// Prompt is a template with zero or more named slots.
type Prompt struct {
	template string
	bound    map[string]string
	slots    map[string]struct{}
}

// New parses a template and records its placeholder slots.
func New(template string) (*Prompt, error) {
	slots := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		slots[m[1]] = struct{}{}
	}
	if leftover := placeholderPattern.ReplaceAllString(template, ""); strings.Contains(leftover, "{{") {
		return nil, fmt.Errorf("template contains a malformed placeholder")
	}
	return &Prompt{
		template: template,
		bound:    map[string]string{},
		slots:    slots,
	}, nil
}

// MustNew is New for package-level template literals.
func MustNew(template string) *Prompt {
	p, err := New(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Slots returns the set of placeholder names in the template.
func (p *Prompt) Slots() map[string]struct{} {
	return maps.Clone(p.slots)
}

func (p *Prompt) bind(name, value string) (*Prompt, error) {
	if _, ok := p.slots[name]; !ok {
		return nil, fmt.Errorf("no placeholder %q in template", name)
	}
	if _, ok := p.bound[name]; ok {
		return nil, fmt.Errorf("placeholder %q is already bound", name)
	}
	next := &Prompt{
		template: p.template,
		bound:    maps.Clone(p.bound),
		slots:    p.slots,
	}
	next.bound[name] = value
	return next, nil
}

// BindString binds a plain string value to a slot.
func (p *Prompt) BindString(name, value string) (*Prompt, error) {
	return p.bind(name, value)
}

// BindJSON marshals data as indented JSON and binds it to a slot.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %q binding: %w", name, err)
	}
	return p.bind(name, string(b))
}

// BindYAML marshals data as YAML and binds it to a slot. YAML reads well in
// prompts for nested structures the model only needs to reference.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %q binding: %w", name, err)
	}
	return p.bind(name, strings.TrimRight(string(b), "\n"))
}

// Build renders the template. It fails if any slot remains unbound.
func (p *Prompt) Build() (string, error) {
	var missing []string
	for slot := range p.slots {
		if _, ok := p.bound[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", "))
	}

	return placeholderPattern.ReplaceAllStringFunc(p.template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return p.bound[name]
	}), nil
}
