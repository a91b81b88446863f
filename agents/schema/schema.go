/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package schema derives JSON schemas for the structured payloads we ask
// models to produce. Embedding the schema in the prompt keeps the response
// contract next to the type that parses it.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generator wraps jsonschema.Reflector with the defaults we want for
// response contracts: required-by-default fields and inline definitions.
type Generator struct {
	reflector jsonschema.Reflector
}

// NewGenerator constructs a generator with project defaults.
func NewGenerator() *Generator {
	return &Generator{
		reflector: jsonschema.Reflector{
			RequiredFromJSONSchemaTags: true,
			ExpandedStruct:             true,
			DoNotReference:             true,
		},
	}
}

// Reflect returns the JSON schema for the provided value.
func (g *Generator) Reflect(v any) *jsonschema.Schema {
	return g.reflector.Reflect(v)
}

// MarshalFor renders the schema for T as indented JSON suitable for
// embedding in a prompt.
func MarshalFor[T any]() (string, error) {
	var zero T
	b, err := json.MarshalIndent(NewGenerator().Reflect(&zero), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return string(b), nil
}
