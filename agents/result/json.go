/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates the model's response could not be parsed as the
// expected structured payload.
var ErrMalformed = errors.New("malformed model output")

// ExtractJSON returns the JSON payload embedded in a model response.
// It prefers the first ```json fenced block, falls back to a bare ``` fence
// wrapping the whole response, and finally returns the trimmed input.
func ExtractJSON(text string) string {
	if block, ok := fencedBlock(text); ok {
		return block
	}

	text = strings.TrimSpace(text)

	// Some models fence the entire response without a newline-delimited
	// block, or use anonymous fences. Both trims are no-ops otherwise.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}

// fencedBlock scans for a ```json opener on its own line and collects
// content until the closing fence. The bool reports whether a block was
// found, even when it was empty.
func fencedBlock(text string) (string, bool) {
	var (
		payload strings.Builder
		open    bool
		found   bool
	)
	for _, line := range strings.Split(text, "\n") {
		switch {
		case !open && strings.TrimSpace(line) == "```json":
			open = true
			found = true
		case open && strings.TrimSpace(line) == "```":
			return strings.TrimSpace(payload.String()), true
		case open:
			if payload.Len() > 0 {
				payload.WriteByte('\n')
			}
			payload.WriteString(line)
		}
	}
	if found {
		return strings.TrimSpace(payload.String()), true
	}
	return "", false
}

// Extract parses the JSON payload of a model response into T.
// Failures wrap ErrMalformed.
func Extract[T any](text string) (T, error) {
	var out T
	payload := ExtractJSON(text)
	if payload == "" {
		return out, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
