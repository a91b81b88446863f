/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

func TestGeminiOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		opt     GeminiOption
		wantErr bool
	}{{
		name: "valid model",
		opt:  WithGeminiModel("gemini-2.5-pro"),
	}, {
		name:    "non-gemini model",
		opt:     WithGeminiModel("claude-sonnet-4"),
		wantErr: true,
	}, {
		name: "valid temperature",
		opt:  WithGeminiTemperature(0.7),
	}, {
		name:    "temperature out of range",
		opt:     WithGeminiTemperature(2.5),
		wantErr: true,
	}, {
		name:    "non-positive max tokens",
		opt:     WithGeminiMaxOutputTokens(0),
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGemini(&genai.Client{}, tt.opt)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGemini() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGeminiRejectsNilClient(t *testing.T) {
	if _, err := NewGemini(nil); err == nil {
		t.Error("NewGemini(nil) did not error")
	}
}

func TestClaudeOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		opt     ClaudeOption
		wantErr bool
	}{{
		name: "valid temperature",
		opt:  WithClaudeTemperature(0.3),
	}, {
		name:    "temperature out of range",
		opt:     WithClaudeTemperature(1.5),
		wantErr: true,
	}, {
		name:    "empty model",
		opt:     WithClaudeModel(""),
		wantErr: true,
	}, {
		name:    "non-positive max tokens",
		opt:     WithClaudeMaxTokens(-1),
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClaude(anthropic.Client{}, tt.opt)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClaude() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIOptionValidation(t *testing.T) {
	if _, err := NewOpenAI(openai.Client{}, WithOpenAIModel("")); err == nil {
		t.Error("NewOpenAI() accepted empty model")
	}
	if _, err := NewOpenAI(openai.Client{}, WithOpenAITemperature(3)); err == nil {
		t.Error("NewOpenAI() accepted out-of-range temperature")
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{{
		name: "gemini resource exhausted",
		fn:   isRetryableGeminiError,
		err:  errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"),
		want: true,
	}, {
		name: "gemini invalid argument",
		fn:   isRetryableGeminiError,
		err:  errors.New("googleapi: Error 400: INVALID_ARGUMENT"),
		want: false,
	}, {
		name: "gemini nil error",
		fn:   isRetryableGeminiError,
		err:  nil,
		want: false,
	}, {
		name: "claude overloaded",
		fn:   isRetryableClaudeError,
		err:  &anthropic.Error{StatusCode: 529},
		want: true,
	}, {
		name: "claude bad request",
		fn:   isRetryableClaudeError,
		err:  &anthropic.Error{StatusCode: 400},
		want: false,
	}, {
		name: "openai rate limited",
		fn:   isRetryableOpenAIError,
		err:  &openai.Error{StatusCode: 429},
		want: true,
	}, {
		name: "openai unauthorized",
		fn:   isRetryableOpenAIError,
		err:  &openai.Error{StatusCode: 401},
		want: false,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("classification = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuncAdapter(t *testing.T) {
	p := Func(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	got, err := p.Generate(context.Background(), "hi")
	if err != nil || got != "echo: hi" {
		t.Errorf("Generate() = %q, %v", got, err)
	}
}
