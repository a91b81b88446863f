/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"

	"github.com/opsleuth/opsleuth/agents/retry"
)

// Gemini runs inference against the Google GenAI API.
type Gemini struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	retryConfig     retry.Config
}

// GeminiOption configures a Gemini provider.
type GeminiOption func(*Gemini) error

// WithGeminiModel sets the model used for generation.
func WithGeminiModel(model string) GeminiOption {
	return func(g *Gemini) error {
		if !strings.HasPrefix(model, "gemini-") {
			return fmt.Errorf("model %q does not appear to be a Gemini model", model)
		}
		g.model = model
		return nil
	}
}

// WithGeminiTemperature sets the sampling temperature (0.0 to 2.0).
func WithGeminiTemperature(temperature float32) GeminiOption {
	return func(g *Gemini) error {
		if temperature < 0.0 || temperature > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temperature)
		}
		g.temperature = temperature
		return nil
	}
}

// WithGeminiMaxOutputTokens caps the completion length.
func WithGeminiMaxOutputTokens(tokens int32) GeminiOption {
	return func(g *Gemini) error {
		if tokens <= 0 {
			return fmt.Errorf("max output tokens must be positive, got %d", tokens)
		}
		g.maxOutputTokens = tokens
		return nil
	}
}

// WithGeminiRetryConfig overrides the default retry behavior.
func WithGeminiRetryConfig(cfg retry.Config) GeminiOption {
	return func(g *Gemini) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		g.retryConfig = cfg
		return nil
	}
}

// NewGemini constructs a Gemini-backed provider.
func NewGemini(client *genai.Client, opts ...GeminiOption) (*Gemini, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	g := &Gemini{
		client:          client,
		model:           "gemini-2.5-flash",
		temperature:     0.1,
		maxOutputTokens: 8192,
		retryConfig:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return g, nil
}

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	log := clog.FromContext(ctx)
	log.With("model", g.model).With("prompt_length", len(prompt)).Info("Sending Gemini generation request")

	config := &genai.GenerateContentConfig{
		Temperature:     ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
	}

	resp, err := retry.Do(ctx, g.retryConfig, "gemini_generate", isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
		return g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return text, nil
}

// isRetryableGeminiError reports rate limit, quota, and transient server
// errors. The genai SDK does not expose a stable error type for these, so
// this matches on message content.
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"RESOURCE_EXHAUSTED",
		"Resource exhausted",
		"rate limit",
		"quota exceeded",
		"429",
		"503",
		"Overloaded",
		"Internal error",
		"server error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
