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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"

	"github.com/opsleuth/opsleuth/agents/retry"
)

// Claude runs inference against the Anthropic API.
type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	retryConfig retry.Config
}

// ClaudeOption configures a Claude provider.
type ClaudeOption func(*Claude) error

// WithClaudeModel sets the model used for generation.
func WithClaudeModel(model string) ClaudeOption {
	return func(c *Claude) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithClaudeMaxTokens caps the completion length.
func WithClaudeMaxTokens(tokens int64) ClaudeOption {
	return func(c *Claude) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		c.maxTokens = tokens
		return nil
	}
}

// WithClaudeTemperature sets the sampling temperature (0.0 to 1.0).
func WithClaudeTemperature(temperature float64) ClaudeOption {
	return func(c *Claude) error {
		if temperature < 0.0 || temperature > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temperature)
		}
		c.temperature = temperature
		return nil
	}
}

// WithClaudeRetryConfig overrides the default retry behavior.
func WithClaudeRetryConfig(cfg retry.Config) ClaudeOption {
	return func(c *Claude) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		c.retryConfig = cfg
		return nil
	}
}

// NewClaude constructs a Claude-backed provider.
func NewClaude(client anthropic.Client, opts ...ClaudeOption) (*Claude, error) {
	c := &Claude{
		client:      client,
		model:       "claude-sonnet-4@20250514",
		maxTokens:   8192,
		temperature: 0.1,
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return c, nil
}

// Generate implements Provider.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	log := clog.FromContext(ctx)
	log.With("model", c.model).With("prompt_length", len(prompt)).Info("Sending Claude generation request")

	msg, err := retry.Do(ctx, c.retryConfig, "claude_generate", isRetryableClaudeError, func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(c.model),
			MaxTokens:   c.maxTokens,
			Temperature: anthropic.Float(c.temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return sb.String(), nil
}

// isRetryableClaudeError reports rate limit, overloaded, and transient
// server errors.
func isRetryableClaudeError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
