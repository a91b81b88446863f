/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"

	"github.com/opsleuth/opsleuth/agents/retry"
)

// OpenAI runs inference against the OpenAI chat completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	retryConfig retry.Config
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI) error

// WithOpenAIModel sets the model used for generation.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAI) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		o.model = model
		return nil
	}
}

// WithOpenAITemperature sets the sampling temperature (0.0 to 2.0).
func WithOpenAITemperature(temperature float64) OpenAIOption {
	return func(o *OpenAI) error {
		if temperature < 0.0 || temperature > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temperature)
		}
		o.temperature = temperature
		return nil
	}
}

// WithOpenAIRetryConfig overrides the default retry behavior.
func WithOpenAIRetryConfig(cfg retry.Config) OpenAIOption {
	return func(o *OpenAI) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		o.retryConfig = cfg
		return nil
	}
}

// NewOpenAI constructs an OpenAI-backed provider.
func NewOpenAI(client openai.Client, opts ...OpenAIOption) (*OpenAI, error) {
	o := &OpenAI{
		client:      client,
		model:       string(openai.ChatModelGPT4o),
		temperature: 0.1,
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return o, nil
}

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	log := clog.FromContext(ctx)
	log.With("model", o.model).With("prompt_length", len(prompt)).Info("Sending OpenAI generation request")

	completion, err := retry.Do(ctx, o.retryConfig, "openai_generate", isRetryableOpenAIError, func() (*openai.ChatCompletion, error) {
		return o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(o.model),
			Temperature: openai.Float(o.temperature),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return completion.Choices[0].Message.Content, nil
}

// isRetryableOpenAIError reports rate limit and transient server errors.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
