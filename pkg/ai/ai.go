// Package ai abstracts the model providers used for concept scoring. Concrete
// clients live in the openai and ollama subpackages; callers depend only on
// ScorerAIClient.
package ai

import (
	"context"
)

// GenerateOptions collects per-request generation settings. Zero values mean
// the client's configured defaults.
type GenerateOptions struct {
	Model         string
	SystemPrompts []string
	Temperature   float64
	Thinking      string
}

// ModelMetrics accumulates token and timing counters across the requests made
// since the last reset.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption mutates the options of a single generation request.
type GenerateOption func(*GenerateOptions)

// WithModel overrides the client's configured scoring model.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts sets the system prompts prepended to the request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithThinking enables extended thinking with the given budget or mode
// string, for providers that support it.
func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// ScorerAIClient is the provider surface needed for section-concept scoring:
// schema-constrained text generation plus embeddings, with metrics tracking
// for per-message reporting in the worker.
type ScorerAIClient interface {
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
