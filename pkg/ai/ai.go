package ai

import "context"

// Client is the narrow model interface the pipeline and query engine depend
// on. Everything graph-shaped stays deterministic; the model is only asked
// for structured extraction and intent fallback, never free-form prose.
type Client interface {
	// GenerateCompletionWithFormat sends a prompt and unmarshals the
	// response into out, using a JSON schema derived from out's type to
	// enforce structure.
	GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...GenerateOption) error
}

// ModelMetrics tracks accumulated token usage and latency across calls.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// GenerateOptions carries per-call overrides.
type GenerateOptions struct {
	Model         string
	SystemPrompts []string
	Temperature   float64
}

// GenerateOption modifies the options for a single generation call.
type GenerateOption func(*GenerateOptions)

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

func WithSystemPrompt(prompt string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = append(o.SystemPrompts, prompt)
	}
}

func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}
