package agent

import (
	"context"
	"fmt"
)

// Provider is the model completion collaborator consumed by the loop.
type Provider interface {
	// Name returns the provider name for logs and metrics.
	Name() string

	// Stream requests a completion for the given conversation, invoking
	// onDelta for each text fragment as it arrives, and returns the full
	// completion text. An error returned by onDelta aborts the stream.
	Stream(ctx context.Context, req CompletionRequest, onDelta func(delta string) error) (string, error)
}

// CompletionRequest carries the conversation and sampling configuration for
// one model call.
type CompletionRequest struct {
	Messages    []Message
	Stop        []string
	Temperature float64
	MaxTokens   int
}

// ProviderConfig configures the provider factory.
type ProviderConfig struct {
	Name        string // "openai" or "anthropic"
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewProvider creates a provider from configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Name)
	}
}
