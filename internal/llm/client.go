// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderNone      Provider = ""
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string

	// BaseURL overrides the provider endpoint; empty uses the public API.
	BaseURL string
}

// NewClient creates a new LLM client based on provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.BaseURL)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
