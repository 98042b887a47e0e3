package domain

import "context"

// Provider is the interface every upstream chat-completion adapter implements.
// Complete sends exactly one request; adapters never retry.
type Provider interface {
	Name() string
	DisplayName() string
	Configured() bool
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is the provider-neutral request shape. Zero MaxTokens and nil
// Temperature fall back to the adapter's configured values.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
}

// ProviderResult is the outcome of one adapter invocation in an aggregation round.
type ProviderResult struct {
	Provider string
	Text     string
	Err      error
}

func (r ProviderResult) OK() bool {
	return r.Err == nil
}
