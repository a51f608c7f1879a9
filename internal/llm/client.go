// Package llm provides the reasoning-service clients behind the subconscious
// and conscious passes.
package llm

import (
	"context"
	"errors"
	"time"
)

// Client is a text-completion reasoning service. Implementations must honor
// ctx cancellation.
type Client interface {
	Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error)
}

// ErrNoAPIKey is returned by providers that need a key when none is set.
var ErrNoAPIKey = errors.New("API key not configured")

// CallOptions are per-call overrides of the client defaults.
type CallOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object response
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithModel overrides the client's default model for one call.
func WithModel(model string) CallOption {
	return func(o *CallOptions) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// WithJSON requests a JSON object response where the provider supports it.
func WithJSON() CallOption {
	return func(o *CallOptions) { o.JSON = true }
}

func applyOptions(defaultModel string, opts []CallOption) CallOptions {
	o := CallOptions{Model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	return o
}

// withDefaultTimeout bounds ctx by d when it carries no deadline.
func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
