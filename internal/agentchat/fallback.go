package agentchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/vinayprograms/agentkit/llm"
)

// FallbackProvider tries each provider in order and returns the first
// successful response, the way a model list is used.
type FallbackProvider struct {
	providers []llm.Provider
}

// NewFallbackProvider wraps providers. A single provider is returned as is.
func NewFallbackProvider(providers ...llm.Provider) llm.Provider {
	var live []llm.Provider
	for _, p := range providers {
		if p != nil {
			live = append(live, p)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &FallbackProvider{providers: live}
}

// Name identifies the provider chain.
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// Chat sends req to each provider until one succeeds.
func (f *FallbackProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	var errs []error
	for i, p := range f.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("model %d: %w", i+1, err))
	}
	return nil, errors.Join(errs...)
}
