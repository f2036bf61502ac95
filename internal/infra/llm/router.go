package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/config"
)

// Router selects a LLMProvider at request time.
type Router struct {
	providers       map[string]LLMProvider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]LLMProvider, defaultProvider string) *Router {
	ps := make(map[string]LLMProvider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// NewRouterFromConfig registers every provider the configuration can build
// and makes cfg.LLMProvider the default.
func NewRouterFromConfig(cfg config.Config) (*Router, error) {
	providers := map[string]LLMProvider{}

	if cfg.OllamaBaseURL != "" {
		providers[config.ProviderOllama] = NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel)
	}
	if cfg.AnthropicAPIKey != "" {
		var opts []option.RequestOption
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
		}
		p, err := NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("llm router: %w", err)
		}
		providers[config.ProviderAnthropic] = p
	}

	r := NewRouter(providers, cfg.LLMProvider)
	if _, err := r.Route(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// Route returns the provider for the current request: always the default.
// Returns an error if the default provider is not registered.
func (r *Router) Route(_ context.Context) (LLMProvider, error) {
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", r.defaultProvider, r.keys())
	}
	return p, nil
}

// HealthCheck routes to the default provider and checks it.
func (r *Router) HealthCheck(ctx context.Context) error {
	p, err := r.Route(ctx)
	if err != nil {
		return err
	}
	if err := p.HealthCheck(ctx); err != nil {
		return fmt.Errorf("llm provider %q: %w", r.defaultProvider, err)
	}
	return nil
}

// keys returns the registered provider names (for error messages).
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	return out
}
