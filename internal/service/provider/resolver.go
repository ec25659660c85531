package provider

import (
	"context"
	"fmt"

	"github.com/vithaluntold/accute-agents/internal/config"
)

// Resolver maps an organization to its active backend adapter. The full
// platform resolves per-organization credential records; this service carries
// a static resolver seeded from the environment.
type Resolver interface {
	// Resolve returns the adapter for the organization, or ErrNotConfigured
	// when no provider credentials exist for it.
	Resolve(ctx context.Context, orgID string) (Adapter, error)
}

// NewAdapter constructs the adapter variant selected by the configuration.
func NewAdapter(ctx context.Context, cfg config.ProviderConfig) (Adapter, error) {
	switch cfg.Kind {
	case config.ProviderOpenAI:
		return NewOpenAIAdapter(cfg)
	case config.ProviderAzure:
		return NewAzureAdapter(cfg)
	case config.ProviderAnthropic:
		return NewAnthropicAdapter(cfg)
	case config.ProviderArk:
		return NewArkAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

// StaticResolver serves one adapter for every organization. A nil adapter
// means no provider is configured.
type StaticResolver struct {
	adapter Adapter
}

// NewStaticResolver builds a resolver from the service-level provider config.
// When credentials are absent the resolver reports ErrNotConfigured instead
// of failing startup.
func NewStaticResolver(ctx context.Context, cfg config.ProviderConfig) (*StaticResolver, error) {
	if !cfg.Enabled() {
		return &StaticResolver{}, nil
	}
	adapter, err := NewAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &StaticResolver{adapter: adapter}, nil
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(_ context.Context, _ string) (Adapter, error) {
	if r.adapter == nil {
		return nil, ErrNotConfigured
	}
	return r.adapter, nil
}
