package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"deepsearch/internal/config"
	"deepsearch/internal/domain"
)

// Constructor creates a provider from a config entry.
type Constructor func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Provider, error)

// Registry holds the adapters in declaration order. The order is fixed at
// construction and drives both fan-out and heading order.
type Registry struct {
	providers []domain.Provider
	byName    map[string]domain.Provider
}

var constructors = map[string]Constructor{
	"openai": func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Provider, error) {
		return NewOpenAI(OpenAIConfig{
			Name:        name,
			DisplayName: pc.DisplayName,
			APIKey:      pc.APIKey,
			APIBase:     pc.APIBase,
			Model:       pc.DefaultModel,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
			Headers:     pc.Headers,
			HTTPClient:  client,
			Logger:      logger,
		}), nil
	},
	"gemini": func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Provider, error) {
		return NewGemini(GeminiConfig{
			Name:        name,
			DisplayName: pc.DisplayName,
			APIKey:      pc.APIKey,
			APIBase:     pc.APIBase,
			Model:       pc.DefaultModel,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
			HTTPClient:  client,
			Logger:      logger,
		})
	},
}

// NewRegistry builds every enabled provider listed in general.providerOrder.
// Disabled entries are skipped; unconfigured ones are kept so health and
// metadata can still report them.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	client := SharedHTTPClient(time.Duration(cfg.General.ProviderTimeoutSeconds) * time.Second)

	providers := make([]domain.Provider, 0, len(cfg.General.ProviderOrder))
	for _, name := range cfg.General.ProviderOrder {
		pc, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s", name)
		}
		if !pc.Enabled {
			logger.Debug("provider disabled", "provider", name)
			continue
		}
		ctor, ok := constructors[pc.Kind]
		if !ok {
			return nil, fmt.Errorf("provider %s: unsupported kind %q", name, pc.Kind)
		}
		p, err := ctor(name, pc, client, logger)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	return NewRegistryFrom(providers...), nil
}

// NewRegistryFrom wraps already-constructed providers, keeping their order.
func NewRegistryFrom(providers ...domain.Provider) *Registry {
	r := &Registry{
		providers: providers,
		byName:    make(map[string]domain.Provider, len(providers)),
	}
	for _, p := range providers {
		r.byName[p.Name()] = p
	}
	return r
}

// All returns every registered provider in declaration order.
func (r *Registry) All() []domain.Provider {
	out := make([]domain.Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Available returns the configured providers in declaration order.
func (r *Registry) Available() []domain.Provider {
	var out []domain.Provider
	for _, p := range r.providers {
		if p.Configured() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Get(name string) (domain.Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}
