package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/suPer8Hu/companion-api/internal/config"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// NewRegistryFromConfig registers groq, openrouter and ollama. Factories for
// hosted providers return ErrNotConfigured when no API key is set.
func NewRegistryFromConfig(cfg config.Config) *Registry {
	reg := NewRegistry()

	reg.Register("groq", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return nil, ErrNotConfigured
		}
		if model == "" {
			model = cfg.GroqModel
		}
		p := NewOpenAIProvider("groq", cfg.GroqBaseURL, cfg.GroqAPIKey, model)
		p.Temperature, p.MaxTokens = cfg.AITemperature, cfg.AIMaxTokens
		return p, nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
			return nil, ErrNotConfigured
		}
		if model == "" {
			model = cfg.OpenRouterModel
		}
		p := NewOpenAIProvider("openrouter", cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model)
		p.Temperature, p.MaxTokens = cfg.AITemperature, cfg.AIMaxTokens
		p.SiteURL, p.AppName = cfg.OpenRouterSiteURL, cfg.OpenRouterAppName
		return p, nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		p := NewOllamaProvider(cfg.OllamaBaseURL, model)
		p.Temperature, p.MaxTokens = cfg.AITemperature, cfg.AIMaxTokens
		return p, nil
	})

	return reg
}
