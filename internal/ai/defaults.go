package ai

import (
	"context"
	"strings"
)

// Settings holds connection details for the built-in providers.
type Settings struct {
	OllamaBaseURL string
	OllamaModel   string

	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
}

// NewDefaultRegistry registers Ollama, and OpenRouter when an API key is set.
func NewDefaultRegistry(s Settings) *Registry {
	reg := NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = s.OllamaModel
		}
		return NewOllamaProvider(s.OllamaBaseURL, m), nil
	})

	if strings.TrimSpace(s.OpenRouterAPIKey) != "" {
		reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
			_ = ctx
			m := strings.TrimSpace(model)
			if m == "" {
				m = s.OpenRouterModel
			}
			return NewOpenRouterProvider(s.OpenRouterBaseURL, s.OpenRouterAPIKey, m, s.OpenRouterSiteURL, s.OpenRouterAppName), nil
		})
	}
	return reg
}
