package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrStreamingUnsupported = errors.New("ai: provider does not support streaming")

// Gateway maps an opaque model name onto a provider handle.
//
// Accepted forms:
//
//	""               default provider, default model
//	"provider:model" named provider, given model
//	"model"          default provider, given model
//
// A prefix only counts as a provider when it is registered, so Ollama tags
// like "llama3:latest" pass through untouched.
type Gateway struct {
	registry        *Registry
	defaultProvider string
	defaultModel    string
}

func NewGateway(registry *Registry, defaultProvider, defaultModel string) *Gateway {
	return &Gateway{
		registry:        registry,
		defaultProvider: normalizeName(defaultProvider),
		defaultModel:    strings.TrimSpace(defaultModel),
	}
}

func (g *Gateway) DefaultModel() string {
	return g.defaultProvider + ":" + g.defaultModel
}

// Split resolves a model name into its provider and model parts.
func (g *Gateway) Split(model string) (provider, name string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return g.defaultProvider, g.defaultModel
	}
	if i := strings.Index(model, ":"); i > 0 && g.registry.Has(model[:i]) {
		provider, name = normalizeName(model[:i]), strings.TrimSpace(model[i+1:])
		if name == "" && provider == g.defaultProvider {
			name = g.defaultModel
		}
		return provider, name
	}
	return g.defaultProvider, model
}

func (g *Gateway) Resolve(ctx context.Context, model string) (Provider, error) {
	provider, name := g.Split(model)
	p, err := g.registry.Get(ctx, provider, name)
	if err != nil {
		return nil, fmt.Errorf("resolve model %q: %w", model, err)
	}
	return p, nil
}

func (g *Gateway) ResolveStream(ctx context.Context, model string) (StreamProvider, error) {
	p, err := g.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(StreamProvider)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return sp, nil
}
