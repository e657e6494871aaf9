package provider

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// Constructor builds a provider from one rule's LLM config.
type Constructor func(llm config.LLMConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error)

// Factory creates and caches LLM backends. Rules that share the same
// provider settings reuse the same client and its connection pool.
type Factory struct {
	timeout      time.Duration
	logger       *slog.Logger
	constructors map[string]Constructor
	cache        map[string]domain.Provider
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in constructors
// registered. The timeout applies uniformly to every backend call.
func NewFactory(timeout time.Duration, logger *slog.Logger) *Factory {
	f := &Factory{
		timeout:      timeout,
		logger:       logger,
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Provider),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a provider constructor by tag.
func (f *Factory) RegisterConstructor(tag string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[tag] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["anthropic"] = func(llm config.LLMConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewAnthropic(AnthropicConfig{
			APIKey:  llm.APIKey,
			BaseURL: llm.BaseURL,
			Model:   llm.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	}

	f.constructors["openrouter"] = func(llm config.LLMConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewOpenRouter(OpenRouterConfig{
			APIKey:   llm.APIKey,
			BaseURL:  llm.BaseURL,
			Model:    llm.Model,
			SiteURL:  llm.SiteURL,
			SiteName: llm.SiteName,
			Timeout:  timeout,
			Logger:   logger,
		}), nil
	}

	f.constructors["bedrock"] = func(llm config.LLMConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewBedrock(BedrockConfig{
			Region:  llm.Region,
			Model:   llm.Model,
			Timeout: timeout,
			Logger:  logger,
		})
	}
}

// Get returns the backend for the given rule config, creating it on
// first use. Uses double-check locking to avoid TOCTOU races.
func (f *Factory) Get(llm config.LLMConfig) (domain.Provider, error) {
	key := cacheKey(llm)

	// Fast path: read lock.
	f.mu.RLock()
	if cached, ok := f.cache[key]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	// Slow path: write lock with double-check.
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[key]; ok {
		return cached, nil
	}

	ctor, ok := f.constructors[llm.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", llm.Provider)
	}
	p, err := ctor(llm, f.timeout, f.logger)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", llm.Provider, err)
	}

	f.cache[key] = p
	return p, nil
}

func cacheKey(llm config.LLMConfig) string {
	return llm.Provider + "|" + llm.Model + "|" + llm.BaseURL + "|" + llm.Region + "|" + llm.APIKey
}
