package tool

import (
	"fmt"
	"log/slog"
	"sync"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// Factory builds tool instances from configuration. Seen-article stores
// are shared across tools pointing at the same data file so concurrent
// executions serialize on one connection.
type Factory struct {
	logger *slog.Logger
	mu     sync.Mutex
	stores map[string]*SeenStore
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{
		logger: logger,
		stores: make(map[string]*SeenStore),
	}
}

// BuildAll constructs every tool in a rule's list, in order.
func (f *Factory) BuildAll(cfgs []config.ToolConfig) ([]domain.Tool, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	tools := make([]domain.Tool, 0, len(cfgs))
	for i, tc := range cfgs {
		t, err := f.build(tc)
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

func (f *Factory) build(tc config.ToolConfig) (domain.Tool, error) {
	switch tc.Type {
	case "openweathermap":
		if tc.APIKey == "" {
			return nil, fmt.Errorf("openweathermap requires api_key")
		}
		if tc.Location == "" && (tc.Latitude == nil || tc.Longitude == nil) {
			return nil, fmt.Errorf("openweathermap requires location or latitude+longitude")
		}
		return NewWeatherTool(WeatherConfig{
			APIKey:    tc.APIKey,
			Location:  tc.Location,
			Latitude:  tc.Latitude,
			Longitude: tc.Longitude,
			Units:     tc.Units,
			Language:  tc.Language,
			Logger:    f.logger,
		}), nil

	case "rssfeed":
		if len(tc.FeedURLs) == 0 {
			return nil, fmt.Errorf("rssfeed requires at least one feed url")
		}
		store, err := f.store(tc.DataFile)
		if err != nil {
			return nil, fmt.Errorf("rssfeed seen store: %w", err)
		}
		return NewRSSFeedTool(RSSFeedConfig{
			FeedURLs:   tc.FeedURLs,
			MaxStories: tc.MaxStories,
			Store:      store,
			Logger:     f.logger,
		}), nil

	default:
		return nil, fmt.Errorf("unknown tool type: %s", tc.Type)
	}
}

func (f *Factory) store(path string) (*SeenStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stores[path]; ok {
		return s, nil
	}
	s, err := NewSeenStore(path, f.logger)
	if err != nil {
		return nil, err
	}
	f.stores[path] = s
	return s, nil
}

// Close releases every shared seen store.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, s := range f.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.stores = make(map[string]*SeenStore)
	return firstErr
}
