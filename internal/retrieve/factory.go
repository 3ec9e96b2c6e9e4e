// internal/retrieve/factory.go - Retriever factory
package retrieve

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal/config"
)

// Factory builds the retrieval stack from configuration
type Factory struct {
	config *config.Config
	fs     afero.Fs
	logger zerolog.Logger
}

// NewFactory creates a new retriever factory
func NewFactory(cfg *config.Config, fs afero.Fs, logger zerolog.Logger) *Factory {
	return &Factory{
		config: cfg,
		fs:     fs,
		logger: logger,
	}
}

// CreateCache returns the configured response cache, or nil when disabled
func (f *Factory) CreateCache() (*Cache, error) {
	cc := f.config.Retrieval.Cache
	if !cc.Enabled {
		return nil, nil
	}
	return NewCache(f.fs, cc.Dir, cc.MemoryEntries)
}

// CreateClient creates the Overpass HTTP client with its cache
func (f *Factory) CreateClient() (*Client, error) {
	if f.config.Retrieval.OverpassURL == "" {
		return nil, fmt.Errorf("overpass_url is required")
	}

	cache, err := f.CreateCache()
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return NewClient(f.config, cache, f.logger), nil
}

// CreateRetriever creates an Overpass retriever backed by q. A nil q gets a
// fresh client.
func (f *Factory) CreateRetriever(q Querier) (*Overpass, error) {
	if q == nil {
		client, err := f.CreateClient()
		if err != nil {
			return nil, err
		}
		q = client
	}

	if _, err := NetworkFilter(f.config.Retrieval.NetworkType); err != nil {
		return nil, err
	}

	return NewOverpass(q, Settings{
		BufferM:   f.config.Retrieval.BufferM,
		RetainAll: f.config.Retrieval.RetainAll,
		Timeout:   f.config.Retrieval.Timeout,
	}, f.logger), nil
}

// TagFilter returns the configured building tag filter
func (f *Factory) TagFilter() TagFilter {
	return TagFilter(f.config.BuildingTagFilter())
}
