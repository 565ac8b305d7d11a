package embedding

import (
	"context"
	"fmt"
)

// Provider names accepted by NewConstructor.
const (
	ProviderFastEmbed = "fastembed"
	ProviderOllama    = "ollama"
	ProviderHashing   = "hashing"
)

// ModelConfig selects and configures a model.
type ModelConfig struct {
	Provider  string
	Model     string
	Dimension int
	CacheDir  string
	OllamaURL string
}

var knownDimensions = map[string]int{
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"nomic-embed-text":                       768,
	"mxbai-embed-large":                      1024,
}

// KnownDimension returns the vector size of a well-known model.
func KnownDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// NewConstructor returns the Constructor for cfg. It validates the
// configuration but builds nothing.
func NewConstructor(cfg ModelConfig) (Constructor, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if dim, ok := KnownDimension(cfg.Model); ok && dim != cfg.Dimension {
		return nil, fmt.Errorf("%w: %s produces %d dimensions, configured %d", ErrDimensionMismatch, cfg.Model, dim, cfg.Dimension)
	}

	switch cfg.Provider {
	case ProviderFastEmbed, "":
		return func(ctx context.Context) (Model, error) {
			m, err := NewFastEmbedModel(ctx, FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	case ProviderOllama:
		return func(ctx context.Context) (Model, error) {
			m, err := NewOllamaModel(ctx, OllamaConfig{
				BaseURL:   cfg.OllamaURL,
				Model:     cfg.Model,
				Dimension: cfg.Dimension,
				Pull:      true,
			})
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	case ProviderHashing:
		return func(context.Context) (Model, error) {
			return NewHashingModel(cfg.Dimension), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: provider %q", ErrModelUnsupported, cfg.Provider)
	}
}
