//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig configures the local ONNX model.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// FastEmbedModel runs a BGE or MiniLM model in-process. The library
// mean-pools token states and normalizes the result.
type FastEmbedModel struct {
	mu    sync.RWMutex
	model *fastembed.FlagEmbedding
	dim   int
}

// NewFastEmbedModel downloads (if needed) and loads the configured model.
// The download cannot be interrupted, so ctx is only checked up front.
func NewFastEmbedModel(ctx context.Context, cfg FastEmbedConfig) (*FastEmbedModel, error) {
	name, ok := fastEmbedModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: fastembed %q", ErrModelUnsupported, cfg.Model)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim, _ := KnownDimension(cfg.Model)
	if cfg.CacheDir == "" {
		cfg.CacheDir = "local_cache"
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                name,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize fastembed: %w", err)
	}

	return &FastEmbedModel{model: flag, dim: dim}, nil
}

// EmbedQuery embeds text with the query prompt.
func (m *FastEmbedModel) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.model == nil {
		return nil, ErrClosed
	}

	vec, err := m.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query: %w", err)
	}
	return vec, nil
}

// EmbedPassage embeds text with the passage prompt.
func (m *FastEmbedModel) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.model == nil {
		return nil, ErrClosed
	}

	vecs, err := m.model.PassageEmbed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("fastembed passage: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("fastembed passage: got %d vectors, want 1", len(vecs))
	}
	return vecs[0], nil
}

// Dimension returns the vector size.
func (m *FastEmbedModel) Dimension() int {
	return m.dim
}

// Close destroys the ONNX session.
func (m *FastEmbedModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil
	}
	err := m.model.Destroy()
	m.model = nil
	return err
}
