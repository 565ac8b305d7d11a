//go:build !cgo

package embedding

import (
	"context"
	"fmt"
)

// FastEmbedConfig configures the local ONNX model.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedModel is unavailable without cgo.
type FastEmbedModel struct{}

// NewFastEmbedModel always fails in builds without cgo.
func NewFastEmbedModel(_ context.Context, cfg FastEmbedConfig) (*FastEmbedModel, error) {
	return nil, fmt.Errorf("%w: fastembed %q requires a cgo build, use EMBEDDING_PROVIDER=ollama or hashing", ErrModelUnsupported, cfg.Model)
}

func (m *FastEmbedModel) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrModelUnsupported
}

func (m *FastEmbedModel) EmbedPassage(context.Context, string) ([]float32, error) {
	return nil, ErrModelUnsupported
}

func (m *FastEmbedModel) Dimension() int { return 0 }

func (m *FastEmbedModel) Close() error { return nil }
