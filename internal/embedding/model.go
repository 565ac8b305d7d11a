// Package embedding turns text into fixed-dimension unit vectors.
//
// A Provider owns one Model per process. The model is built lazily on the
// first call, at most once even when many calls race, and is shared
// read-only afterwards.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("embedding: text is empty")
	// ErrDimensionMismatch is returned when a model yields vectors of the wrong size.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")
	// ErrModelUnsupported is returned for unknown providers or models.
	ErrModelUnsupported = errors.New("embedding: model not supported")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("embedding: provider closed")
)

// Model is a constructed embedding model.
// Implementations must be safe for concurrent use once built.
type Model interface {
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedPassage embeds stored text such as an image caption.
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector size.
	Dimension() int
	// Close releases model resources.
	Close() error
}

// Constructor builds a Model. It may block on downloads or remote calls and
// should honor ctx.
type Constructor func(ctx context.Context) (Model, error)
