package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors shared across layers.
var (
	// ErrEmptyQuery is returned when a search query is empty or whitespace.
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrNotOwner is returned when the caller does not own the resource.
	ErrNotOwner = errors.New("resource belongs to another user")
	// ErrImageNotFound is returned when an image does not exist.
	ErrImageNotFound = errors.New("image not found")
)

// UpstreamKind classifies failures of external dependencies.
type UpstreamKind string

const (
	UpstreamEmbeddingUnavailable UpstreamKind = "embedding_unavailable"
	UpstreamIndexUnavailable     UpstreamKind = "index_unavailable"
	UpstreamTimeout              UpstreamKind = "timeout"
)

// UpstreamError reports a failed call to the embedding model or vector index.
type UpstreamError struct {
	Kind    UpstreamKind
	Op      string
	Elapsed time.Duration
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s after %s: %v", e.Op, e.Kind, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps err for op. Deadline errors are classified as timeouts,
// anything else gets the given kind. An existing UpstreamError is returned as is.
func NewUpstreamError(kind UpstreamKind, op string, started time.Time, err error) error {
	if err == nil {
		return nil
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		kind = UpstreamTimeout
	}

	return &UpstreamError{
		Kind:    kind,
		Op:      op,
		Elapsed: time.Since(started),
		Err:     err,
	}
}

// IsUpstreamTimeout reports whether err is an upstream timeout.
func IsUpstreamTimeout(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.Kind == UpstreamTimeout
}
