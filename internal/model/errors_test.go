package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewUpstreamError_Classification(t *testing.T) {
	t.Parallel()

	base := errors.New("connection refused")

	tests := []struct {
		name     string
		kind     UpstreamKind
		err      error
		wantKind UpstreamKind
	}{
		{"embedding failure", UpstreamEmbeddingUnavailable, base, UpstreamEmbeddingUnavailable},
		{"index failure", UpstreamIndexUnavailable, base, UpstreamIndexUnavailable},
		{"deadline becomes timeout", UpstreamIndexUnavailable, context.DeadlineExceeded, UpstreamTimeout},
		{"wrapped deadline becomes timeout", UpstreamEmbeddingUnavailable, fmt.Errorf("query: %w", context.DeadlineExceeded), UpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewUpstreamError(tt.kind, "test.op", time.Now(), tt.err)

			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected *UpstreamError, got %T", err)
			}
			if upstream.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", upstream.Kind, tt.wantKind)
			}
			if upstream.Op != "test.op" {
				t.Errorf("Op = %s, want test.op", upstream.Op)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error should be reachable via errors.Is")
			}
		})
	}
}

func TestNewUpstreamError_Nil(t *testing.T) {
	t.Parallel()

	if err := NewUpstreamError(UpstreamTimeout, "op", time.Now(), nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNewUpstreamError_KeepsExisting(t *testing.T) {
	t.Parallel()

	inner := NewUpstreamError(UpstreamEmbeddingUnavailable, "embedding.init", time.Now(), errors.New("boom"))
	outer := NewUpstreamError(UpstreamIndexUnavailable, "search", time.Now(), fmt.Errorf("embed: %w", inner))

	var upstream *UpstreamError
	if !errors.As(outer, &upstream) {
		t.Fatal("expected *UpstreamError")
	}
	if upstream.Op != "embedding.init" || upstream.Kind != UpstreamEmbeddingUnavailable {
		t.Errorf("got op=%s kind=%s, want embedding.init/%s", upstream.Op, upstream.Kind, UpstreamEmbeddingUnavailable)
	}
}

func TestIsUpstreamTimeout(t *testing.T) {
	t.Parallel()

	if !IsUpstreamTimeout(NewUpstreamError(UpstreamIndexUnavailable, "op", time.Now(), context.DeadlineExceeded)) {
		t.Error("deadline exceeded should be a timeout")
	}
	if IsUpstreamTimeout(errors.New("plain")) {
		t.Error("plain error should not be a timeout")
	}
}

func TestImage_Ownership(t *testing.T) {
	t.Parallel()

	img := &Image{ID: "img-1", OwnerID: "user-a", Filename: "Cat.PNG"}

	if !img.IsOwnedBy("user-a") {
		t.Error("owner should own image")
	}
	if img.IsOwnedBy("user-b") {
		t.Error("other user should not own image")
	}
	if img.IsOwnedBy("") {
		t.Error("empty user should never own image")
	}
	if got := img.Extension(); got != ".png" {
		t.Errorf("Extension = %s, want .png", got)
	}
	if got := img.CaptionText(); got != "" {
		t.Errorf("CaptionText = %q, want empty", got)
	}
}
