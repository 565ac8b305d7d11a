package vectorindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/photovault/photovault/internal/model"
)

type stubIndex struct {
	queryErr error
	block    bool
	matches  []Match
}

func (s *stubIndex) Upsert(context.Context, Record) error { return s.queryErr }

func (s *stubIndex) Query(ctx context.Context, _ []float32, _ int, _ Scope) ([]Match, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.matches, s.queryErr
}

func (s *stubIndex) Delete(context.Context, string) error { return s.queryErr }
func (s *stubIndex) Ping(context.Context) error           { return s.queryErr }
func (s *stubIndex) Close() error                         { return nil }

func TestBounded_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inner    *stubIndex
		timeout  time.Duration
		wantKind model.UpstreamKind
	}{
		{"store failure", &stubIndex{queryErr: errors.New("connection refused")}, time.Second, model.UpstreamIndexUnavailable},
		{"deadline", &stubIndex{block: true}, 20 * time.Millisecond, model.UpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewBounded(tt.inner, "stub", tt.timeout)
			_, err := b.Query(context.Background(), []float32{1}, 3, Scope{OwnerID: "u1"})

			var upstream *model.UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("error = %v, want UpstreamError", err)
			}
			if upstream.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", upstream.Kind, tt.wantKind)
			}
			if upstream.Op != "stub.query" {
				t.Errorf("op = %s, want stub.query", upstream.Op)
			}
		})
	}
}

func TestBounded_ValidationPassesThrough(t *testing.T) {
	t.Parallel()

	b := NewBounded(&stubIndex{queryErr: ErrScopeRequired}, "stub", time.Second)
	_, err := b.Query(context.Background(), []float32{1}, 3, Scope{})

	var upstream *model.UpstreamError
	if errors.As(err, &upstream) {
		t.Fatalf("validation error was wrapped as upstream: %v", err)
	}
	if !errors.Is(err, ErrScopeRequired) {
		t.Errorf("error = %v, want ErrScopeRequired", err)
	}
}

func TestBounded_NilMatchesBecomeEmpty(t *testing.T) {
	t.Parallel()

	b := NewBounded(&stubIndex{}, "stub", 0)
	matches, err := b.Query(context.Background(), []float32{1}, 3, Scope{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches == nil {
		t.Error("matches should be an empty slice, not nil")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Backend: "pinecone"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(context.Background(), Config{Backend: BackendPgvector, Dimension: 3}, nil); err == nil {
		t.Error("expected error for pgvector without pool")
	}
}

func TestNew_Memory(t *testing.T) {
	t.Parallel()

	idx, err := New(context.Background(), Config{Backend: BackendMemory, Collection: "images", Dimension: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.Backend() != BackendMemory {
		t.Errorf("Backend = %s", idx.Backend())
	}
	if err := idx.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
