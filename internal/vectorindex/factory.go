package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names.
const (
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend      string
	Collection   string
	Dimension    int
	QueryTimeout time.Duration

	Qdrant QdrantConfig
	// PersistPath is the chromem directory for the memory backend.
	PersistPath string
}

// New opens the configured backend wrapped in Bounded. pool is required
// for the pgvector backend only.
func New(ctx context.Context, cfg Config, pool *pgxpool.Pool) (*Bounded, error) {
	var (
		inner Index
		err   error
	)

	switch cfg.Backend {
	case BackendQdrant:
		qcfg := cfg.Qdrant
		qcfg.Collection = cfg.Collection
		qcfg.Dimension = cfg.Dimension
		inner, err = NewQdrantIndex(ctx, qcfg)
	case BackendPgvector:
		if pool == nil {
			return nil, fmt.Errorf("vectorindex: pgvector backend needs a database pool")
		}
		inner, err = NewPgvectorIndex(ctx, pool, cfg.Dimension)
	case BackendMemory:
		inner, err = NewMemoryIndex(cfg.PersistPath, cfg.Collection, cfg.Dimension)
	default:
		return nil, fmt.Errorf("vectorindex: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", cfg.Backend, err)
	}

	return NewBounded(inner, cfg.Backend, cfg.QueryTimeout), nil
}
