package vectorindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex keeps vectors in the image_vectors table of the main
// Postgres database.
type PgvectorIndex struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPgvectorIndex ensures the vector extension and table exist. The pool
// is shared with the repository and is not closed by Close.
func NewPgvectorIndex(ctx context.Context, pool *pgxpool.Pool, dim int) (*PgvectorIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorindex: pgvector dimension must be positive, got %d", dim)
	}

	idx := &PgvectorIndex{pool: pool, dim: dim}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (p *PgvectorIndex) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS image_vectors (
				image_id   TEXT PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				filename   TEXT NOT NULL DEFAULT '',
				caption    TEXT NOT NULL DEFAULT '',
				embedding  vector(%d) NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_image_vectors_owner ON image_vectors (owner_id)`,
	}

	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure image_vectors schema: %w", err)
		}
	}
	return nil
}

// Upsert writes r, replacing the row for r.ID.
func (p *PgvectorIndex) Upsert(ctx context.Context, r Record) error {
	if err := validateRecord(r, p.dim); err != nil {
		return err
	}

	query := `
		INSERT INTO image_vectors (image_id, owner_id, filename, caption, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (image_id) DO UPDATE SET
			owner_id   = EXCLUDED.owner_id,
			filename   = EXCLUDED.filename,
			caption    = EXCLUDED.caption,
			embedding  = EXCLUDED.embedding,
			updated_at = NOW()
	`

	_, err := p.pool.Exec(ctx, query,
		r.ID,
		r.Metadata.OwnerID,
		r.Metadata.Filename,
		r.Metadata.Caption,
		pgvector.NewVector(r.Vector),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert image vector: %w", err)
	}
	return nil
}

// Query ranks the owner's rows by cosine distance.
func (p *PgvectorIndex) Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error) {
	if err := validateQuery(vector, topK, scope, p.dim); err != nil {
		return nil, err
	}

	query := `
		SELECT image_id, owner_id, filename, caption, 1 - (embedding <=> $1) AS score
		FROM image_vectors
		WHERE owner_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), scope.OwnerID, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query image vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			m     Match
			score float64
		)
		if err := rows.Scan(&m.ID, &m.Metadata.OwnerID, &m.Metadata.Filename, &m.Metadata.Caption, &score); err != nil {
			return nil, fmt.Errorf("failed to scan image vector: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image vectors: %w", err)
	}

	return matches, nil
}

// Delete removes the row for id.
func (p *PgvectorIndex) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidRecord)
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM image_vectors WHERE image_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete image vector: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (p *PgvectorIndex) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close leaves the shared pool open.
func (p *PgvectorIndex) Close() error {
	return nil
}
