package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
)

const (
	metaOwnerID  = "owner_id"
	metaFilename = "filename"
	metaCaption  = "caption"
)

// MemoryIndex is an embedded chromem-go collection. Passing a path persists
// it to disk; an empty path keeps everything in memory.
type MemoryIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	dim        int
}

// NewMemoryIndex opens (or creates) collection name.
func NewMemoryIndex(path, name string, dim int) (*MemoryIndex, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Vectors are always supplied by the caller, so the collection never embeds.
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errors.New("vectorindex: embeddings must be precomputed")
	}

	collection, err := db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", name, err)
	}

	return &MemoryIndex{db: db, collection: collection, dim: dim}, nil
}

// Upsert stores r, replacing any document with the same ID.
func (m *MemoryIndex) Upsert(ctx context.Context, r Record) error {
	if err := validateRecord(r, m.dim); err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        r.ID,
		Embedding: r.Vector,
		Content:   r.Metadata.Caption,
		Metadata: map[string]string{
			metaOwnerID:  r.Metadata.OwnerID,
			metaFilename: r.Metadata.Filename,
			metaCaption:  r.Metadata.Caption,
		},
	}
	if err := m.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document %s: %w", r.ID, err)
	}
	return nil
}

// Query runs a where-filtered similarity search. chromem applies the where
// clause before ranking, so topK always counts owner records only.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error) {
	if err := validateQuery(vector, topK, scope, m.dim); err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size.
	count := m.collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, topK, map[string]string{metaOwnerID: scope.OwnerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, Match{
			ID:    res.ID,
			Score: res.Similarity,
			Metadata: Metadata{
				OwnerID:  res.Metadata[metaOwnerID],
				Filename: res.Metadata[metaFilename],
				Caption:  res.Metadata[metaCaption],
			},
		})
	}
	return matches, nil
}

// Delete removes id.
func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidRecord)
	}
	if err := m.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored records.
func (m *MemoryIndex) Count() int {
	return m.collection.Count()
}

// Ping always succeeds for an embedded store.
func (m *MemoryIndex) Ping(context.Context) error {
	return nil
}

// Close is a no-op; persistent writes happen on every upsert.
func (m *MemoryIndex) Close() error {
	return nil
}
