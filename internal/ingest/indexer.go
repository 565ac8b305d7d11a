package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/photovault/photovault/internal/metrics"
	"github.com/photovault/photovault/internal/vectorindex"
)

// PassageEmbedder embeds stored documents.
type PassageEmbedder interface {
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
}

// Store records that an image has been indexed.
type Store interface {
	MarkIndexed(ctx context.Context, id string, at time.Time) error
}

// Indexer embeds a caption, upserts the vector and marks the image processed.
// It is also a synchronous Sink.
type Indexer struct {
	embedder PassageEmbedder
	index    vectorindex.Index
	store    Store
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder PassageEmbedder, index vectorindex.Index, store Store, logger *slog.Logger, recorder metrics.Recorder) *Indexer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		index:    index,
		store:    store,
		logger:   logger.With("component", "ingest.indexer"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// Submit indexes job before returning.
func (x *Indexer) Submit(ctx context.Context, job Job) error {
	err := x.Index(ctx, job)
	if err != nil {
		x.metrics.RecordIngest(metrics.OutcomeFailed)
		return err
	}
	x.metrics.RecordIngest(metrics.OutcomeSuccess)
	return nil
}

// Index runs one job. Re-running a job is safe: the upsert replaces the
// previous vector.
func (x *Indexer) Index(ctx context.Context, job Job) error {
	if err := ValidateJob(job); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	start := time.Now()

	vec, err := x.embedder.EmbedPassage(ctx, job.Caption)
	if err != nil {
		return fmt.Errorf("embed caption of %s: %w", job.ImageID, err)
	}

	err = x.index.Upsert(ctx, vectorindex.Record{
		ID:     job.ImageID,
		Vector: vec,
		Metadata: vectorindex.Metadata{
			OwnerID:  job.OwnerID,
			Filename: job.Filename,
			Caption:  job.Caption,
		},
	})
	if err != nil {
		return fmt.Errorf("upsert vector of %s: %w", job.ImageID, err)
	}

	if err := x.store.MarkIndexed(ctx, job.ImageID, x.now().UTC()); err != nil {
		return fmt.Errorf("mark %s indexed: %w", job.ImageID, err)
	}

	x.logger.Debug("image indexed",
		"image_id", job.ImageID,
		"owner_id", job.OwnerID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
