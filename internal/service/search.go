// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/metrics"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/vectorindex"
)

const tracerName = "github.com/photovault/photovault/internal/service"

const (
	// DefaultTopK is the number of results a search returns at most.
	DefaultTopK = 10
	// unknownFilename is shown for records stored without a filename.
	unknownFilename = "Unknown"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageLookup resolves image records for one owner.
type ImageLookup interface {
	ImagesByIDs(ctx context.Context, ownerID string, ids []string) (map[string]*model.Image, error)
}

// SearchResult is one ranked image.
type SearchResult struct {
	ID      string
	Score   float32
	Name    string
	Caption string
	// CreatedAt is zero when the image record could not be resolved.
	CreatedAt time.Time
}

// SearchService answers natural-language queries over the caller's images.
type SearchService struct {
	embedder Embedder
	index    vectorindex.Index
	images   ImageLookup
	topK     int
	metrics  metrics.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// SearchConfig holds optional SearchService settings.
type SearchConfig struct {
	TopK    int
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// NewSearchService creates a SearchService. images may be nil, in which
// case results carry no creation time.
func NewSearchService(embedder Embedder, index vectorindex.Index, images ImageLookup, cfg SearchConfig) *SearchService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SearchService{
		embedder: embedder,
		index:    index,
		images:   images,
		topK:     cfg.TopK,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Search embeds query and returns the caller's best matching images.
// A blank query fails with model.ErrEmptyQuery before any upstream call.
func (s *SearchService) Search(ctx context.Context, identity auth.Identity, query string) ([]SearchResult, error) {
	started := time.Now()

	if strings.TrimSpace(query) == "" {
		s.metrics.RecordSearch("empty_query", time.Since(started), 0)
		return nil, model.ErrEmptyQuery
	}

	ctx, span := s.tracer.Start(ctx, "service.Search", trace.WithAttributes(
		attribute.String("user.id", identity.UserID),
		attribute.Int("search.top_k", s.topK),
	))
	defer span.End()

	results, err := s.search(ctx, identity, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordFailure(ctx, identity, err, started)
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	s.metrics.RecordSearch(metrics.OutcomeSuccess, time.Since(started), len(results))
	s.logger.DebugContext(ctx, "search completed",
		"user_id", identity.UserID,
		"results", len(results),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return results, nil
}

func (s *SearchService) search(ctx context.Context, identity auth.Identity, query string) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, vec, s.topK, vectorindex.Scope{OwnerID: identity.UserID})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	if len(matches) == 0 {
		return results, nil
	}

	created := s.creationTimes(ctx, identity.UserID, matches)
	for _, m := range matches {
		name := m.Metadata.Filename
		if name == "" {
			name = unknownFilename
		}
		results = append(results, SearchResult{
			ID:        m.ID,
			Score:     m.Score,
			Name:      name,
			Caption:   m.Metadata.Caption,
			CreatedAt: created[m.ID],
		})
	}
	return results, nil
}

// creationTimes looks up stored creation times. Lookup failures only cost
// the timestamps, never the search.
func (s *SearchService) creationTimes(ctx context.Context, ownerID string, matches []vectorindex.Match) map[string]time.Time {
	out := make(map[string]time.Time, len(matches))
	if s.images == nil {
		return out
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	images, err := s.images.ImagesByIDs(ctx, ownerID, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "search: image lookup failed, returning results without timestamps",
			"user_id", ownerID,
			"error", err,
		)
		return out
	}

	for id, img := range images {
		out[id] = img.CreatedAt
	}
	return out
}

func (s *SearchService) recordFailure(ctx context.Context, identity auth.Identity, err error, started time.Time) {
	s.metrics.RecordSearch(metrics.OutcomeFailed, time.Since(started), 0)

	var upstream *model.UpstreamError
	if errors.As(err, &upstream) {
		s.metrics.RecordUpstreamError(string(upstream.Kind))
		s.logger.ErrorContext(ctx, "search upstream failure",
			"user_id", identity.UserID,
			"op", upstream.Op,
			"kind", string(upstream.Kind),
			"elapsed_ms", upstream.Elapsed.Milliseconds(),
			"error", upstream.Err,
		)
		return
	}

	s.logger.ErrorContext(ctx, "search failed",
		"user_id", identity.UserID,
		"error", err,
	)
}
