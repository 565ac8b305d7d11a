package vectorindex

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/photovault/photovault/internal/model"
)

const tracerName = "github.com/photovault/photovault/internal/vectorindex"

// DefaultQueryTimeout bounds each backend call when none is configured.
const DefaultQueryTimeout = 5 * time.Second

// Bounded applies a per-call timeout to an Index and reports store
// failures as model.UpstreamError. Validation errors pass through as is.
type Bounded struct {
	inner   Index
	backend string
	timeout time.Duration
	tracer  trace.Tracer
}

// NewBounded wraps inner. backend names the store in spans and errors.
func NewBounded(inner Index, backend string, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Bounded{
		inner:   inner,
		backend: backend,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
	}
}

// Backend returns the wrapped store's name.
func (b *Bounded) Backend() string {
	return b.backend
}

func (b *Bounded) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "vectorindex."+op, trace.WithAttributes(
		append(attrs, attribute.String("vectorindex.backend", b.backend))...,
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if isValidationError(err) {
		return err
	}
	return model.NewUpstreamError(model.UpstreamIndexUnavailable, b.backend+"."+op, started, err)
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrScopeRequired) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrDimensionMismatch)
}

// Upsert implements Index.
func (b *Bounded) Upsert(ctx context.Context, r Record) error {
	return b.call(ctx, "upsert", []attribute.KeyValue{attribute.String("image.id", r.ID)}, func(ctx context.Context) error {
		return b.inner.Upsert(ctx, r)
	})
}

// Query implements Index.
func (b *Bounded) Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error) {
	var matches []Match
	err := b.call(ctx, "query", []attribute.KeyValue{attribute.Int("vectorindex.top_k", topK)}, func(ctx context.Context) error {
		var err error
		matches, err = b.inner.Query(ctx, vector, topK, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// Delete implements Index.
func (b *Bounded) Delete(ctx context.Context, id string) error {
	return b.call(ctx, "delete", []attribute.KeyValue{attribute.String("image.id", id)}, func(ctx context.Context) error {
		return b.inner.Delete(ctx, id)
	})
}

// Ping implements Index.
func (b *Bounded) Ping(ctx context.Context) error {
	return b.call(ctx, "ping", nil, b.inner.Ping)
}

// Close closes the wrapped store.
func (b *Bounded) Close() error {
	return b.inner.Close()
}
