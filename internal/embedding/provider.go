package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/photovault/photovault/internal/model"
)

const tracerName = "github.com/photovault/photovault/internal/embedding"

// Default timeouts.
const (
	DefaultInitTimeout = 2 * time.Minute
	DefaultCallTimeout = 10 * time.Second
)

// Config configures a Provider.
type Config struct {
	// Dimension is the expected vector size D.
	Dimension int
	// InitTimeout bounds model construction.
	InitTimeout time.Duration
	// CallTimeout bounds a single embedding call.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

type readyModel struct {
	model Model
}

// pendingCall is the shared handle racing callers wait on while the model
// is being built.
type pendingCall struct {
	done  chan struct{}
	model Model
	err   error
}

type built struct {
	model Model
	err   error
}

type embedded struct {
	vec []float32
	err error
}

// Provider embeds text with a lazily constructed, process-wide Model.
type Provider struct {
	construct   Constructor
	dimension   int
	initTimeout time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer

	ready atomic.Pointer[readyModel]

	mu      sync.Mutex
	pending *pendingCall
	closed  bool

	constructions atomic.Int64
}

// NewProvider creates a Provider. No model is built until the first call.
func NewProvider(construct Constructor, cfg Config) *Provider {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{
		construct:   construct,
		dimension:   cfg.Dimension,
		initTimeout: cfg.InitTimeout,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// Dimension returns the configured vector size.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Ready reports whether the model has been built.
func (p *Provider) Ready() bool {
	return p.ready.Load() != nil
}

// Constructions returns how many construction attempts have started.
func (p *Provider) Constructions() int64 {
	return p.constructions.Load()
}

// Embed returns the unit vector of a search query.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, "embedding.query", text, Model.EmbedQuery)
}

// EmbedPassage returns the unit vector of stored text.
func (p *Provider) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, "embedding.passage", text, Model.EmbedPassage)
}

// Warmup builds the model without embedding anything.
func (p *Provider) Warmup(ctx context.Context) error {
	started := time.Now()
	if _, err := p.model(ctx); err != nil {
		return model.NewUpstreamError(model.UpstreamEmbeddingUnavailable, "embedding.init", started, err)
	}
	return nil
}

func (p *Provider) embed(
	ctx context.Context,
	op string,
	text string,
	call func(Model, context.Context, string) ([]float32, error),
) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, span := p.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int("text_length", len(text)))

	started := time.Now()

	m, err := p.model(ctx)
	if err != nil {
		err = model.NewUpstreamError(model.UpstreamEmbeddingUnavailable, "embedding.init", started, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	vec, err := p.callWithTimeout(ctx, m, text, call)
	if err == nil && len(vec) != p.dimension {
		err = fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), p.dimension)
	}
	if err != nil {
		err = model.NewUpstreamError(model.UpstreamEmbeddingUnavailable, op, started, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return Normalize(vec), nil
}

// callWithTimeout bounds models that do not observe ctx themselves.
func (p *Provider) callWithTimeout(
	ctx context.Context,
	m Model,
	text string,
	call func(Model, context.Context, string) ([]float32, error),
) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	result := make(chan embedded, 1)
	go func() {
		vec, err := call(m, ctx, text)
		result <- embedded{vec: vec, err: err}
	}()

	select {
	case r := <-result:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// model returns the ready model, building it if needed.
// Only the pending-handle bookkeeping happens under p.mu; construction
// itself runs in its own goroutine.
func (p *Provider) model(ctx context.Context) (Model, error) {
	if r := p.ready.Load(); r != nil {
		return r.model, nil
	}

	p.mu.Lock()
	if r := p.ready.Load(); r != nil {
		p.mu.Unlock()
		return r.model, nil
	}
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	call := p.pending
	if call == nil {
		call = &pendingCall{done: make(chan struct{})}
		p.pending = call
		p.constructions.Add(1)
		go p.build(ctx, call)
	}
	p.mu.Unlock()

	select {
	case <-call.done:
		return call.model, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build runs one construction attempt and resolves call for every waiter.
// The caller's cancellation does not abort the attempt; only InitTimeout does.
func (p *Provider) build(parent context.Context, call *pendingCall) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.initTimeout)
	defer cancel()

	result := make(chan built, 1)
	go func() {
		m, err := p.construct(ctx)
		result <- built{model: m, err: err}
	}()

	var m Model
	var err error

	select {
	case b := <-result:
		m, err = b.model, b.err
		if err == nil && m == nil {
			err = fmt.Errorf("construct model: constructor returned no model")
		}
		if err == nil && m.Dimension() != p.dimension {
			err = fmt.Errorf("%w: model has %d, configured %d", ErrDimensionMismatch, m.Dimension(), p.dimension)
			_ = m.Close()
			m = nil
		}
	case <-ctx.Done():
		err = fmt.Errorf("construct model: %w", ctx.Err())
		go func() {
			if late := <-result; late.model != nil {
				_ = late.model.Close()
			}
		}()
	}

	p.mu.Lock()
	if err == nil && p.closed {
		_ = m.Close()
		m, err = nil, ErrClosed
	}
	if err == nil {
		p.ready.Store(&readyModel{model: m})
	}
	p.pending = nil
	p.mu.Unlock()

	call.model, call.err = m, err
	close(call.done)

	if err != nil {
		p.logger.Error("embedding model construction failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)),
		)
		return
	}
	p.logger.Info("embedding model ready",
		slog.Int("dimension", p.dimension),
		slog.Duration("elapsed", time.Since(started)),
	)
}

// Reset drops the built model so the next call constructs a new one.
// Intended for tests.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.ready.Swap(nil); r != nil {
		_ = r.model.Close()
	}
	p.pending = nil
	p.closed = false
	p.constructions.Store(0)
}

// Close releases the model. Later calls fail with ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if r := p.ready.Swap(nil); r != nil {
		return r.model.Close()
	}
	return nil
}
