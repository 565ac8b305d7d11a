// Package apptest assembles the full HTTP API on in-memory stores for
// black-box tests: hashing embedder, chromem index, memstore and a
// temporary upload directory.
package apptest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/embedding"
	"github.com/photovault/photovault/internal/handler"
	"github.com/photovault/photovault/internal/ingest"
	"github.com/photovault/photovault/internal/metrics"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/server"
	"github.com/photovault/photovault/internal/service"
	"github.com/photovault/photovault/internal/storage"
	"github.com/photovault/photovault/internal/testutil/memstore"
	"github.com/photovault/photovault/internal/vectorindex"
)

const (
	// Dimension is the embedding size used by the test app.
	Dimension = 64
	// InternalToken authenticates /internal requests.
	InternalToken = "captioner-secret"

	jwtSecret = "apptest-secret-0123456789abcdef0123"
)

// App is a running API server.
type App struct {
	Server  *httptest.Server
	Store   *memstore.Store
	Metrics *metrics.InMemoryRecorder
	Tokens  *auth.TokenService
}

// URL returns the server base URL.
func (a *App) URL() string {
	return a.Server.URL
}

// New starts an App that is closed when the test ends.
func New(t testing.TB) *App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	recorder := metrics.NewInMemory()

	provider := embedding.NewProvider(func(context.Context) (embedding.Model, error) {
		return embedding.NewHashingModel(Dimension), nil
	}, embedding.Config{Dimension: Dimension, Logger: logger})

	mem, err := vectorindex.NewMemoryIndex("", "apptest", Dimension)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	index := vectorindex.NewBounded(mem, vectorindex.BackendMemory, time.Second)

	tokens, err := auth.NewTokenService(jwtSecret, time.Hour, auth.NewMemoryRevocationStore())
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	disk, err := storage.NewDisk(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	users, err := service.NewUserService(store, tokens)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	images := service.NewImageService(store, disk, index, 5, logger)
	indexer := ingest.NewIndexer(provider, index, store, logger, recorder)
	captions := service.NewCaptionService(store, indexer)
	search := service.NewSearchService(provider, index, store, service.SearchConfig{Metrics: recorder, Logger: logger})

	router := server.NewRouter(server.RouterConfig{
		Logger:        logger,
		Health:        handler.NewHealthHandler(nil, nil, index, provider),
		Auth:          handler.NewAuthHandler(users, logger),
		Images:        handler.NewImageHandler(images, 8<<20, logger),
		Search:        handler.NewSearchHandler(search, logger),
		Internal:      handler.NewInternalHandler(captions, logger),
		Verifier:      tokens,
		Metrics:       recorder,
		CORS:          middleware.DefaultCORSConfig(),
		IsDevelopment: true,
		MaxBodySize:   1 << 20,
		InternalToken: InternalToken,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = index.Close() })

	return &App{Server: srv, Store: store, Metrics: recorder, Tokens: tokens}
}
