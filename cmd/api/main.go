// Package main is the entrypoint for the PhotoVault API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/cache"
	"github.com/photovault/photovault/internal/config"
	"github.com/photovault/photovault/internal/embedding"
	"github.com/photovault/photovault/internal/handler"
	"github.com/photovault/photovault/internal/ingest"
	"github.com/photovault/photovault/internal/metrics"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/repository"
	"github.com/photovault/photovault/internal/server"
	"github.com/photovault/photovault/internal/service"
	"github.com/photovault/photovault/internal/storage"
	"github.com/photovault/photovault/internal/vectorindex"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Redis is optional. Without it revocation, rate limiting and caption
	// ingest run in process.
	var (
		cacheClient *cache.Cache
		cacheCheck  handler.HealthChecker
		limiter     middleware.Limiter
		revocations auth.RevocationStore
		memRevoked  *auth.MemoryRevocationStore
	)
	if cfg.HasRedis() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		logger.Info("connected to Redis")

		cacheCheck = cacheClient
		limiter = cacheClient
		revocations = cache.NewRevocationStore(cacheClient)
	} else {
		logger.Warn("REDIS_URL not set, using in-process revocation, rate limiting and indexing")
		memRevoked = auth.NewMemoryRevocationStore()
		revocations = memRevoked
		limiter = middleware.NewLocalLimiter()
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, revocations)
	if err != nil {
		logger.Error("failed to create token service", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewPrometheus()

	// Embedding model, built lazily and warmed in the background
	construct, err := embedding.NewConstructor(embedding.ModelConfig{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		CacheDir:  cfg.EmbeddingCacheDir,
		OllamaURL: cfg.OllamaURL,
	})
	if err != nil {
		logger.Error("invalid embedding configuration", "error", err)
		os.Exit(1)
	}
	provider := embedding.NewProvider(construct, embedding.Config{
		Dimension:   cfg.EmbeddingDimension,
		InitTimeout: cfg.EmbeddingInitTimeout,
		CallTimeout: cfg.EmbeddingTimeout,
		Logger:      logger,
	})

	// Vector index
	index, err := vectorindex.New(ctx, vectorindex.Config{
		Backend:      cfg.VectorBackend,
		Collection:   cfg.VectorCollection,
		Dimension:    cfg.EmbeddingDimension,
		QueryTimeout: cfg.IndexQueryTimeout,
		Qdrant: vectorindex.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		},
		PersistPath: cfg.VectorPersistPath,
	}, repo.Pool())
	if err != nil {
		logger.Error("failed to open vector index", "backend", cfg.VectorBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("vector index ready", "backend", index.Backend(), "collection", cfg.VectorCollection)

	disk, err := storage.NewDisk(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		logger.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	// Caption ingest
	indexer := ingest.NewIndexer(provider, index, repo, logger, recorder)
	var (
		sink   ingest.Sink = indexer
		worker *ingest.Worker
	)
	if cacheClient != nil {
		sink = ingest.NewPublisher(cacheClient.Client(), logger)
		worker = ingest.NewWorker(cacheClient.Client(), indexer, logger, ingest.NewConsumerID(), recorder)
		worker.SetConcurrency(cfg.IngestWorkers)
	}

	// Initialize services
	userService, err := service.NewUserService(repo, tokens)
	if err != nil {
		logger.Error("failed to create user service", "error", err)
		os.Exit(1)
	}
	imageService := service.NewImageService(repo, disk, index, cfg.MaxUploadFiles, logger)
	captionService := service.NewCaptionService(repo, sink)
	searchService := service.NewSearchService(provider, index, repo, service.SearchConfig{
		TopK:    cfg.SearchTopK,
		Metrics: recorder,
		Logger:  logger,
	})

	// Setup router
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := server.NewRouter(server.RouterConfig{
		Logger:           logger,
		Health:           handler.NewHealthHandler(repo, cacheCheck, index, provider),
		Auth:             handler.NewAuthHandler(userService, logger),
		Images:           handler.NewImageHandler(imageService, uploadBodyLimit(cfg), logger),
		Search:           handler.NewSearchHandler(searchService, logger),
		Internal:         handler.NewInternalHandler(captionService, logger),
		Verifier:         tokens,
		Metrics:          recorder,
		MetricsHandler:   recorder.Handler(),
		Limiter:          limiter,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		CORS:             corsCfg,
		IsDevelopment:    cfg.IsDevelopment(),
		MaxBodySize:      cfg.MaxRequestBodySize,
		InternalToken:    cfg.InternalAPIToken,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.Go("embedding-warmup", func(ctx context.Context) {
		if err := provider.Warmup(ctx); err != nil {
			logger.Warn("embedding warmup failed, will retry on first request", "error", err)
		}
	})
	if memRevoked != nil {
		srv.Go("revocation-pruner", func(ctx context.Context) {
			memRevoked.Run(ctx, cfg.RevocationPruneInterval)
		})
	}
	if worker != nil {
		srv.Go("ingest-worker", func(ctx context.Context) {
			if err := worker.Run(ctx); err != nil {
				logger.Error("ingest worker stopped", "error", err)
			}
		})
		srv.OnShutdown("ingest-worker", worker.Shutdown)
	}
	srv.OnShutdown("vector-index", func(context.Context) error { return index.Close() })
	srv.OnShutdown("embedding", func(context.Context) error { return provider.Close() })

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"embedding_provider", cfg.EmbeddingProvider,
		"vector_backend", cfg.VectorBackend,
		"redis", cfg.HasRedis(),
		"internal_api", cfg.InternalAPIToken != "",
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// uploadBodyLimit bounds a whole upload request: every file at its size
// limit plus room for multipart framing.
func uploadBodyLimit(cfg *config.Config) int64 {
	if cfg.MaxUploadSize <= 0 {
		return 0
	}
	return int64(cfg.MaxUploadFiles)*cfg.MaxUploadSize + 1<<20
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "photovault-api")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
