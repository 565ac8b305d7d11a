package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/photovault/photovault/internal/handler"
	"github.com/photovault/photovault/internal/metrics"
	"github.com/photovault/photovault/internal/middleware"
)

// RouterConfig holds the handlers and middleware settings of the API.
type RouterConfig struct {
	Logger *slog.Logger

	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Images   *handler.ImageHandler
	Search   *handler.SearchHandler
	Internal *handler.InternalHandler

	Verifier middleware.TokenVerifier
	Metrics  metrics.Recorder
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	Limiter          middleware.Limiter
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	CORS          middleware.CORSConfig
	IsDevelopment bool
	// MaxBodySize bounds JSON request bodies. Uploads are bounded by the image handler.
	MaxBodySize int64
	// InternalToken guards /internal. Empty disables those routes.
	InternalToken string
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(cfg.CORS))

	// Health endpoints (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	authCfg := middleware.AuthConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Verifier,
		Metrics:  cfg.Metrics,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  cfg.Logger,
		Limiter: cfg.Limiter,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}
	bodyLimit := func(next http.Handler) http.Handler { return next }
	if cfg.MaxBodySize > 0 {
		bodyLimit = middleware.MaxBodySize(cfg.MaxBodySize)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(bodyLimit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitIP(rateLimitCfg))
			r.Post("/signup", cfg.Auth.Signup)
			r.Post("/login", cfg.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitUser(rateLimitCfg))
			r.Post("/logout", cfg.Auth.Logout)
			r.Get("/me", cfg.Auth.Me)
		})
	})

	r.Route("/images", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitUser(rateLimitCfg))

		r.Get("/search", cfg.Search.Search)
		r.Post("/", cfg.Images.Upload)
		r.Get("/", cfg.Images.List)
		r.Get("/{id}", cfg.Images.Get)
		r.Get("/{id}/file", cfg.Images.File)
		r.Delete("/{id}", cfg.Images.Delete)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireInternalToken(cfg.InternalToken, cfg.Logger))
		r.Use(bodyLimit)

		r.Get("/images/pending", cfg.Internal.Pending)
		r.Put("/images/{id}/analysis", cfg.Internal.Analysis)
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
