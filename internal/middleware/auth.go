package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/metrics"
)

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	Metrics  metrics.Recorder
}

type authFailure struct {
	status  int
	code    string
	reason  string
	message string
}

var (
	failMissing     = authFailure{http.StatusUnauthorized, CodeMissingToken, "missing_token", "Missing bearer token"}
	failInvalid     = authFailure{http.StatusUnauthorized, CodeInvalidToken, "invalid_token", "Invalid token"}
	failExpired     = authFailure{http.StatusUnauthorized, CodeTokenExpired, "token_expired", "Token has expired"}
	failRevoked     = authFailure{http.StatusUnauthorized, CodeTokenRevoked, "token_revoked", "Token has been revoked"}
	failUnavailable = authFailure{http.StatusServiceUnavailable, CodeAuthUnavailable, "revocation_unavailable", "Authentication is temporarily unavailable"}
)

// classify maps a verification error to its response. Unknown errors are
// treated as invalid tokens.
func classify(err error) authFailure {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return failMissing
	case errors.Is(err, auth.ErrRevocationUnavailable):
		return failUnavailable
	case errors.Is(err, auth.ErrRevokedToken):
		return failRevoked
	case errors.Is(err, auth.ErrExpiredToken):
		return failExpired
	default:
		return failInvalid
	}
}

// Auth returns a middleware that authenticates requests with a bearer token
// and injects the identity and raw token into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				reject(cfg, w, r, failMissing, nil)
				return
			}

			identity, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				reject(cfg, w, r, classify(err), err)
				return
			}

			cfg.Metrics.RecordAuth(metrics.OutcomeSuccess)
			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", identity.UserID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), identity, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(cfg AuthConfig, w http.ResponseWriter, r *http.Request, f authFailure, err error) {
	cfg.Metrics.RecordAuth(f.reason)

	attrs := []any{
		slog.String("reason", f.reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	}
	if f.status >= http.StatusInternalServerError && err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		cfg.Logger.Error("authentication unavailable", attrs...)
	} else {
		cfg.Logger.Warn("authentication failed", attrs...)
	}

	writeError(w, f.status, f.code, f.message)
}

// extractBearerToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
