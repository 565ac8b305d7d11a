package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// InternalTokenHeader carries the captioner's shared secret.
const InternalTokenHeader = "X-Internal-Token"

// RequireInternalToken guards service-to-service routes with a shared
// secret, read from X-Internal-Token or a bearer header. An empty secret
// disables the routes entirely.
func RequireInternalToken(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	expected := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				writeError(w, http.StatusNotFound, CodeNotFound, "Not found")
				return
			}

			provided := r.Header.Get(InternalTokenHeader)
			if provided == "" {
				provided, _ = extractBearerToken(r)
			}
			provided = strings.TrimSpace(provided)

			if provided == "" {
				logger.Warn("internal request rejected",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeMissingToken, "Missing internal token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				logger.Warn("internal request rejected",
					slog.String("reason", "invalid_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid internal token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
