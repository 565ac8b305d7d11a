package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		preflight      bool
		wantHeader     string
		wantStatus     int
	}{
		{"no origins configured blocks all", nil, "https://example.com", false, "", http.StatusOK},
		{"bare wildcard is ignored", []string{"*"}, "https://example.com", false, "", http.StatusOK},
		{"allowed origin gets header", []string{"https://example.com"}, "https://example.com", false, "https://example.com", http.StatusOK},
		{"disallowed origin gets no header", []string{"https://example.com"}, "https://evil.com", false, "", http.StatusOK},
		{"case insensitive origin match", []string{"HTTPS://EXAMPLE.COM"}, "https://example.com", false, "https://example.com", http.StatusOK},
		{"subdomain wildcard", []string{"https://*.example.com"}, "https://app.example.com", false, "https://app.example.com", http.StatusOK},
		{"preflight answered by cors handler", []string{"https://example.com"}, "https://example.com", true, "https://example.com", http.StatusOK},
		{"no origin header skips CORS", []string{"https://example.com"}, "", false, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowedOrigins
			handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// preflights must be answered before reaching the route
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusTeapot)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/images/search", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
				req.Header.Set("Access-Control-Request-Headers", "Authorization")
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
