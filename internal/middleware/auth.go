package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
)

type contextKey string

// APIKeyContextKey is the key for the caller's API key in the context.
const APIKeyContextKey = contextKey("api_key")

// APIKeyHeader carries the caller's key.
const APIKeyHeader = "X-API-Key"

// APIKeyFromContext returns the key APIKeyMiddleware accepted.
func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(APIKeyContextKey).(string)
	return key, ok && key != ""
}

// APIKeyMiddleware rejects requests whose X-API-Key is not one of keys. With
// no keys configured every request is rejected.
func APIKeyMiddleware(keys []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				http.Error(w, "API key is required", http.StatusUnauthorized)
				return
			}
			if !matchesAny(valid, []byte(key)) {
				logger.Warn("invalid api key", slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr))
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), APIKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func matchesAny(valid [][]byte, key []byte) bool {
	found := 0
	for _, v := range valid {
		found |= subtle.ConstantTimeCompare(v, key)
	}
	return found == 1
}
