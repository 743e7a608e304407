package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// ContextKeyAPIKey is the context key for the API key
	ContextKeyAPIKey ContextKey = "api_key"
)

// APIKeyAuth returns middleware that accepts a bearer token from keys. An
// empty key list disables authentication, which is only meant for local
// development.
func APIKeyAuth(keys []string) func(next http.Handler) http.Handler {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for CORS preflight
			if r.Method == http.MethodOptions || len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			var apiKey string
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				key, ok := bearerToken(authHeader)
				if !ok {
					unauthorized(w, "invalid authorization header format")
					return
				}
				apiKey = key
			} else {
				// browsers cannot set headers on a WebSocket upgrade
				apiKey = r.URL.Query().Get("access_token")
			}
			if apiKey == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			if !matchesAny(allowed, apiKey) {
				unauthorized(w, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(authHeader string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func matchesAny(allowed [][]byte, key string) bool {
	candidate := []byte(key)
	match := 0
	for _, a := range allowed {
		match |= subtle.ConstantTimeCompare(a, candidate)
	}
	return match == 1
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

// GetAPIKey returns the API key from context
func GetAPIKey(ctx context.Context) string {
	if key, ok := ctx.Value(ContextKeyAPIKey).(string); ok {
		return key
	}
	return ""
}
