package middleware

import (
	"net/http"
	"strings"

	"github.com/grantiva/grantiva-go/internal/httputil"
)

// Authenticator checks tenant credentials.
type Authenticator interface {
	Authenticate(apiKey, bundleID, teamID string) bool
}

// TenantAuth accepts either "Authorization: Bearer <api key>" or the
// X-Bundle-ID / X-Team-ID header pair.
func TenantAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var apiKey string

			// Expected format: "Bearer <key>"
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
					httputil.WriteUnauthorized(w, "Malformed Authorization header")
					return
				}
				apiKey = parts[1]
			}

			if !auth.Authenticate(apiKey, r.Header.Get("X-Bundle-ID"), r.Header.Get("X-Team-ID")) {
				httputil.WriteUnauthorized(w, "Unknown app credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFeedback rejects feedback routes for tenants without the feature.
func RequireFeedback(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				httputil.WriteFeedbackNotAvailable(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
