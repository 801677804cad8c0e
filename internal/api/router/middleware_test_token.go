package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const testTokenHeader = "X-Test-Token"
const testTokenQuery = "test_token"

// requireTestToken guards the dry-run endpoint with a shared token.
// When expected is empty, the middleware is a no-op.
func requireTestToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(testTokenHeader))
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get(testTokenQuery))
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid test token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
