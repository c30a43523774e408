package httpadapter

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const apiKeyHeader = "X-Api-Key"

// apiKeyMiddleware guards /v1/ routes when a key is configured. The key is
// accepted as a bearer token or in X-Api-Key.
func apiKeyMiddleware(next http.Handler, apiKey string, rejected func(reason string)) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		if isAuthorizedBearerHeader(r.Header.Get("Authorization"), apiKey) ||
			tokenEquals(strings.TrimSpace(r.Header.Get(apiKeyHeader)), apiKey) {
			next.ServeHTTP(w, r)
			return
		}
		rejected("unauthorized")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return tokenEquals(token, expectedToken)
}

func tokenEquals(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
