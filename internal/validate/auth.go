package validate

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthError represents authentication failures on the HTTP transports.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

func NewUnauthorizedError(message string) *AuthError {
	return &AuthError{StatusCode: http.StatusUnauthorized, Message: message}
}

// ExtractBearerToken extracts the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}

// BearerAuth only lets requests carrying one of tokens through. With no
// tokens configured every request is let through.
func BearerAuth(tokens []string, next http.Handler) http.Handler {
	if len(tokens) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearerToken(r)
		if token == "" {
			writeAuthError(w, NewUnauthorizedError("missing bearer token"))
			return
		}
		if !knownToken(tokens, token) {
			writeAuthError(w, NewUnauthorizedError("invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func knownToken(tokens []string, token string) bool {
	found := 0
	for _, t := range tokens {
		found |= subtle.ConstantTimeCompare([]byte(t), []byte(token))
	}
	return found == 1
}

func writeAuthError(w http.ResponseWriter, err *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="argo-mcp"`)
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   "authentication_error",
		"message": err.Message,
	})
}
