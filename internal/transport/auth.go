package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type researcherKey struct{}

// TokenResolver resolves a researcher name from a bearer token.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts exactly one token.
type StaticToken struct {
	Token string
	Name  string
}

func (s StaticToken) ResolveToken(_ context.Context, token string) (string, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		return "", ErrUnauthorized
	}
	if s.Name == "" {
		return "researcher", nil
	}
	return s.Name, nil
}

// ResearcherFromContext returns the authenticated researcher, if present.
func ResearcherFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(researcherKey{}).(string)
	return name, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			name, err := resolver.ResolveToken(r.Context(), token)
			if err != nil || name == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), researcherKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
