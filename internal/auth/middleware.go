package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey int

const (
	claimsKey ctxKey = iota + 1
	credentialKey
)

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// WithCredential stores the raw bearer credential string. Downstream
// encryption keys are derived from it, so the middleware keeps it
// available for the lifetime of the request and nowhere else.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey, token)
}

func CredentialFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(credentialKey).(string)
	return t, ok && t != ""
}

type TokenParser interface {
	ParseAndValidate(tokenStr string) (*Claims, error)
}

// AuthRequired checks the Bearer token and adds both the claims and the
// raw credential to the request context.
func AuthRequired(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")
			claims, err := parser.ParseAndValidate(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := WithCredential(WithClaims(r.Context(), claims), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps a handler and ensures the claim has a given role.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "no auth context", http.StatusUnauthorized)
				return
			}
			if !hasRole(claims, role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(c *Claims, role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Helper to extract claims or fail early in handlers.
func MustClaims(r *http.Request) (*Claims, error) {
	if c, ok := FromContext(r.Context()); ok {
		return c, nil
	}
	return nil, errors.New("no claims")
}
