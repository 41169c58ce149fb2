package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/outreachai/internal/api"
	"github.com/cloo-solutions/outreachai/internal/domain"
)

type contextKey string

const ClientKey contextKey = "client"

// TokenValidator resolves a bearer token to a client name.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts exactly one shared token.
type StaticToken struct {
	Token  string
	Client string
}

func (s StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", domain.ErrInvalidAPIToken
	}
	if s.Client == "" {
		return "default", nil
	}
	return s.Client, nil
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token.
func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			client, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("client", client)
			}
			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClient returns the authenticated client name from context.
func GetClient(ctx context.Context) string {
	client, _ := ctx.Value(ClientKey).(string)
	return client
}
