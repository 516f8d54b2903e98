package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/authgate/authgate/internal/api/response"
	"github.com/authgate/authgate/internal/directory"
	"github.com/authgate/authgate/internal/token"
)

const principalKey contextKey = "principal"

// Principal is the request-scoped identity attached after a successful
// bearer-token check. It never carries the password hash.
type Principal struct {
	ID               string
	Email            string
	SubscriptionTier string
}

// UserResolver resolves a token subject to a fresh directory record.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*directory.User, error)
}

// Auth is middleware that validates the Authorization bearer token and
// resolves its subject against the user directory. A directory outage is
// reported as 503 rather than being conflated with a bad credential.
func Auth(codec *token.Codec, resolver UserResolver, lookupTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Err(w, http.StatusUnauthorized, "authentication token required")
				return
			}

			claims, err := codec.Verify(raw)
			if err != nil {
				if errors.Is(err, token.ErrExpired) {
					response.Err(w, http.StatusUnauthorized, "token expired")
					return
				}
				slog.Debug("bearer token rejected", "error", err, "tokenPrefix", tokenPrefix(raw))
				response.Err(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.UserID == "" {
				response.Err(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
			defer cancel()

			u, err := resolver.GetByID(ctx, claims.UserID)
			if err != nil {
				switch {
				case errors.Is(err, directory.ErrNotFound):
					response.Err(w, http.StatusUnauthorized, "user not found")
				case errors.Is(err, directory.ErrUnavailable):
					slog.Error("directory lookup failed", "error", err, "requestId", GetRequestID(r.Context()))
					response.Err(w, http.StatusServiceUnavailable, "authentication service unavailable")
				default:
					slog.Error("unexpected directory error", "error", err, "requestId", GetRequestID(r.Context()))
					response.Err(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			principal := &Principal{
				ID:               u.ID,
				Email:            u.Email,
				SubscriptionTier: u.SubscriptionTier,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
		})
	}
}

// GetPrincipal retrieves the authenticated Principal from the request context.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// tokenPrefix truncates a token for logging. Raw tokens never appear in
// full anywhere in the logs.
func tokenPrefix(raw string) string {
	if len(raw) > 12 {
		return raw[:12] + "..."
	}
	return raw
}
