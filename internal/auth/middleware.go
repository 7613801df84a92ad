package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/credential"
	httpmiddleware "github.com/wolfeidau/orgtenant/internal/http"
)

type contextKey int

const (
	claimsContextKey contextKey = iota
)

// ClaimsFromContext extracts the verified token claims from the request context.
// Returns nil if the request did not pass through RequireBearer.
func ClaimsFromContext(ctx context.Context) *credential.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*credential.Claims)
	return claims
}

// RequireBearer returns an HTTP middleware that rejects requests without a
// valid, unexpired bearer token and stores the claims of valid ones.
func (g *Gateway) RequireBearer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				zerolog.Ctx(r.Context()).Warn().Msg("Missing bearer token")
				httpmiddleware.WriteError(w, r, apperror.Unauthorized("missing bearer token"))
				return
			}

			claims, err := g.codec.Verify(tokenString)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to verify bearer token")
				httpmiddleware.WriteError(w, r, apperror.Unauthorized("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
