package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/rs/zerolog/log"
)

type contextKey string

const claimsKey contextKey = "claims"

// Authenticate requires a terminal JWT in the Authorization header. Tokens
// whose role is not a known operator role are refused.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": problem})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil || !enum.OperatorRole(claims.Role).Valid() {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through only operators holding one of roles.
func RequireRole(roles ...enum.OperatorRole) func(http.Handler) http.Handler {
	allowed := make(map[enum.OperatorRole]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}
			if !allowed[enum.OperatorRole(claims.Role)] {
				log.Warn().
					Str("access_id", claims.AccessID).
					Str("role", claims.Role).
					Str("path", r.URL.Path).
					Msg("role denied")
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims on ctx. Used by Authenticate and by tests.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the terminal claims, or nil outside Authenticate.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// bearerToken extracts the token, or returns the message to answer with.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", "invalid authorization format"
	}
	return strings.TrimSpace(token), ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
