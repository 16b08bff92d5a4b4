package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// routeAccess tags a route as public or protected. The tag is declared next
// to each route and consulted when the router is built, so there is no
// runtime metadata lookup.
type routeAccess int

const (
	accessPublic routeAccess = iota
	accessProtected
)

type contextKey struct{}

// userClaimsKey holds the verified access token claims of the request.
var userClaimsKey = contextKey{}

// claimsFromContext returns the access token claims stored by requireAuth.
func claimsFromContext(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*jwt.RegisteredClaims)
	return claims, ok
}

// requireAuth verifies the bearer access token and stores its claims in the
// request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.respondMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.respondMessage(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := h.jwtAuth.Verify(parts[1], h.cfg.Token.AccessTokenSecret)
		if err != nil {
			h.respondMessage(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
