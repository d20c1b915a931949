package api

import (
	"net/http"
	"strings"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/auth"
)

// AuthMiddleware requires a bearer token accepted by v. The token may also
// come from the token query parameter, since browsers cannot set headers on
// WebSocket requests. A nil verifier lets everything through.
func AuthMiddleware(v *auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = h[7:]
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if err := v.Verify(token); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
