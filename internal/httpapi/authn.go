package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"docdesk.org/internal/directory"
)

const (
	authHeaderName = "Authorization"
	bearer     = "Bearer "
	tokenTTL   = time.Hour
)

var publicPaths = []string{
	"/v1/auth/token",
	"/v1/accounts/register",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeaderName))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := directory.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		actor := directory.Actor{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  directory.Role(claims.Role),
		}
		next.ServeHTTP(w, r.WithContext(directory.ContextWithActor(r.Context(), actor)))
	})
}

// requireAdmin gates the governance operations reserved for admins. It writes
// the error response itself and reports whether the handler may proceed.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := directory.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !actor.IsAdmin() {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
