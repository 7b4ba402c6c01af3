package csrf

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/jw6ventures/calpicker/internal/session"
)

type contextKey struct{}

// HeaderName carries the token on API requests.
const HeaderName = "X-CSRF-Token"

// Middleware validates mutating requests against the token of the session
// workspace. It must run after session.Manager.Middleware.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, ok := session.FromContext(r.Context())
			if !ok || ws.CSRFToken == "" {
				http.Error(w, "missing session", http.StatusInternalServerError)
				return
			}
			token := ws.CSRFToken

			if isStateChanging(r.Method) {
				provided := r.Header.Get(HeaderName)
				if provided == "" {
					provided = r.FormValue("_csrf")
				}
				if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
					http.Error(w, "invalid csrf token", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), contextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the CSRF token associated with the request.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
