package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// WithSession carga la sesión del request y la inyecta en el contexto.
// Nunca falla: sin cookie o con cache caído se inyecta una sesión anónima.
func WithSession(store *session.Store) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := store.Load(r.Context(), r)
			ctx := session.ToContext(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser corta con 401 si la sesión no tiene un usuario autenticado.
// Debe correr después de WithSession.
func RequireUser() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess == nil || !sess.Authenticated() || sess.User == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
