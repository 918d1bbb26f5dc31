package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mlaflamme/proofonsite/internal/auth"
)

// SessionContext resolves the session cookie into an auth context before
// any handler runs. It never blocks a request: with no cookie the context
// is anonymous; with an invalid, expired, or forged cookie the cookie is
// cleared and the context is anonymous; with a valid token the context
// carries the user and session, and a sliding-refresh reissues the cookie
// with the extended expiry. Handlers gate themselves with
// auth.RequireUser.
func SessionContext(svc *auth.Service, cookies auth.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ReadSessionCookie(r, cookies)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), auth.Context{})))
				return
			}

			v, err := svc.Validate(token)
			if err != nil {
				logger.Error("validate session", "error", err)
			}
			if v == nil {
				auth.ClearSessionCookie(w, cookies)
				next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), auth.Context{})))
				return
			}

			if v.Refreshed {
				auth.SetSessionCookie(w, cookies, token, v.Session.ExpiresAt)
			}

			ctx := auth.WithContext(r.Context(), auth.Context{User: v.User, Session: v.Session})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
