package middleware

import (
	"net/http"
	"strings"

	"github.com/mpetrov/pinwall/internal/service"
	"github.com/rs/zerolog"
)

// Gateway decides, per request, whether to let a page route through, send the
// caller to login, or force the first-run admin setup. The auth API itself is
// always reachable, otherwise the login form could never submit.
//
// A probe failure (store down, timeout) lets the request pass instead of
// bouncing users around on transient errors; the page behind it still sees an
// unauthenticated session and fails closed.
func Gateway(authService *service.AuthService, secure bool, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if strings.HasPrefix(path, "/api/v1/auth") || path == "/favicon.ico" || strings.HasPrefix(path, "/static") {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			bootstrapped, err := authService.IsAdminBootstrapped(ctx)
			if err != nil {
				log.Error().Err(err).Msg("gateway: admin probe failed")
				next.ServeHTTP(w, r)
				return
			}
			if path != "/register/init" && !bootstrapped {
				http.Redirect(w, r, "/register/init", http.StatusFound)
				return
			}
			if path == "/register/init" && bootstrapped {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			switch path {
			case "/login":
				result, err := authService.CurrentSession(ctx, NewCookieCarrier(w, r, secure), "")
				if err != nil {
					log.Error().Err(err).Msg("gateway: session probe failed")
					break
				}
				if result.Session != nil {
					http.Redirect(w, r, "/", http.StatusFound)
					return
				}
			case "/":
				result, err := authService.CurrentSession(ctx, NewCookieCarrier(w, r, secure), "")
				if err != nil {
					log.Error().Err(err).Msg("gateway: session probe failed")
					break
				}
				if result.Session == nil {
					http.Redirect(w, r, "/login", http.StatusFound)
					return
				}
			case "/register":
				allowed, err := authService.IsRegistrationAllowed(ctx)
				if err != nil {
					log.Error().Err(err).Msg("gateway: registration probe failed")
					break
				}
				if !allowed {
					http.Redirect(w, r, "/login", http.StatusFound)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
