package main

import (
	"fmt"
	"net/http"
	"strings"

	"voyanceBack/internal/handlers"
	"voyanceBack/internal/models"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func makeResponseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.infoLog.Printf("%s - %s %s %s", handlers.ClientIP(r), r.Proto, r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(handlers.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// resolvePrincipal authenticates the access token and, when it is missing or
// expired, falls back to the refresh cookie and rotates the session.
func (app *application) resolvePrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	if p, err := app.authService.Authenticate(bearerToken(r)); err == nil {
		return p, true
	}
	c, err := r.Cookie(handlers.RefreshCookie)
	if err != nil || c.Value == "" {
		return models.Principal{}, false
	}
	res, err := app.authService.Refresh(r.Context(), c.Value)
	if err != nil {
		return models.Principal{}, false
	}
	app.authHandler.SetSessionCookies(w, res.Tokens)
	return res.Principal, true
}

// requireRole rejects requests without a session with 401 and sessions of any
// other role with 403. The account is re-checked on every request so a disabled
// account is refused immediately. An empty role list accepts every authenticated caller.
func (app *application) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := app.resolvePrincipal(w, r)
			if !ok {
				handlers.WriteError(w, r, models.ErrUnauthorized)
				return
			}
			if err := app.authService.Verify(r.Context(), p); err != nil {
				handlers.WriteError(w, r, err)
				return
			}
			if len(roles) > 0 && !hasRole(p.Role, roles) {
				handlers.WriteError(w, r, models.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.WithPrincipal(r.Context(), p)))
		})
	}
}

// optionalSession attaches the principal when one is present and never rejects.
func (app *application) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := app.authService.Authenticate(bearerToken(r)); err == nil {
			r = r.WithContext(handlers.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
