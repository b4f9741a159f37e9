package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"voyanceBack/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller stored by the session middleware.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func principal(r *http.Request) (models.Principal, error) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || p.UserID == 0 {
		return models.Principal{}, models.ErrUnauthorized
	}
	return p, nil
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
