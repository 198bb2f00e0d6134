package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sileshop/backend/internal/contextkeys"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/handler"
	"github.com/sileshop/backend/internal/service"
)

// Auth requires a valid session, taken from the session cookie or a Bearer
// token, and stores the user identity in the request context.
func Auth(authSvc *service.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(r, authSvc)
			if !ok {
				handler.Error(w, r, domain.ErrUnauthorized(domain.CodeAuthRequired))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the identity when a valid session is present and
// otherwise lets the request through anonymously.
func OptionalAuth(authSvc *service.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx, ok := authenticate(r, authSvc); ok {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, authSvc *service.AuthService) (context.Context, bool) {
	token := sessionToken(r)
	if token == "" {
		return nil, false
	}
	claims, err := authSvc.VerifySession(token)
	if err != nil {
		return nil, false
	}
	ctx := context.WithValue(r.Context(), contextkeys.UserID, claims.UserID)
	ctx = context.WithValue(ctx, contextkeys.DiscordID, claims.DiscordID)
	return ctx, true
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(handler.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
