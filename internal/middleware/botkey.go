package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/handler"
)

// BotKeyHeader carries the shared bot API key.
const BotKeyHeader = "x-api-key"

// BotKey guards bot-facing routes with a shared API key. An unset key fails
// closed for every request.
func BotKey(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				handler.Error(w, r, domain.ErrInternal(domain.CodeBotAPIKeyNotSet, nil))
				return
			}
			got := r.Header.Get(BotKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				handler.Error(w, r, domain.ErrUnauthorized(domain.CodeInvalidAPIKey))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
