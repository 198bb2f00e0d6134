package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/handler"
	"github.com/sileshop/backend/internal/logging"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context()).Error().
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				handler.JSON(w, http.StatusInternalServerError, map[string]interface{}{
					"ok":    false,
					"error": domain.CodeInternal,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
