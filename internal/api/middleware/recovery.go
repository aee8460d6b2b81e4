package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
)

// Recovery middleware catches panics and returns a 500 error.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.ErrorContext(r.Context(), "panic recovered",
						"panic", err, "path", r.URL.Path, "stack", string(debug.Stack()))
					response.Error(w, domain.NewInternalError(nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
