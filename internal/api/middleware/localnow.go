package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
)

type contextKey string

const (
	// LocalNowKey is the context key for the client's local time.
	LocalNowKey contextKey = "localNow"
	// LocalNowHeader carries the client's current time as RFC 3339 with its
	// UTC offset, e.g. 2025-01-06T09:30:00+01:00.
	LocalNowHeader = "X-Daybook-Local-Now"
)

// LocalNow middleware parses the X-Daybook-Local-Now header and adds it to
// context. Requests without the header pass through unchanged; a malformed
// header is rejected.
func LocalNow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(LocalNowHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		now, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(w, domain.NewFieldValidationError(LocalNowHeader, "must be an RFC 3339 timestamp"))
			return
		}

		ctx := context.WithValue(r.Context(), LocalNowKey, now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLocalNow retrieves the client's local time from context, if sent.
func GetLocalNow(ctx context.Context) *time.Time {
	if now, ok := ctx.Value(LocalNowKey).(time.Time); ok {
		return &now
	}
	return nil
}
