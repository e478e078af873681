package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware tags each request with an id, logs it on completion and
// turns handler panics into 500 responses.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		rw := newStatusRecorder(w)

		defer func() {
			if rec := recover(); rec != nil {
				observability.LoggerFromContext(ctx).Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				if !rw.wroteHeader {
					http.Error(rw, `{"error":"internal server error"}`, http.StatusInternalServerError)
				}
			}

			event := observability.LoggerFromContext(ctx).Info()
			if rw.statusCode >= http.StatusInternalServerError {
				event = observability.LoggerFromContext(ctx).Error()
			}
			// Patient text lives in request bodies and is never logged.
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r)
	})
}
