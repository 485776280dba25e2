package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover returns middleware that logs a panicking request with its
// correlation IDs and stack, then panics again with the same value so
// net/http aborts the response as it would without this middleware.
//
// http.ErrAbortHandler is passed through without logging.
func Recover(logger *slog.Logger, instance string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "request")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				c := CorrelationFrom(r.Context())
				logger.Error("request fault",
					"error", fmt.Sprint(v),
					"instance", instance,
					"request_id", RequestIDFrom(r.Context()),
					"session_id", c.SessionID(),
					"trace_id", TraceID(r),
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"stack", string(debug.Stack()),
				)
				panic(v)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
