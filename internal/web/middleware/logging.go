// Package middleware holds the HTTP middleware of the ExamSeat server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/ExamSeat/internal/logging"
)

// Logger is an HTTP middleware that logs request details using structured logging.
//
// It stores a request-scoped logger in the context before calling next, so
// handler and core log lines for the same request share its attributes. It
// must run after chi's RequestID and TrustedRealIP.
//
// Log fields:
//   - request_id: chi request id (added by logging.FromContext)
//   - ip: client IP as resolved by ClientIP
//   - method: HTTP method
//   - path: request URL path
//   - status: response status code (200 when the handler never wrote one)
//   - bytes: response body size
//   - duration_ms: request processing time in milliseconds
//   - user_agent: client user agent string
//
// Responses with status 500 and above are logged at Error, the rest at Info.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := logging.FromContext(r.Context()).With("ip", ClientIP(r))
		r = r.WithContext(logging.NewContext(r.Context(), logger))

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		level := logger.Info
		if ww.status >= http.StatusInternalServerError {
			level = logger.Error
		}
		level("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap provides access to the underlying ResponseWriter for
// http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
