package logster

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// LogsterMiddleware writes one access line per request.
func LogsterMiddleware(logger Logger) func(next http.Handler) http.Handler {
	l := logger.WithField("Layer", "HTTP")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := l.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Errorf("request failed")
			case status >= http.StatusBadRequest:
				entry.Warnf("request rejected")
			default:
				entry.Debugf("request served")
			}
		})
	}
}
