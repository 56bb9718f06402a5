package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/port"
)

const traceHeader = "X-Trace-ID"

// LoggerMiddleware кладет в контекст логгер с trace_id и пишет итог запроса.
// Ответы 5xx логируются как Warn, остальные как Info; /healthz и /metrics - только Debug.
func LoggerMiddleware(logger port.LoggerPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, traceID := contextkeys.EnsureTraceID(r.Context(), r.Header.Get(traceHeader))

			// use case получает логгер без http-полей
			coreLogger := logger.WithFields(port.Fields{"trace_id": traceID})
			ctx = contextkeys.ContextWithLogger(ctx, coreLogger)

			w.Header().Set(traceHeader, traceID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			startTime := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := port.Fields{
				"http_method":   r.Method,
				"http_path":     r.URL.Path,
				"remote_addr":   r.RemoteAddr,
				"status_code":   ww.Status(),
				"bytes_written": ww.BytesWritten(),
				"duration_ms":   time.Since(startTime).Milliseconds(),
			}
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				coreLogger.Warn("Request failed", fields)
			case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
				coreLogger.Debug("Request finished", fields)
			default:
				coreLogger.Info("Request finished", fields)
			}
		})
	}
}
