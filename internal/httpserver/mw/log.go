package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

// Log writes one line per request. Server errors are logged at warn so
// they stand out from the access log.
func Log(loggerClient logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", status),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("remote_ip", r.RemoteAddr),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				loggerClient.Warn("http_request", fields...)
				return
			}
			loggerClient.Info("http_request", fields...)
		})
	}
}
