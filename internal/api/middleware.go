package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const refreshStatusHeader = "X-Refresh-Status"

// requestLogger logs each request with the refresh outcome it reported.
// Gestures that changed the filter also log the dashboard location they
// left behind. Probes and scrapes log at debug.
func requestLogger(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if refresh := ww.Header().Get(refreshStatusHeader); refresh != "" {
				attrs = append(attrs, "refresh", refresh)
			}
			if r.Method != http.MethodGet && ww.Status() < http.StatusBadRequest {
				attrs = append(attrs, "location", svc.Location())
			}

			level := slog.LevelInfo
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/api/v1/events") {
				level = slog.LevelDebug
			}
			slog.Log(r.Context(), level, "http request", attrs...)
		})
	}
}
