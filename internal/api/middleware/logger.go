package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"appguard-lab/pkg/logger"
)

// Logger returns an access-log middleware. Each line carries the matched
// route pattern and, when the route names them, the device and scan ids, so
// API traffic can be joined with the scan logs. Client errors log at warn and
// server errors at error.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				event := levelFor(log, status).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context()))

				// routing fills the shared route context while next runs
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						event = event.Str("route", pattern)
					}
					if device := rctx.URLParam("device"); device != "" {
						event = event.Str("device_id", device)
					}
					if scan := rctx.URLParam("id"); scan != "" && strings.HasPrefix(rctx.RoutePattern(), "/api/v1/scans/") {
						event = event.Str("scan_id", scan)
					}
				}

				event.Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

func levelFor(log *logger.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	default:
		return log.Info()
	}
}
