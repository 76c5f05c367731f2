package httpserver

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"app_reviews/internal/adapters/observability"
)

// Timeout cancels the request context after d. A Google run walks the whole
// review history, so d has to cover the slowest upstream fetch.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// Observe records each request once: a metrics sample labelled by route
// pattern and an access log line. Pipeline failures surface as 502 or 500,
// so anything 500 and up logs at warn.
func Observe(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			took := time.Since(start)
			status := statusOf(ww)
			route := routeOf(r)
			observability.ObserveHTTP(route, r.Method, status, took)

			ev := l.Info()
			if status >= http.StatusInternalServerError {
				ev = l.Warn()
			}
			ev.Str("request_id", chimw.GetReqID(r.Context())).
				Str("route", route).
				Str("method", r.Method).
				Str("query", r.URL.RawQuery).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", took).
				Str("remote", clientIP(r)).
				Msg("http_request")
		})
	}
}

// statusOf treats a handler that never called WriteHeader as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// routeOf prefers the chi pattern so that app ids stay out of metric labels.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// clientIP strips the port. chimw.RealIP has already replaced RemoteAddr
// with the forwarded address when a proxy set one.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
