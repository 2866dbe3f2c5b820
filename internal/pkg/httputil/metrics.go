package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
)

// unmatchedRoute labels requests chi could not route, so scanners hitting
// random paths share one series.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records request latency and counts per route pattern.
// The route label is the chi pattern ("/news/{key}"), never the raw path.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusClass(status)).Inc()
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}

// statusClass folds a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
