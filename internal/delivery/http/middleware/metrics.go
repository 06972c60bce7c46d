package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware считает запросы и их длительность по шаблону маршрута chi
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			// шаблон известен только после маршрутизации
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.ObserveHTTP(r.Method, route, strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}
