package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paytrack_http_requests_total",
		Help: "HTTP requests processed, labelled by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paytrack_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := normalizeRoute(r.URL.Path)
		timer := prometheus.NewTimer(requestDuration.WithLabelValues(r.Method, route))

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		timer.ObserveDuration()
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
	})
}

// normalizeRoute collapses parameterized paths so id and filename values do
// not explode label cardinality.
func normalizeRoute(path string) string {
	switch {
	case strings.HasPrefix(path, "/edit/"):
		return "/edit/{id}"
	case strings.HasPrefix(path, "/delete/"):
		return "/delete/{id}"
	case strings.HasPrefix(path, "/uploads/"):
		return "/uploads/{filename}"
	case strings.HasPrefix(path, "/static/"):
		return "/static/"
	}
	return path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
