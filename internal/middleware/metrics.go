package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whispr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispr_logins_total",
			Help: "Successful logins by method (password, google, github)",
		},
		[]string{"method"},
	)

	registrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whispr_registrations_total",
			Help: "Total number of completed registrations",
		},
	)

	secretsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whispr_secrets_submitted_total",
			Help: "Total number of secrets submitted",
		},
	)
)

// RecordLogin increments the login counter for the given method.
func RecordLogin(method string) {
	loginsTotal.WithLabelValues(method).Inc()
}

// RecordRegistration increments the registration counter.
func RecordRegistration() {
	registrationsTotal.Inc()
}

// RecordSecretSubmitted increments the secret submission counter.
func RecordSecretSubmitted() {
	secretsSubmittedTotal.Inc()
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			path := normalizePath(r.URL.Path)

			next.ServeHTTP(rec, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rec.status)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath collapses provider-parameterized routes so metric cardinality
// stays bounded.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/auth/") {
		if strings.HasSuffix(path, "/secrets") {
			return "/auth/{provider}/secrets"
		}
		return "/auth/{provider}"
	}
	return path
}
