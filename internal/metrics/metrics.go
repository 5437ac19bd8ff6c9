// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefinder_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Hearts counts heart toggles by resulting action (added, removed).
	Hearts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_hearts_total",
		Help: "Heart toggles by action.",
	}, []string{"action"})

	// PhotosUploaded counts resized and stored photos.
	PhotosUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefinder_photos_uploaded_total",
		Help: "Photos resized and stored.",
	})

	// PasswordResets counts reset flow events (requested, completed, rejected).
	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_password_reset_events_total",
		Help: "Password reset flow events.",
	}, []string{"event"})

	// MailSent counts outbound mail by result (sent, failed).
	MailSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefinder_mail_total",
		Help: "Outbound mail by result.",
	}, []string{"result"})
)

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
