// Package metrics exposes Prometheus collectors for the HTTP API and the
// challenge workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service records into
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Submissions      prometheus.Counter
	SubmissionDenied *prometheus.CounterVec
	Grades           prometheus.Counter
	LeaderboardBuild prometheus.Histogram
}

// New creates and registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "challenge_submissions_total",
			Help: "Submissions accepted",
		}),
		SubmissionDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_submissions_denied_total",
				Help: "Submission attempts refused, by reason",
			},
			[]string{"reason"},
		),
		Grades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "challenge_grades_total",
			Help: "Score upserts applied",
		}),
		LeaderboardBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "challenge_leaderboard_build_seconds",
			Help:    "Time spent computing the leaderboard",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.Submissions,
		m.SubmissionDenied,
		m.Grades,
		m.LeaderboardBuild,
		collectors.NewGoCollector(),
	)
	return m
}

// Middleware records request counts and latencies labelled by route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
