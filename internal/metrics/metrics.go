// Package metrics exposes Prometheus collectors for the HTTP layer and the
// attempt engine.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AttemptTransitions counts lifecycle transitions by resulting status.
	AttemptTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_transitions_total",
			Help: "Attempt lifecycle transitions by resulting status",
		},
		[]string{"status"},
	)

	// AttemptConflicts counts lifecycle transactions that lost a race.
	AttemptConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_conflicts_total",
			Help: "Lifecycle transactions that hit a uniqueness conflict",
		},
		[]string{"operation", "outcome"},
	)

	// BandsAwarded counts graded attempts per CEFR band.
	BandsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_bands_awarded_total",
			Help: "Graded attempts per CEFR band",
		},
		[]string{"band"},
	)

	// SpeakingClamped counts external speaking scores outside [0, 20].
	SpeakingClamped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grading_speaking_clamped_total",
			Help: "Speaking scores clamped into range",
		},
	)

	// TranscriptTruncated counts speaking transcripts cut to the stored maximum.
	TranscriptTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grading_transcript_truncated_total",
			Help: "Speaking transcripts truncated to the stored maximum",
		},
	)

	// CheatingEvents counts recorded integrity events by type and persistence path.
	CheatingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheating_events_total",
			Help: "Integrity events recorded",
		},
		[]string{"type", "path"},
	)

	// PresenceConflicts counts presence signals that saw another live session.
	PresenceConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_conflicts_total",
			Help: "Presence signals that observed a concurrent session",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptTransitions,
			AttemptConflicts,
			BandsAwarded,
			SpeakingClamped,
			TranscriptTruncated,
			CheatingEvents,
			PresenceConflicts,
		)
	})
}

// MetricsMiddleware records count and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler serves the default registry.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
