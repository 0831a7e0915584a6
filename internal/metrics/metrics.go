// Package metrics exposes Prometheus collectors for HTTP traffic and the
// attempt lifecycle.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attemptsStarted *prometheus.CounterVec
	attemptsClosed  *prometheus.CounterVec
	answersRecorded prometheus.Counter
	scores          prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		attemptsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_attempts_started_total",
				Help: "Attempts started, split by whether an open attempt was resumed",
			},
			[]string{"resumed"},
		),
		attemptsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_attempts_closed_total",
				Help: "Attempts finalized, by terminal state",
			},
			[]string{"state"},
		),
		answersRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_answers_recorded_total",
			Help: "Answers accepted by the answer collector",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_attempt_score",
			Help:    "Total score of finalized attempts",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.attemptsStarted,
		m.attemptsClosed,
		m.answersRecorded,
		m.scores,
	)
	return m
}

// AttemptStarted counts a StartAttempt call that returned an attempt.
func (m *Metrics) AttemptStarted(resumed bool) {
	if m == nil {
		return
	}
	m.attemptsStarted.WithLabelValues(strconv.FormatBool(resumed)).Inc()
}

// AttemptClosed counts a finalized attempt and observes its score.
func (m *Metrics) AttemptClosed(state model.AttemptState, score float64) {
	if m == nil {
		return
	}
	m.attemptsClosed.WithLabelValues(string(state)).Inc()
	m.scores.Observe(score)
}

// AnswerRecorded counts a stored answer.
func (m *Metrics) AnswerRecorded() {
	if m == nil {
		return
	}
	m.answersRecorded.Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
