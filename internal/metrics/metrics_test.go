package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AttemptStarted(false)
		m.AttemptClosed(model.AttemptStateExpired, 1)
		m.AnswerRecorded()
	})
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AttemptStarted(false)
	m.AttemptStarted(true)
	m.AttemptStarted(true)
	m.AnswerRecorded()
	m.AttemptClosed(model.AttemptStateSubmitted, 7.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range metric.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				got[key] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, got["exam_attempts_started_total,resumed=true"])
	assert.Equal(t, 1.0, got["exam_attempts_started_total,resumed=false"])
	assert.Equal(t, 1.0, got["exam_answers_recorded_total"])
	assert.Equal(t, 1.0, got["exam_attempts_closed_total,state=submitted"])
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", Handler(reg))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{endpoint="/ping",method="GET",status="200"} 1`))
}
