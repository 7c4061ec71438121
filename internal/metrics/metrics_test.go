package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAnswer(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnswer("local", "simple", "", 0, 120*time.Millisecond)
	m.ObserveAnswer("remote", "complex", "", 0.009, time.Second)
	m.ObserveAnswer("fallback", "sensitive", "no_relevant_knowledge", 0, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("local", "simple")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("no_relevant_knowledge")))
	assert.InDelta(t, 0.009, testutil.ToFloat64(m.Cost.WithLabelValues("remote")), 1e-9)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddIndexedChunks(true, 3)
	m.AddIndexedChunks(false, 0)
	m.IncRetrieval(false)
	m.IncConversationFlush(true)
	m.IncFeedback("explicit", "good")
	m.IncIndexJob("retried")
	m.IncRateLimited()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexedChunks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retrievals.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationFlushes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Feedback.WithLabelValues("explicit", "good")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexJobs.WithLabelValues("retried")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnswer("local", "simple", "", 0, time.Millisecond)
		m.AddIndexedChunks(true, 1)
		m.IncRetrieval(true)
		m.IncConversationFlush(false)
		m.IncFeedback("implicit", "bad")
		m.IncIndexJob("failed")
		m.IncRateLimited()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncRetrieval(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bokai_retrievals_total")
}
