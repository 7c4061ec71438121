// Package metrics exposes Prometheus instrumentation for the retrieval
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Labels: route (local|remote|fallback), query_type
	Answers *prometheus.CounterVec
	// Labels: reason
	Fallbacks *prometheus.CounterVec
	// Labels: route
	AnswerDuration *prometheus.HistogramVec
	// Estimated spend in the configured currency. Labels: route
	Cost *prometheus.CounterVec
	// Labels: status (ok|failed)
	IndexedChunks *prometheus.CounterVec
	// Labels: status (ok|failed)
	Retrievals *prometheus.CounterVec
	// Labels: status (ok|failed)
	ConversationFlushes *prometheus.CounterVec
	// Labels: type (explicit|implicit), rating
	Feedback *prometheus.CounterVec
	// Labels: status (completed|retried|failed)
	IndexJobs   *prometheus.CounterVec
	RateLimited prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates and registers the pipeline metrics on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "answers_total",
			Help:      "Answers produced by the pipeline.",
		}, []string{"route", "query_type"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "fallbacks_total",
			Help:      "Responses escalated to a human, by reason.",
		}, []string{"reason"}),
		AnswerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bokai",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end pipeline latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		Cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "generation_cost_total",
			Help:      "Estimated generation cost.",
		}, []string{"route"}),
		IndexedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "indexed_chunks_total",
			Help:      "Knowledge chunks upserted into tenant collections.",
		}, []string{"status"}),
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "retrievals_total",
			Help:      "Knowledge retrieval attempts.",
		}, []string{"status"}),
		ConversationFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "conversation_flushes_total",
			Help:      "Conversation log batch flushes.",
		}, []string{"status"}),
		Feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "feedback_total",
			Help:      "Feedback recorded on answers.",
		}, []string{"type", "rating"}),
		IndexJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "index_jobs_total",
			Help:      "Index jobs processed by the worker.",
		}, []string{"status"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bokai",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-tenant rate limit.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Answers,
		m.Fallbacks,
		m.AnswerDuration,
		m.Cost,
		m.IndexedChunks,
		m.Retrievals,
		m.ConversationFlushes,
		m.Feedback,
		m.IndexJobs,
		m.RateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAnswer records one finished pipeline run.
func (m *Metrics) ObserveAnswer(route, queryType, fallbackReason string, cost float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(route, queryType).Inc()
	m.AnswerDuration.WithLabelValues(route).Observe(elapsed.Seconds())
	if cost > 0 {
		m.Cost.WithLabelValues(route).Add(cost)
	}
	if fallbackReason != "" {
		m.Fallbacks.WithLabelValues(fallbackReason).Inc()
	}
}

// AddIndexedChunks counts upserted or failed chunks.
func (m *Metrics) AddIndexedChunks(ok bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IndexedChunks.WithLabelValues(status(ok)).Add(float64(n))
}

// IncRetrieval counts a retrieval attempt.
func (m *Metrics) IncRetrieval(ok bool) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(status(ok)).Inc()
}

// IncConversationFlush counts a conversation log flush.
func (m *Metrics) IncConversationFlush(ok bool) {
	if m == nil {
		return
	}
	m.ConversationFlushes.WithLabelValues(status(ok)).Inc()
}

func (m *Metrics) IncFeedback(feedbackType, rating string) {
	if m == nil {
		return
	}
	m.Feedback.WithLabelValues(feedbackType, rating).Inc()
}

// IncIndexJob counts a processed index job by outcome.
func (m *Metrics) IncIndexJob(outcome string) {
	if m == nil {
		return
	}
	m.IndexJobs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
