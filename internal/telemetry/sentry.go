// Package telemetry wraps Sentry tracing and error capture for the answer
// pipeline.
package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const serverName = "bokai"

type Config struct {
	DSN         string
	Environment string
	// TracesSampleRate defaults to 1 outside production and 0.1 in it.
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a flush function.
// With no DSN, or when the client cannot be built, tracing stays off and
// the returned function does nothing.
func Init(cfg Config, logger *zap.Logger) (func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
		if cfg.Environment == "production" {
			cfg.TracesSampleRate = 0.1
		}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: sentry.TracesSampler(func(sc sentry.SamplingContext) float64 {
			return sampleRate(sc.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
		return noop, nil
	}

	logger.Info("sentry tracing enabled",
		zap.String("environment", cfg.Environment),
		zap.Float64("sample_rate", cfg.TracesSampleRate))
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampleRate never traces health and metrics scrapes and keeps child spans with their parent.
func sampleRate(span *sentry.Span, base float64) float64 {
	switch span.Name {
	case "GET /health", "GET /metrics":
		return 0
	}
	var root sentry.SpanID
	if span.ParentSpanID != root {
		if span.Sampled.Bool() {
			return 1
		}
		return 0
	}
	return base
}

// SpanAttributes are the tags every pipeline stage may carry.
type SpanAttributes struct {
	TenantID   string
	DocumentID string
	QueryType  string
	Route      string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	for key, value := range map[string]string{
		"tenant_id":   a.TenantID,
		"document_id": a.DocumentID,
		"query_type":  a.QueryType,
		"route":       a.Route,
	} {
		if value != "" {
			span.SetTag(key, value)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed. Capturing the error is left to
// CaptureError so a failure is reported once.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	s.inner.SetData("error", err.Error())
}

func (s *Span) SetTag(key, value string) {
	if s.inner != nil && value != "" {
		s.inner.SetTag(key, value)
	}
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err on the request's hub.
func CaptureError(ctx context.Context, err error) {
	if err != nil {
		hubFrom(ctx).CaptureException(err)
	}
}

// RecordEscalation leaves a breadcrumb when a query is handed to a human,
// so a later error in the same request shows why.
func RecordEscalation(ctx context.Context, reason, queryType string) {
	hubFrom(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "escalation",
		Message:   reason,
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"query_type": queryType},
		Timestamp: time.Now(),
	}, nil)
}
