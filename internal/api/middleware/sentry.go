package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

var spanStatusByCode = map[int]sentry.SpanStatus{
	http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
	http.StatusForbidden:             sentry.SpanStatusPermissionDenied,
	http.StatusNotFound:              sentry.SpanStatusNotFound,
	http.StatusConflict:              sentry.SpanStatusAlreadyExists,
	http.StatusRequestEntityTooLarge: sentry.SpanStatusFailedPrecondition,
	http.StatusTooManyRequests:       sentry.SpanStatusResourceExhausted,
	499:                              sentry.SpanStatusCanceled,
	http.StatusBadGateway:            sentry.SpanStatusUnavailable,
	http.StatusServiceUnavailable:    sentry.SpanStatusUnavailable,
	http.StatusGatewayTimeout:        sentry.SpanStatusDeadlineExceeded,
}

// SentryMiddleware opens a transaction per request on its own hub. The
// transaction is renamed to the matched route and tagged with the resolved
// tenant once the handler returns.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		opts := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}

		ctx := sentry.SetHubOnContext(r.Context(), hub)
		tx := sentry.StartTransaction(ctx, r.Method+" "+r.URL.Path, opts...)
		defer tx.Finish()
		r = r.WithContext(tx.Context())

		hub.Scope().SetRequest(r)
		if id := GetRequestID(r.Context()); id != "" {
			hub.Scope().SetTag("request_id", id)
		}

		defer func() {
			if p := recover(); p != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), p)
				panic(p)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		tx.Status = spanStatus(status)
		tx.SetData("http.response.status_code", status)
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			tx.Name = r.Method + " " + rctx.RoutePattern()
			tx.Source = sentry.SourceRoute
		}
		if tenantID := r.Header.Get(TenantHeader); tenantID != "" {
			tx.SetTag("tenant_id", tenantID)
			hub.Scope().SetTag("tenant_id", tenantID)
		}
	})
}

func spanStatus(status int) sentry.SpanStatus {
	if s, ok := spanStatusByCode[status]; ok {
		return s
	}
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	default:
		return sentry.SpanStatusInternalError
	}
}
