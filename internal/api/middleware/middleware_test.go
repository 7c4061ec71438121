package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/logging"
	"github.com/cloo-solutions/bokai/internal/ratelimit"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

const testTenantID = "7f1c2a9e-5b34-4d6a-9c1e-2f8b7a6d5e40"

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, tenantID, principal string) (*tenancy.Handle, error) {
	args := m.Called(ctx, tenantID, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Handle), args.Error(1)
}

type fakeLimiter struct {
	decision ratelimit.Decision
	tenantID string
	clientIP string
}

func (f *fakeLimiter) Allow(_ context.Context, tenantID, clientIP string) ratelimit.Decision {
	f.tenantID, f.clientIP = tenantID, clientIP
	return f.decision
}

// tenantRouter mounts Principal and Tenant the way the server does.
func tenantRouter(resolver TenantResolver, seen *string) http.Handler {
	r := chi.NewRouter()
	r.Use(Principal)
	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(Tenant(resolver))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			*seen = GetTenantID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func TestPrincipal_RequiresUserID(t *testing.T) {
	var seen string
	h := tenantRouter(new(MockResolver), &seen)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/"+testTenantID+"/ping", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeUnauthorized)
}

func TestTenant_FromPath(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, testTenantID, "user-1").
		Return(&tenancy.Handle{TenantID: testTenantID}, nil)
	var seen string
	h := tenantRouter(resolver, &seen)

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+testTenantID+"/ping", nil)
	req.Header.Set(PrincipalHeader, "user-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testTenantID, seen)
	assert.Equal(t, testTenantID, req.Header.Get(TenantHeader))
}

func TestTenant_StoresResolvedHandle(t *testing.T) {
	resolver := new(MockResolver)
	handle := &tenancy.Handle{TenantID: testTenantID, Collection: domain.CollectionName(testTenantID)}
	resolver.On("Resolve", mock.Anything, testTenantID, "user-1").Return(handle, nil).Once()

	var got *tenancy.Handle
	r := chi.NewRouter()
	r.Use(Principal)
	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(Tenant(resolver))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			got = GetTenantHandle(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+testTenantID+"/ping", nil)
	req.Header.Set(PrincipalHeader, "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Same(t, handle, got)
	assert.Nil(t, GetTenantHandle(context.Background()))
	resolver.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestTenant_HeaderWinsWhenItMatches(t *testing.T) {
	upper := strings.ToUpper(testTenantID)
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, upper, "user-1").
		Return(&tenancy.Handle{TenantID: testTenantID}, nil)
	var seen string
	h := tenantRouter(resolver, &seen)

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+testTenantID+"/ping", nil)
	req.Header.Set(PrincipalHeader, "user-1")
	req.Header.Set(TenantHeader, upper)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testTenantID, seen)
}

func TestTenant_MismatchIsRejected(t *testing.T) {
	resolver := new(MockResolver)
	var seen string
	h := tenantRouter(resolver, &seen)

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+testTenantID+"/ping?tenantId=6f1c2f0e-3b7a-4c1e-9d2a-0a4b5c6d7e8f", nil)
	req.Header.Set(PrincipalHeader, "user-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeInvalidTenant)
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestTenant_ResolverErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"malformed", domain.ErrInvalidTenant, http.StatusBadRequest},
		{"foreign", domain.ErrTenantAccessDenied, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockResolver)
			resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			var seen string
			h := tenantRouter(resolver, &seen)

			req := httptest.NewRequest(http.MethodGet, "/tenants/acme/ping", nil)
			req.Header.Set(PrincipalHeader, "user-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, seen)
		})
	}
}

func TestExtractTenantID_QueryWithoutPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ask?tenantId="+testTenantID, nil)
	got, err := extractTenantID(req)
	require.NoError(t, err)
	assert.Equal(t, testTenantID, got)

	_, err = extractTenantID(httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(time.Minute).Truncate(time.Second)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allowed", func(t *testing.T) {
		limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 1000, Remaining: 999, ResetAt: reset}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req = req.WithContext(WithTenant(req.Context(), testTenantID, "user-1"))
		w := httptest.NewRecorder()

		RateLimit(limiter, nil)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1000", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
		assert.Equal(t, testTenantID, limiter.tenantID)
		assert.Equal(t, "203.0.113.7", limiter.clientIP)
	})

	t.Run("exceeded", func(t *testing.T) {
		limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, Limit: 1000, Remaining: 0, ResetAt: reset}}
		w := httptest.NewRecorder()

		RateLimit(limiter, nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), domain.ErrCodeRateLimited)
	})

	t.Run("disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		RateLimit(nil, nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var ctxLogger *zap.Logger
	h := RequestID(AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = logging.FromContext(r.Context(), nil)
		r.Header.Set(TenantHeader, testTenantID)
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/tenants/x/knowledge", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, ctxLogger)
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, testTenantID, fields["tenant_id"])
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestMaxBodyBytes(t *testing.T) {
	h := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSentryMiddleware_PassesThrough(t *testing.T) {
	h := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		code int
		want sentry.SpanStatus
	}{
		{http.StatusCreated, sentry.SpanStatusOK},
		{http.StatusBadRequest, sentry.SpanStatusInvalidArgument},
		{http.StatusForbidden, sentry.SpanStatusPermissionDenied},
		{http.StatusTooManyRequests, sentry.SpanStatusResourceExhausted},
		{http.StatusBadGateway, sentry.SpanStatusUnavailable},
		{http.StatusInternalServerError, sentry.SpanStatusInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanStatus(tt.code), "status %d", tt.code)
	}
}
