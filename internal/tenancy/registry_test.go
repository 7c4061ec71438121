package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const (
	tenantA = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	tenantB = "9b2e6a6c-1d0f-4a53-8a43-52f4d3c0b7aa"
)

type fakeSession struct {
	tenantID string
	closed   atomic.Bool
}

func (s *fakeSession) Close() { s.closed.Store(true) }

func countingFactory(calls *atomic.Int32, delay time.Duration) Factory[*fakeSession] {
	return func(ctx context.Context, tenantID string) (*fakeSession, error) {
		calls.Add(1)
		time.Sleep(delay)
		return &fakeSession{tenantID: tenantID}, nil
	}
}

func TestRegistry_ProvisionsAtMostOncePerTenant(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 20*time.Millisecond), nil)
	defer reg.Close()

	const workers = 32
	results := make([]*fakeSession, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Session(context.Background(), tenantA)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, reg.Len())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestRegistry_SeparateSessionsPerTenant(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 0), nil)
	defer reg.Close()

	a, err := reg.Session(context.Background(), tenantA)
	require.NoError(t, err)
	b, err := reg.Session(context.Background(), tenantB)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, tenantA, a.tenantID)
	assert.Equal(t, tenantB, b.tenantID)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_NormalizesTenantKey(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 0), nil)
	defer reg.Close()

	lower, err := reg.Session(context.Background(), tenantA)
	require.NoError(t, err)
	upper, err := reg.Session(context.Background(), "3F2504E0-4F89-11D3-9A0C-0305E82C3301")
	require.NoError(t, err)

	assert.Same(t, lower, upper)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_RejectsMalformedTenant(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 0), nil)
	defer reg.Close()

	_, err := reg.Session(context.Background(), "not-a-tenant")
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRegistry_FactoryErrorIsNotCached(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(func(ctx context.Context, tenantID string) (*fakeSession, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("db down")
		}
		return &fakeSession{tenantID: tenantID}, nil
	}, nil)
	defer reg.Close()

	_, err := reg.Session(context.Background(), tenantA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	s, err := reg.Session(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Equal(t, tenantA, s.tenantID)
}

func TestRegistry_CloseReleasesSessions(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 0), nil)

	s, err := reg.Session(context.Background(), tenantA)
	require.NoError(t, err)

	reg.Close()
	reg.Close()

	assert.True(t, s.closed.Load())
	assert.Equal(t, 0, reg.Len())

	_, err = reg.Session(context.Background(), tenantA)
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_CallerCancellationDoesNotAbortProvisioning(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFactory(&calls, 50*time.Millisecond), nil)
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := reg.Session(ctx, tenantA)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s, err := reg.Session(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Equal(t, tenantA, s.tenantID)
	assert.Equal(t, int32(1), calls.Load())
}
