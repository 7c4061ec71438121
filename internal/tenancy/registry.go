// Package tenancy resolves tenant identifiers into isolated data-access
// handles and owns the per-tenant session cache.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// ErrRegistryClosed is returned once the registry has been shut down.
var ErrRegistryClosed = errors.New("tenant registry closed")

// Session is a tenant-bound resource the registry can release.
type Session interface {
	Close()
}

// Factory provisions a new session bound to one tenant.
type Factory[S Session] func(ctx context.Context, tenantID string) (S, error)

// Registry caches one live session per tenant for the lifetime of the
// process. It is created by the composition root and closed on shutdown.
type Registry[S Session] struct {
	factory        Factory[S]
	provisionLimit time.Duration
	logger         *zap.Logger

	mu       sync.RWMutex
	sessions map[string]S
	closed   bool
	group    singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry[S Session](factory Factory[S], logger *zap.Logger) *Registry[S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[S]{
		factory:        factory,
		provisionLimit: 10 * time.Second,
		logger:         logger,
		sessions:       make(map[string]S),
	}
}

// Session returns the tenant's session, provisioning it on first use.
// Concurrent first calls for the same tenant share a single provisioning.
func (r *Registry[S]) Session(ctx context.Context, tenantID string) (S, error) {
	var zero S

	id, err := domain.NormalizeTenantID(tenantID)
	if err != nil {
		return zero, err
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return zero, ErrRegistryClosed
	}
	if ok {
		return s, nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// Provisioning outlives any single caller so one abandoned request
		// does not fail the others waiting on it.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.provisionLimit)
		defer cancel()

		created, err := r.factory(pctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to provision tenant session: %w", err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			created.Close()
			return nil, ErrRegistryClosed
		}
		r.sessions[id] = created
		r.logger.Info("tenant session provisioned", zap.String("tenant_id", id))
		return created, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(S), nil
	}
}

// Len returns the number of live sessions.
func (r *Registry[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close releases every session. Later calls to Session fail.
func (r *Registry[S]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
	r.logger.Info("tenant registry closed")
}
