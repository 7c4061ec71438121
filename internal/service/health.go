package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
	// Optional checks report but do not make the service unhealthy.
	Optional bool
}

type ComponentStatus struct {
	Name     string
	Healthy  bool
	Optional bool
	Error    string
	Latency  time.Duration
}

type HealthReport struct {
	Healthy    bool
	Components []ComponentStatus
}

// HealthService runs dependency checks concurrently.
type HealthService struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthService(timeout time.Duration, checks ...HealthCheck) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthService{checks: checks, timeout: timeout}
}

func (s *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	statuses := make([]ComponentStatus, len(s.checks))
	var g errgroup.Group
	for i, c := range s.checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			st := ComponentStatus{Name: c.Name, Healthy: err == nil, Optional: c.Optional, Latency: time.Since(start)}
			if err != nil {
				st.Error = err.Error()
			}
			statuses[i] = st
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{Healthy: true, Components: statuses}
	for _, st := range statuses {
		if !st.Healthy && !st.Optional {
			report.Healthy = false
		}
	}
	return report
}
