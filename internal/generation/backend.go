// Package generation adapts text generation providers to a common contract.
package generation

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Request is a single prompt submitted to a backend.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Result is the generated text. Usage is nil when the provider did not
// report token counts.
type Result struct {
	Text  string
	Usage *domain.TokenUsage
}

// Backend generates text from a prompt.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Retrying wraps b so transient provider failures are retried with backoff.
// maxRetries <= 0 returns b unchanged.
func Retrying(b Backend, maxRetries int, delay time.Duration) Backend {
	if b == nil || maxRetries <= 0 {
		return b
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &retryingBackend{
		next: b,
		policy: retrypolicy.NewBuilder[*Result]().
			WithBackoff(delay, 8*delay).
			WithMaxRetries(maxRetries).
			HandleIf(func(_ *Result, err error) bool {
				return domain.IsTransient(err)
			}).
			ReturnLastFailure().
			Build(),
	}
}

type retryingBackend struct {
	next   Backend
	policy retrypolicy.RetryPolicy[*Result]
}

func (r *retryingBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	return failsafe.With(r.policy).WithContext(ctx).Get(func() (*Result, error) {
		return r.next.Generate(ctx, req)
	})
}

func (r *retryingBackend) Name() string {
	return r.next.Name()
}
