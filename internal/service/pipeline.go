package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/telemetry"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

// TenantResolver validates and authorizes a tenant for a principal.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID, principal string) (*tenancy.Handle, error)
}

// AnswerRequest is one customer query.
type AnswerRequest struct {
	TenantID  string
	Principal string
	Query     string
	History   []domain.ConversationTurn
	Limit     int

	// Tenant is a handle already resolved for Principal. When set, Answer
	// does not resolve TenantID again.
	Tenant *tenancy.Handle
}

// Pipeline answers customer queries from tenant knowledge, or hands off to
// a human when it cannot ground an answer.
type Pipeline struct {
	resolver   TenantResolver
	classifier *Classifier
	retriever  *Retriever
	generator  *Generator
	verifier   Verifier
	accountant *Accountant
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewPipeline(
	resolver TenantResolver,
	classifier *Classifier,
	retriever *Retriever,
	generator *Generator,
	verifier Verifier,
	accountant *Accountant,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver:   resolver,
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		verifier:   verifier,
		accountant: accountant,
		logger:     logger,
		metrics:    m,
	}
}

// Answer runs the query through classification, retrieval, generation and
// verification.
//
// Tenant errors and cancellation return a nil response. A backend failure
// returns the technical-error response together with GENERATION_FAILED so
// the caller can both reply and report. Every other outcome, including
// missing knowledge and rejected grounding, is a response with a nil error.
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (*domain.GroundedResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "pipeline.Answer", telemetry.SpanAttributes{
		TenantID:  req.TenantID,
		Operation: "answer",
	})
	defer span.End()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	handle := req.Tenant
	if handle == nil {
		var err error
		handle, err = p.resolver.Resolve(ctx, req.TenantID, req.Principal)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}
	tenantID := handle.TenantID
	logger := p.logger.With(zap.String("tenant_id", tenantID))

	var queryType domain.QueryType
	var retrieval domain.RetrievalResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryType = p.classifier.Classify(query)
		return nil
	})
	g.Go(func() error {
		retrieval = p.retriever.Retrieve(gctx, tenantID, query, req.Limit)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span.SetTag("query_type", string(queryType))

	if !retrieval.Sufficient() {
		resp := Fallback(queryType, retrieval, "")
		p.finish(ctx, logger, resp, start)
		return resp, nil
	}

	gen, err := p.generator.Generate(ctx, queryType, query, retrieval, req.History)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		span.SetError(err)
		telemetry.CaptureError(ctx, err)
		resp := TechnicalError(queryType)
		p.finish(ctx, logger, resp, start)
		return resp, err
	}

	if !p.verifier.Verify(gen.Text, retrieval.Sources) {
		logger.Warn("response failed grounding verification",
			zap.String("backend", gen.Backend),
			zap.String("query_type", string(queryType)))
		resp := Fallback(queryType, retrieval, domain.ReasonGroundingRejected)
		p.finish(ctx, logger, resp, start)
		return resp, nil
	}

	reasoning := generationReason(gen)
	resp := &domain.GroundedResponse{
		Text:       gen.Text,
		Confidence: p.accountant.Confidence(gen.Route, retrieval),
		Sources:    retrieval.Sources,
		NeedsHuman: false,
		Reasoning:  reasoning,
		Cost:       p.accountant.Cost(gen.Route, gen.Usage, gen.Prompt, gen.Text),
		QueryType:  queryType,
		Route:      gen.Route,
	}
	p.finish(ctx, logger, resp, start)
	return resp, nil
}

func (p *Pipeline) finish(ctx context.Context, logger *zap.Logger, resp *domain.GroundedResponse, start time.Time) {
	elapsed := time.Since(start)
	fallbackReason := ""
	if resp.Route == domain.RouteFallback {
		fallbackReason = resp.Reasoning
	}
	p.metrics.ObserveAnswer(string(resp.Route), string(resp.QueryType), fallbackReason, resp.Cost, elapsed)
	if resp.NeedsHuman {
		telemetry.RecordEscalation(ctx, resp.Reasoning, string(resp.QueryType))
	}
	logger.Info("query answered",
		zap.String("query_type", string(resp.QueryType)),
		zap.String("route", string(resp.Route)),
		zap.String("reasoning", resp.Reasoning),
		zap.Float64("confidence", resp.Confidence),
		zap.Int("sources", len(resp.Sources)),
		zap.Float64("cost", resp.Cost),
		zap.Duration("elapsed", elapsed))
}

func generationReason(gen *Generation) string {
	switch {
	case gen.Route == domain.RouteLocal && gen.Substituted:
		return domain.ReasonLocalSubstitute
	case gen.Route == domain.RouteLocal:
		return domain.ReasonLocalGeneration
	case gen.Substituted:
		return domain.ReasonRemoteSubstitute
	}
	return domain.ReasonRemoteGeneration
}
