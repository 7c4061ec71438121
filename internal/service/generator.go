package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/generation"
	"github.com/cloo-solutions/bokai/internal/telemetry"
)

// GeneratorConfig holds sampling parameters shared by both backends.
type GeneratorConfig struct {
	MaxTokens    int
	Temperature  float64
	HistoryTurns int
	Timeout      time.Duration
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{MaxTokens: 500, Temperature: 0.3, HistoryTurns: 3, Timeout: 30 * time.Second}
}

// Generation is the raw output of a backend before verification.
type Generation struct {
	Text    string
	Route   domain.Route
	Backend string
	Prompt  string
	Usage   *domain.TokenUsage

	// Substituted is set when the route's own backend was not configured.
	Substituted bool
}

// Generator routes grounded prompts to the local or remote backend.
type Generator struct {
	local  generation.Backend
	remote generation.Backend
	cfg    GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates a Generator. Either backend may be nil, in which
// case the other one serves every route.
func NewGenerator(local, remote generation.Backend, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{local: local, remote: remote, cfg: cfg, logger: logger}
}

// SelectRoute picks local generation only for simple queries with
// sufficient knowledge.
func SelectRoute(queryType domain.QueryType, retrieval domain.RetrievalResult) domain.Route {
	if queryType == domain.QueryTypeSimple && retrieval.Sufficient() {
		return domain.RouteLocal
	}
	return domain.RouteRemote
}

// Generate renders the prompt and calls the backend for the selected route.
// Backend failures are returned as GENERATION_FAILED.
func (g *Generator) Generate(ctx context.Context, queryType domain.QueryType, query string, retrieval domain.RetrievalResult, history []domain.ConversationTurn) (*Generation, error) {
	route := SelectRoute(queryType, retrieval)

	backend := g.remote
	if route == domain.RouteLocal {
		backend = g.local
	}
	substituted := false
	if backend == nil {
		substituted = true
		if route == domain.RouteLocal {
			backend, route = g.remote, domain.RouteRemote
		} else {
			backend, route = g.local, domain.RouteLocal
		}
	}
	if backend == nil {
		return nil, domain.GenerationFailed(errors.New("no generation backend configured"))
	}
	if substituted {
		g.logger.Warn("routing to substitute backend",
			zap.String("query_type", string(queryType)),
			zap.String("route", string(route)),
			zap.String("backend", backend.Name()))
	}

	system, turns := RemoteSystemMessage, g.cfg.HistoryTurns
	if route == domain.RouteLocal {
		system, turns = "", 0
	}

	ctx, span := telemetry.StartSpan(ctx, "generator.Generate", telemetry.SpanAttributes{
		QueryType: string(queryType),
		Route:     string(route),
		Operation: "generate",
	})
	defer span.End()

	prompt := BuildPrompt(query, retrieval.Sources, history, turns)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	res, err := backend.Generate(callCtx, generation.Request{
		Prompt:      prompt,
		System:      system,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Stop:        StopSequences,
	})
	if err != nil {
		span.SetError(err)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, err
		}
		g.logger.Error("generation failed", zap.String("backend", backend.Name()), zap.Error(err))
		return nil, domain.GenerationFailed(err)
	}

	return &Generation{
		Text:    res.Text,
		Route:   route,
		Backend: backend.Name(),
		Prompt:  system + prompt,
		Usage:   res.Usage,

		Substituted: substituted,
	}, nil
}
