package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/config"
	"github.com/cloo-solutions/bokai/internal/database"
	"github.com/cloo-solutions/bokai/internal/embedcache"
	"github.com/cloo-solutions/bokai/internal/generation"
	"github.com/cloo-solutions/bokai/internal/learning"
	"github.com/cloo-solutions/bokai/internal/logging"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/openai"
	"github.com/cloo-solutions/bokai/internal/repository"
	"github.com/cloo-solutions/bokai/internal/service"
	"github.com/cloo-solutions/bokai/internal/storage"
	"github.com/cloo-solutions/bokai/internal/tenancy"
	"github.com/cloo-solutions/bokai/internal/vectorindex"
)

// app is the wired set of components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	pool     *pgxpool.Pool
	sessions *tenancy.Registry[*pgxpool.Pool]
	resolver *tenancy.Resolver
	index    vectorindex.Index
	queries  embedcache.Embedder
	archive  *storage.Archive
	local    *generation.Ollama

	pipeline      *service.Pipeline
	knowledge     *service.KnowledgeService
	onboarding    *service.OnboardingService
	conversations *learning.ConversationLogger
	feedback      *learning.FeedbackCollector
	insights      *learning.Insights
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	if !cfg.HasEmbeddings() {
		return nil, errors.New("BOKAI_EMBEDDING_API_KEY is required")
	}

	a := &app{cfg: cfg, logger: logger, metrics: m}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.pool = pool

	a.sessions = tenancy.NewRegistry[*pgxpool.Pool](func(ctx context.Context, tenantID string) (*pgxpool.Pool, error) {
		return database.NewTenantPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.TenantMaxConns}, tenantID)
	}, logger)
	a.resolver = tenancy.NewResolver(a.sessions, repository.NewTenantRepository(pool), logger)

	if cfg.VectorBackend == "memory" {
		a.index = vectorindex.NewMemory()
	} else {
		a.index = vectorindex.NewPgVector(a.sessions, pool)
	}

	embeddings := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.EmbeddingAPIKey,
		BaseURL:             cfg.EmbeddingBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		BatchSize:           cfg.EmbeddingBatchSize,
		Timeout:             cfg.EmbeddingTimeout,
	})
	a.queries = embedcache.Wrap(embeddings, cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL)

	settings := cfg.PipelineSettings()
	indexer := service.NewIndexer(embeddings, a.index, settings.Indexer, logger, m)
	retriever := service.NewRetriever(a.queries, a.index, settings.Retriever, logger, m)

	generator, err := a.newGenerator(ctx, settings.Generator)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = service.NewPipeline(
		a.resolver,
		service.NewClassifier(service.DefaultClassifierConfig()),
		retriever,
		generator,
		service.NewTermOverlapVerifier(settings.GroundingMinRatio),
		service.NewAccountant(settings.Cost),
		logger,
		m,
	)

	var archive service.DocumentArchive
	if cfg.HasS3() {
		a.archive, err = storage.NewArchive(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create document archive: %w", err)
		}
		if err := a.archive.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		archive = a.archive
	}

	tx := repository.NewTxRunner(pool, a.sessions)
	a.knowledge = service.NewKnowledgeService(tx, repository.NewDocumentRepository(pool), indexer, archive, logger)

	var seeds []service.SeedDocument
	if cfg.SeedFile != "" {
		seeds, err = service.LoadSeedDocuments(cfg.SeedFile)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.onboarding = service.NewOnboardingService(tx, a.knowledge, seeds, cfg.SeedIndexNow, logger)

	conversationRepo := repository.NewConversationRepository(pool)
	a.conversations = learning.NewConversationLogger(conversationRepo, cfg.ConversationLogger(), logger, m)
	a.insights = learning.NewInsights(conversationRepo)
	a.feedback = learning.NewFeedbackCollector(repository.NewFeedbackRepository(pool), logger, m)

	return a, nil
}

func (a *app) newGenerator(ctx context.Context, cfg service.GeneratorConfig) (*service.Generator, error) {
	local, err := generation.NewOllama(a.cfg.LocalURL, a.cfg.LocalModel)
	if err != nil {
		return nil, err
	}
	a.local = local

	var remote generation.Backend
	if a.cfg.HasRemote() {
		switch a.cfg.RemoteProvider {
		case "gemini":
			g, err := generation.NewGemini(ctx, a.cfg.RemoteKey(), a.cfg.RemoteModel)
			if err != nil {
				return nil, err
			}
			remote = g
		default:
			remote = generation.NewOpenAIChat(a.cfg.RemoteKey(), a.cfg.RemoteBaseURL, a.cfg.RemoteModel)
		}
	} else {
		a.logger.Warn("no remote generation backend configured, complex queries use the local model")
	}

	retries := a.cfg.GenerationRetries
	return service.NewGenerator(
		generation.Retrying(local, retries, 0),
		generation.Retrying(remote, retries, 0),
		cfg,
		a.logger,
	), nil
}

// Close releases tenant sessions and the admin pool.
func (a *app) Close() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
