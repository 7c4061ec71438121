package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/api/handlers"
	"github.com/cloo-solutions/bokai/internal/config"
	"github.com/cloo-solutions/bokai/internal/inbound"
	"github.com/cloo-solutions/bokai/internal/jobs"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/ratelimit"
	"github.com/cloo-solutions/bokai/internal/repository"
	"github.com/cloo-solutions/bokai/internal/server"
	"github.com/cloo-solutions/bokai/internal/service"
	"github.com/cloo-solutions/bokai/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API, the index worker and, when Kafka is configured, the inbound consumer",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides BOKAI_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, migrationsSource, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := newApp(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	a.conversations.Start()

	indexWorker := jobs.NewWorker(
		jobs.NewIndexWorker(repository.NewIndexJobRepository(a.pool), a.knowledge, logger, m),
		cfg.IndexPollInterval,
		logger,
	)
	go indexWorker.Start(ctx)

	checks := []service.HealthCheck{
		{Name: "postgres", Check: a.pool.Ping},
		{Name: "vector_index", Check: a.index.Ping},
		{Name: "embeddings", Check: a.pingEmbeddings, Optional: true},
		{Name: "local_model", Check: a.local.Ping, Optional: true},
	}
	if a.archive != nil {
		checks = append(checks, service.HealthCheck{Name: "archive", Check: a.archive.Ping, Optional: true})
	}

	routerCfg := server.RouterConfig{
		Logger:           logger,
		Metrics:          m,
		Resolver:         a.resolver,
		TenantHandler:    handlers.NewTenantHandler(a.onboarding),
		AskHandler:       handlers.NewAskHandler(a.pipeline, a.conversations),
		KnowledgeHandler: handlers.NewKnowledgeHandler(a.knowledge),
		FeedbackHandler:  handlers.NewFeedbackHandler(a.feedback),
		InsightsHandler:  handlers.NewInsightsHandler(a.insights),
	}

	if cfg.HasRedis() {
		client, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer client.Close()
			routerCfg.Limiter = ratelimit.New(client, int(cfg.RateLimitMax), cfg.RateLimitWindow, logger)
			checks = append(checks, service.HealthCheck{
				Name:     "redis",
				Check:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
				Optional: true,
			})
		}
	}

	consumerDone := make(chan struct{})
	if cfg.HasKafka() {
		source, sink, err := newKafka(cfg, logger)
		if err != nil {
			return err
		}
		defer source.Close()
		defer sink.Close()
		checks = append(checks, service.HealthCheck{Name: "kafka", Check: source.Ping, Optional: true})

		dispatcher := inbound.NewDispatcher(a.pipeline, sink, a.conversations, a.feedback, logger)
		go func() {
			defer close(consumerDone)
			if err := source.Run(ctx, dispatcher.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbound consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("inbound consumer started", zap.String("topic", cfg.KafkaInboundTopic))
	} else {
		close(consumerDone)
	}

	routerCfg.HealthHandler = handlers.NewHealthHandler(service.NewHealthService(cfg.HealthTimeout, checks...))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}
	logger.Info("shutting down")

	indexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-consumerDone
	if err := a.conversations.Stop(shutdownCtx); err != nil {
		logger.Warn("failed to flush conversations", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

func newKafka(cfg *config.Config, logger *zap.Logger) (*inbound.KafkaSource, *inbound.KafkaSink, error) {
	kc := inbound.KafkaConfig{
		Brokers:      cfg.KafkaBrokers,
		GroupID:      cfg.KafkaGroup,
		ClientID:     cfg.KafkaClientID,
		InboundTopic: cfg.KafkaInboundTopic,
		ReplyTopic:   cfg.KafkaOutboundTopic,
	}
	source, err := inbound.NewKafkaSource(kc, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	sink, err := inbound.NewKafkaSink(kc)
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return source, sink, nil
}

// pingEmbeddings embeds a fixed text through the query cache, so repeated
// health checks within the cache TTL do not reach the provider.
func (a *app) pingEmbeddings(ctx context.Context) error {
	_, err := a.queries.Embed(ctx, []string{"health"})
	return err
}
