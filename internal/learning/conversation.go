// Package learning records answered conversations and feedback on them.
package learning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
)

// ConversationStore persists conversation entries in bulk.
type ConversationStore interface {
	InsertBatch(ctx context.Context, entries []*domain.ConversationEntry) error
}

type LoggerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	// MaxBuffered caps entries kept while the store is failing. The oldest
	// are dropped first.
	MaxBuffered  int
	FlushTimeout time.Duration
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		BatchSize:     100,
		FlushInterval: 30 * time.Second,
		MaxBuffered:   10000,
		FlushTimeout:  10 * time.Second,
	}
}

// ConversationLogger buffers conversation entries and writes them in
// batches: when BatchSize entries are waiting and every FlushInterval.
// A failed batch goes back to the front of the buffer.
type ConversationLogger struct {
	store   ConversationStore
	cfg     LoggerConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	buffer []*domain.ConversationEntry
	// Size-triggered flushes are suppressed until retryAt after a failure.
	failures int
	retryAt  time.Time

	flushMu  sync.Mutex
	kick     chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewConversationLogger(store ConversationStore, cfg LoggerConfig, logger *zap.Logger, m *metrics.Metrics) *ConversationLogger {
	def := DefaultLoggerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.MaxBuffered < cfg.BatchSize {
		cfg.MaxBuffered = def.MaxBuffered
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationLogger{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the flush loop until Stop.
func (l *ConversationLogger) Start() {
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if l.started {
		return
	}
	l.started = true
	go l.loop()
}

// Stop ends the loop and writes what is still buffered.
func (l *ConversationLogger) Stop(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopCh) })

	l.startMu.Lock()
	started := l.started
	l.startMu.Unlock()
	if started {
		select {
		case <-l.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.Flush(ctx)
}

// RecordConversation buffers entry. It never blocks on the store.
func (l *ConversationLogger) RecordConversation(_ context.Context, entry *domain.ConversationEntry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	l.buffer = append(l.buffer, entry)
	dropped := l.trimLocked()
	full := len(l.buffer) >= l.cfg.BatchSize && !time.Now().Before(l.retryAt)
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Warn("conversation buffer full, dropping oldest entries", zap.Int("dropped", dropped))
	}

	l.logger.Debug("conversation recorded",
		zap.String("conversation_id", entry.ID),
		zap.String("tenant_id", entry.TenantID),
		zap.String("intent", string(entry.Intent)),
		zap.Float64("confidence", entry.Confidence))

	if full {
		select {
		case l.kick <- struct{}{}:
		default:
		}
	}
}

// Buffered returns the number of entries waiting to be written.
func (l *ConversationLogger) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Flush writes everything buffered in batches of BatchSize.
func (l *ConversationLogger) Flush(ctx context.Context) error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	for {
		l.mu.Lock()
		n := min(len(l.buffer), l.cfg.BatchSize)
		if n == 0 {
			l.mu.Unlock()
			return nil
		}
		batch := make([]*domain.ConversationEntry, n)
		copy(batch, l.buffer)
		l.buffer = l.buffer[n:]
		l.mu.Unlock()

		if err := l.store.InsertBatch(ctx, batch); err != nil {
			l.metrics.IncConversationFlush(false)
			l.requeue(batch)
			l.logger.Error("failed to flush conversation buffer",
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return err
		}
		l.metrics.IncConversationFlush(true)
		l.mu.Lock()
		l.failures, l.retryAt = 0, time.Time{}
		l.mu.Unlock()
		l.logger.Info("conversation batch flushed", zap.Int("batch_size", len(batch)))
	}
}

// requeue puts a failed batch back in front and delays the next
// size-triggered flush.
func (l *ConversationLogger) requeue(batch []*domain.ConversationEntry) {
	l.mu.Lock()
	l.failures++
	l.retryAt = time.Now().Add(l.retryDelay())
	merged := make([]*domain.ConversationEntry, 0, len(batch)+len(l.buffer))
	merged = append(merged, batch...)
	merged = append(merged, l.buffer...)
	l.buffer = merged
	dropped := l.trimLocked()
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Warn("conversation buffer full, dropping oldest entries", zap.Int("dropped", dropped))
	}
}

// retryDelay doubles from one second per consecutive failure, capped at
// FlushInterval.
func (l *ConversationLogger) retryDelay() time.Duration {
	d := time.Second << min(l.failures-1, 10)
	return min(d, l.cfg.FlushInterval)
}

// trimLocked drops the oldest entries above MaxBuffered.
func (l *ConversationLogger) trimLocked() int {
	over := len(l.buffer) - l.cfg.MaxBuffered
	if over <= 0 {
		return 0
	}
	l.buffer = l.buffer[over:]
	return over
}

func (l *ConversationLogger) loop() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
		case <-l.kick:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FlushTimeout)
		_ = l.Flush(ctx)
		cancel()
	}
}
