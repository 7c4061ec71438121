package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
)

type FeedbackStore interface {
	Create(ctx context.Context, f *domain.FeedbackEntry) error
}

// ImplicitSignals are observed from conversation behaviour rather than
// asked for.
type ImplicitSignals struct {
	HumanTakeover      bool
	ConversationLength int
	FollowUpQuestions  int
}

// FeedbackCollector stores explicit ratings and implicit signals.
type FeedbackCollector struct {
	store   FeedbackStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewFeedbackCollector(store FeedbackStore, logger *zap.Logger, m *metrics.Metrics) *FeedbackCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackCollector{store: store, logger: logger, metrics: m}
}

// Explicit records an operator's rating, optionally with the answer they
// would have given instead.
func (c *FeedbackCollector) Explicit(ctx context.Context, tenantID, conversationID string, rating domain.FeedbackRating, correction string) (*domain.FeedbackEntry, error) {
	entry := &domain.FeedbackEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           domain.FeedbackExplicit,
		Rating:         rating,
		Correction:     strings.TrimSpace(correction),
		Note:           "user_rating",
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.save(ctx, entry); err != nil {
		return nil, err
	}
	c.logger.Info("explicit feedback collected",
		zap.String("tenant_id", tenantID),
		zap.String("conversation_id", conversationID),
		zap.String("rating", string(rating)),
		zap.Bool("has_correction", entry.Correction != ""))
	return entry, nil
}

// Implicit records behavioural signals. A human takeover counts as a bad
// answer; anything else is neutral.
func (c *FeedbackCollector) Implicit(ctx context.Context, tenantID, conversationID string, signals ImplicitSignals) (*domain.FeedbackEntry, error) {
	rating := domain.FeedbackNeutral
	if signals.HumanTakeover {
		rating = domain.FeedbackBad
	}
	note := fmt.Sprintf("human_takeover=%t conversation_length=%d follow_up_questions=%d",
		signals.HumanTakeover, signals.ConversationLength, signals.FollowUpQuestions)
	entry := &domain.FeedbackEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           domain.FeedbackImplicit,
		Rating:         rating,
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.save(ctx, entry); err != nil {
		return nil, err
	}
	c.logger.Debug("implicit feedback collected",
		zap.String("tenant_id", tenantID),
		zap.String("conversation_id", conversationID),
		zap.Bool("human_takeover", signals.HumanTakeover))
	return entry, nil
}

func (c *FeedbackCollector) save(ctx context.Context, entry *domain.FeedbackEntry) error {
	tenantID, err := domain.NormalizeTenantID(entry.TenantID)
	if err != nil {
		return err
	}
	entry.TenantID = tenantID
	if err := domain.ValidateFeedbackEntry(entry); err != nil {
		return err
	}
	if err := c.store.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	c.metrics.IncFeedback(string(entry.Type), string(entry.Rating))
	return nil
}
