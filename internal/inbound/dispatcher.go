package inbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/learning"
	"github.com/cloo-solutions/bokai/internal/service"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

// historyTurns is how much of a delivered thread is passed to generation.
const historyTurns = 3

type Answerer interface {
	Answer(ctx context.Context, req service.AnswerRequest) (*domain.GroundedResponse, error)
}

type ConversationRecorder interface {
	RecordConversation(ctx context.Context, entry *domain.ConversationEntry)
}

type ImplicitFeedback interface {
	Implicit(ctx context.Context, tenantID, conversationID string, signals learning.ImplicitSignals) (*domain.FeedbackEntry, error)
}

// Dispatcher answers inbound messages on behalf of the channel. Messages are
// trusted to carry their tenant, so the pipeline runs as the system
// principal.
type Dispatcher struct {
	answerer Answerer
	sink     Sink[domain.OutboundReply]
	recorder ConversationRecorder
	feedback ImplicitFeedback
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. recorder and feedback are optional.
func NewDispatcher(answerer Answerer, sink Sink[domain.OutboundReply], recorder ConversationRecorder, feedback ImplicitFeedback, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		answerer: answerer,
		sink:     sink,
		recorder: recorder,
		feedback: feedback,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle answers msg and delivers the reply. Messages that can never be
// answered (bad tenant, empty text) are logged and dropped; only
// cancellation and delivery failures are returned for redelivery.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) error {
	start := d.now()
	logger := d.logger.With(
		zap.String("tenant_id", msg.TenantID),
		zap.String("thread_id", msg.ThreadID),
		zap.String("platform", msg.Platform))

	resp, err := d.answerer.Answer(ctx, service.AnswerRequest{
		TenantID:  msg.TenantID,
		Principal: tenancy.SystemPrincipal,
		Query:     msg.Message,
		History:   lastTurns(msg.Thread, historyTurns),
	})
	if resp == nil {
		if err == nil {
			err = errors.New("pipeline returned no response")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("dropping inbound message", zap.String("code", domain.CodeOf(err)), zap.Error(err))
		return nil
	}
	if err != nil {
		logger.Error("answering inbound message failed", zap.Error(err))
	}

	tenantID := msg.TenantID
	if normalized, nerr := domain.NormalizeTenantID(msg.TenantID); nerr == nil {
		tenantID = normalized
	}

	conversationID := uuid.NewString()
	if d.recorder != nil {
		d.recorder.RecordConversation(ctx, &domain.ConversationEntry{
			ID:             conversationID,
			TenantID:       tenantID,
			ThreadID:       msg.ThreadID,
			UserMessage:    msg.Message,
			BotMessage:     resp.Text,
			Confidence:     resp.Confidence,
			Sources:        resp.Sources,
			Platform:       msg.Platform,
			CustomerID:     msg.CustomerID,
			Intent:         resp.QueryType,
			ResponseTimeMS: d.now().Sub(start).Milliseconds(),
			Cost:           resp.Cost,
			NeedsHuman:     resp.NeedsHuman,
		})
	}

	if d.feedback != nil && resp.NeedsHuman {
		signals := learning.ImplicitSignals{
			HumanTakeover:      true,
			ConversationLength: len(msg.Thread) + 1,
			FollowUpQuestions:  countCustomerTurns(msg.Thread),
		}
		if _, ferr := d.feedback.Implicit(ctx, tenantID, conversationID, signals); ferr != nil {
			logger.Warn("failed to record implicit feedback", zap.Error(ferr))
		}
	}

	reply := domain.OutboundReply{
		TenantID:   tenantID,
		ThreadID:   msg.ThreadID,
		Message:    resp.Text,
		NeedsHuman: resp.NeedsHuman,
		Confidence: resp.Confidence,
	}
	if err := d.sink.Deliver(ctx, reply); err != nil {
		return err
	}
	logger.Debug("reply delivered",
		zap.Bool("needs_human", reply.NeedsHuman),
		zap.Float64("confidence", reply.Confidence))
	return nil
}

func lastTurns(thread []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(thread) <= n {
		return thread
	}
	return thread[len(thread)-n:]
}

func countCustomerTurns(thread []domain.ConversationTurn) int {
	count := 0
	for _, turn := range thread {
		if turn.Role == domain.RoleCustomer {
			count++
		}
	}
	return count
}
