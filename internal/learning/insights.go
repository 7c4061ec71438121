package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const (
	DefaultInsightsWindow = 24 * time.Hour
	MaxInsightsWindow     = 30 * 24 * time.Hour
)

// Thresholds past which a window is flagged for attention.
const (
	lowConfidence      = 0.7
	highTakeoverRate   = 0.3
	slowResponseMS     = 5000
	weakConfidence     = 0.6
	takeoverToRetune   = 0.25
	responseToOptimize = 3000
	costToOffload      = 0.5
)

type StatsStore interface {
	Stats(ctx context.Context, tenantID string, since time.Time) (*domain.ConversationStats, error)
}

// Insights summarises a tenant's recent conversations and derives what
// needs improving from them.
type Insights struct {
	store StatsStore
	now   func() time.Time
}

func NewInsights(store StatsStore) *Insights {
	return &Insights{store: store, now: time.Now}
}

// Tenant reports on the window ending now. A zero window means the last
// day; windows over a month are rejected.
func (s *Insights) Tenant(ctx context.Context, tenantID string, window time.Duration) (*domain.TenantInsights, error) {
	if window == 0 {
		window = DefaultInsightsWindow
	}
	if window < 0 || window > MaxInsightsWindow {
		return nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("insights window must be positive and at most %d hours", int(MaxInsightsWindow.Hours())))
	}

	stats, err := s.store.Stats(ctx, tenantID, s.now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	return Analyze(stats), nil
}

// Analyze derives improvement areas and recommendations from stats. An
// empty window yields neither.
func Analyze(stats *domain.ConversationStats) *domain.TenantInsights {
	out := &domain.TenantInsights{
		ConversationStats: *stats,
		ImprovementAreas:  []string{},
		Recommendations:   []string{},
	}
	if stats.TotalConversations == 0 {
		return out
	}

	if stats.AverageConfidence < lowConfidence {
		out.ImprovementAreas = append(out.ImprovementAreas, "low answer confidence: the knowledge base needs more content")
	}
	if stats.HumanTakeoverRate > highTakeoverRate {
		out.ImprovementAreas = append(out.ImprovementAreas, "high human takeover rate: answers need review and correction")
	}
	if stats.AverageResponseTimeMS > slowResponseMS {
		out.ImprovementAreas = append(out.ImprovementAreas, "slow responses: generation latency needs attention")
	}

	if stats.AverageConfidence < weakConfidence {
		for i, ic := range stats.TopIntents {
			if i == 3 {
				break
			}
			out.Recommendations = append(out.Recommendations,
				fmt.Sprintf("add documents covering %s queries", ic.Intent))
		}
	}
	if stats.HumanTakeoverRate > takeoverToRetune {
		out.Recommendations = append(out.Recommendations, "raise the confidence threshold so uncertain answers escalate earlier")
	}
	if stats.AverageResponseTimeMS > responseToOptimize {
		out.Recommendations = append(out.Recommendations, "enable the embedding cache or lower the retrieval limit")
	}
	if stats.CostPerConversation > costToOffload {
		out.Recommendations = append(out.Recommendations, "route more queries to the local model to cut cost")
	}
	return out
}
