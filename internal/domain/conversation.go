package domain

import (
	"time"
)

// Conversation roles
const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
	RoleHuman     = "human"
)

// ConversationTurn is one message of a thread's history
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InboundMessage is a customer message delivered by a channel adapter
type InboundMessage struct {
	TenantID   string             `json:"tenantId"`
	ThreadID   string             `json:"threadId"`
	Message    string             `json:"message"`
	Thread     []ConversationTurn `json:"thread,omitempty"`
	CustomerID string             `json:"customerId,omitempty"`
	Platform   string             `json:"platform,omitempty"`
}

// OutboundReply is the pipeline's answer handed back to a channel adapter
type OutboundReply struct {
	TenantID   string  `json:"tenantId"`
	ThreadID   string  `json:"threadId"`
	Message    string  `json:"message"`
	NeedsHuman bool    `json:"needsHuman"`
	Confidence float64 `json:"confidence"`
}

// ConversationEntry is one question/answer exchange recorded in the
// telemetry sink.
type ConversationEntry struct {
	ID             string
	TenantID       string
	ThreadID       string
	UserMessage    string
	BotMessage     string
	Confidence     float64
	Sources        []KnowledgeSource
	Platform       string
	CustomerID     string
	Intent         QueryType
	ResponseTimeMS int64
	Cost           float64
	NeedsHuman     bool
	CreatedAt      time.Time
}

// FeedbackRating is the operator's verdict on a bot answer
type FeedbackRating string

const (
	FeedbackGood    FeedbackRating = "good"
	FeedbackBad     FeedbackRating = "bad"
	FeedbackNeutral FeedbackRating = "neutral"
)

// Valid reports whether r is a known rating
func (r FeedbackRating) Valid() bool {
	switch r {
	case FeedbackGood, FeedbackBad, FeedbackNeutral:
		return true
	}
	return false
}

// FeedbackType distinguishes explicit ratings from implicit signals
type FeedbackType string

const (
	FeedbackExplicit FeedbackType = "explicit"
	FeedbackImplicit FeedbackType = "implicit"
)

// FeedbackEntry records how good an answer was
type FeedbackEntry struct {
	ID             string
	TenantID       string
	ConversationID string
	Type           FeedbackType
	Rating         FeedbackRating
	Correction     string
	Note           string
	CreatedAt      time.Time
}

// ValidateFeedbackEntry validates a FeedbackEntry instance
func ValidateFeedbackEntry(f *FeedbackEntry) error {
	if f == nil {
		return ErrMissingRequiredField
	}
	if _, err := NormalizeTenantID(f.TenantID); err != nil {
		return err
	}
	if f.ConversationID == "" {
		return ErrMissingRequiredField
	}
	if !f.Rating.Valid() {
		return ErrInvalidFeedbackRating
	}
	return nil
}

// IntentCount is how often an intent was seen in a window
type IntentCount struct {
	Intent QueryType `json:"intent"`
	Count  int       `json:"count"`
}

// ConversationStats aggregates a tenant's logged exchanges since a point in time
type ConversationStats struct {
	Since                 time.Time     `json:"since"`
	TotalConversations    int           `json:"totalConversations"`
	AverageConfidence     float64       `json:"averageConfidence"`
	HumanTakeoverRate     float64       `json:"humanTakeoverRate"`
	AverageResponseTimeMS float64       `json:"averageResponseTimeMs"`
	CostPerConversation   float64       `json:"costPerConversation"`
	TopIntents            []IntentCount `json:"topIntents"`
}

// TenantInsights is a stats window plus what it suggests to improve.
type TenantInsights struct {
	ConversationStats
	ImprovementAreas []string `json:"improvementAreas"`
	Recommendations  []string `json:"recommendations"`
}
