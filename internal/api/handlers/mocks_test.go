package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/service"
)

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, req service.AnswerRequest) (*domain.GroundedResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GroundedResponse), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordConversation(ctx context.Context, entry *domain.ConversationEntry) {
	m.Called(ctx, entry)
}

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) AddDocument(ctx context.Context, in service.AddDocumentInput) (*service.AddDocumentResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AddDocumentResult), args.Error(1)
}

func (m *MockKnowledgeService) GetDocument(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeDocument), args.Error(1)
}

func (m *MockKnowledgeService) ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockKnowledgeService) Reindex(ctx context.Context, tenantID, documentID string, wait bool) (*domain.IndexJob, error) {
	args := m.Called(ctx, tenantID, documentID, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexJob), args.Error(1)
}

func (m *MockKnowledgeService) Original(ctx context.Context, tenantID, documentID string) ([]byte, string, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type MockOnboarder struct {
	mock.Mock
}

func (m *MockOnboarder) CreateTenant(ctx context.Context, in service.CreateTenantInput) (*service.OnboardingResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OnboardingResult), args.Error(1)
}

type MockFeedbackRecorder struct {
	mock.Mock
}

func (m *MockFeedbackRecorder) Explicit(ctx context.Context, tenantID, conversationID string, rating domain.FeedbackRating, correction string) (*domain.FeedbackEntry, error) {
	args := m.Called(ctx, tenantID, conversationID, rating, correction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedbackEntry), args.Error(1)
}

type stubHealth struct {
	report service.HealthReport
}

func (s stubHealth) Check(context.Context) service.HealthReport {
	return s.report
}

type MockInsightsReader struct {
	mock.Mock
}

func (m *MockInsightsReader) Tenant(ctx context.Context, tenantID string, window time.Duration) (*domain.TenantInsights, error) {
	args := m.Called(ctx, tenantID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantInsights), args.Error(1)
}
