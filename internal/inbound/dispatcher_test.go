package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/learning"
	"github.com/cloo-solutions/bokai/internal/service"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

const testTenantID = "7f1c2a9e-5b34-4d6a-9c1e-2f8b7a6d5e40"

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

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Deliver(ctx context.Context, reply domain.OutboundReply) error {
	args := m.Called(ctx, reply)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordConversation(ctx context.Context, entry *domain.ConversationEntry) {
	m.Called(ctx, entry)
}

type MockFeedback struct {
	mock.Mock
}

func (m *MockFeedback) Implicit(ctx context.Context, tenantID, conversationID string, signals learning.ImplicitSignals) (*domain.FeedbackEntry, error) {
	args := m.Called(ctx, tenantID, conversationID, signals)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedbackEntry), args.Error(1)
}

func inboundMessage() domain.InboundMessage {
	return domain.InboundMessage{
		TenantID:   testTenantID,
		ThreadID:   "thread-1",
		Message:    "Jakie są godziny otwarcia?",
		CustomerID: "cust-9",
		Platform:   "allegro",
		Thread: []domain.ConversationTurn{
			{Role: domain.RoleCustomer, Content: "Dzień dobry"},
			{Role: domain.RoleAssistant, Content: "Dzień dobry, w czym mogę pomóc?"},
			{Role: domain.RoleCustomer, Content: "Mam pytanie o sklep"},
			{Role: domain.RoleAssistant, Content: "Słucham"},
		},
	}
}

func TestDispatcher_Handle_AnswersAndRecords(t *testing.T) {
	answerer := new(MockAnswerer)
	sink := new(MockSink)
	recorder := new(MockRecorder)
	feedback := new(MockFeedback)
	msg := inboundMessage()

	resp := &domain.GroundedResponse{
		Text:       "Sklep jest otwarty od 9 do 17.",
		Confidence: 0.9,
		QueryType:  domain.QueryTypeSimple,
		Route:      domain.RouteLocal,
		Sources:    []domain.KnowledgeSource{{DocumentID: "d1", Title: "Godziny", Score: 0.9}},
	}
	answerer.On("Answer", mock.Anything, mock.MatchedBy(func(req service.AnswerRequest) bool {
		return req.TenantID == testTenantID &&
			req.Principal == tenancy.SystemPrincipal &&
			req.Query == msg.Message &&
			len(req.History) == 3 &&
			req.History[2].Content == "Słucham"
	})).Return(resp, nil)

	var recorded *domain.ConversationEntry
	recorder.On("RecordConversation", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*domain.ConversationEntry)
	}).Return()

	sink.On("Deliver", mock.Anything, domain.OutboundReply{
		TenantID:   testTenantID,
		ThreadID:   "thread-1",
		Message:    resp.Text,
		Confidence: 0.9,
	}).Return(nil)

	d := NewDispatcher(answerer, sink, recorder, feedback, nil)
	require.NoError(t, d.Handle(context.Background(), msg))

	require.NotNil(t, recorded)
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, testTenantID, recorded.TenantID)
	assert.Equal(t, "thread-1", recorded.ThreadID)
	assert.Equal(t, msg.Message, recorded.UserMessage)
	assert.Equal(t, resp.Text, recorded.BotMessage)
	assert.Equal(t, domain.QueryTypeSimple, recorded.Intent)
	assert.Equal(t, "allegro", recorded.Platform)
	assert.Equal(t, "cust-9", recorded.CustomerID)
	assert.Len(t, recorded.Sources, 1)

	feedback.AssertNotCalled(t, "Implicit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	answerer.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestDispatcher_Handle_HandoffRecordsImplicitFeedback(t *testing.T) {
	answerer := new(MockAnswerer)
	sink := new(MockSink)
	recorder := new(MockRecorder)
	feedback := new(MockFeedback)
	msg := inboundMessage()

	answerer.On("Answer", mock.Anything, mock.Anything).Return(&domain.GroundedResponse{
		Text:       "Przekażę pytanie do zespołu.",
		NeedsHuman: true,
		QueryType:  domain.QueryTypeSensitive,
		Route:      domain.RouteFallback,
	}, nil)

	var conversationID string
	recorder.On("RecordConversation", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		conversationID = args.Get(1).(*domain.ConversationEntry).ID
	}).Return()
	feedback.On("Implicit", mock.Anything, testTenantID, mock.Anything, learning.ImplicitSignals{
		HumanTakeover:      true,
		ConversationLength: 5,
		FollowUpQuestions:  2,
	}).Return(&domain.FeedbackEntry{}, nil)
	sink.On("Deliver", mock.Anything, mock.MatchedBy(func(r domain.OutboundReply) bool {
		return r.NeedsHuman && r.Confidence == 0
	})).Return(nil)

	d := NewDispatcher(answerer, sink, recorder, feedback, nil)
	require.NoError(t, d.Handle(context.Background(), msg))

	feedback.AssertExpectations(t)
	assert.Equal(t, conversationID, feedback.Calls[0].Arguments.String(2))
}

func TestDispatcher_Handle_GenerationFailureStillReplies(t *testing.T) {
	answerer := new(MockAnswerer)
	sink := new(MockSink)
	tech := service.TechnicalError(domain.QueryTypeSimple)

	answerer.On("Answer", mock.Anything, mock.Anything).Return(tech, domain.ErrGenerationFailed)
	sink.On("Deliver", mock.Anything, mock.MatchedBy(func(r domain.OutboundReply) bool {
		return r.Message == tech.Text && r.NeedsHuman
	})).Return(nil)

	d := NewDispatcher(answerer, sink, nil, nil, nil)
	require.NoError(t, d.Handle(context.Background(), inboundMessage()))
	sink.AssertExpectations(t)
}

func TestDispatcher_Handle_DropsUnanswerable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid tenant", domain.ErrInvalidTenant},
		{"access denied", domain.ErrTenantAccessDenied},
		{"empty query", domain.ErrEmptyQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := new(MockAnswerer)
			sink := new(MockSink)
			answerer.On("Answer", mock.Anything, mock.Anything).Return(nil, tt.err)

			d := NewDispatcher(answerer, sink, nil, nil, nil)
			assert.NoError(t, d.Handle(context.Background(), inboundMessage()))
			sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
		})
	}
}

func TestDispatcher_Handle_CancelledIsRedelivered(t *testing.T) {
	answerer := new(MockAnswerer)
	sink := new(MockSink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	answerer.On("Answer", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	d := NewDispatcher(answerer, sink, nil, nil, nil)
	err := d.Handle(ctx, inboundMessage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_Handle_DeliveryFailureIsReturned(t *testing.T) {
	answerer := new(MockAnswerer)
	sink := new(MockSink)
	answerer.On("Answer", mock.Anything, mock.Anything).Return(&domain.GroundedResponse{Text: "ok"}, nil)
	sink.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	d := NewDispatcher(answerer, sink, nil, nil, nil)
	assert.EqualError(t, d.Handle(context.Background(), inboundMessage()), "broker down")
}
