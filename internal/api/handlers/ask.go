package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/service"
)

// PlatformAPI marks conversations that came through the HTTP API.
const PlatformAPI = "api"

type Answerer interface {
	Answer(ctx context.Context, req service.AnswerRequest) (*domain.GroundedResponse, error)
}

type ConversationRecorder interface {
	RecordConversation(ctx context.Context, entry *domain.ConversationEntry)
}

type AskHandler struct {
	pipeline Answerer
	recorder ConversationRecorder
}

// NewAskHandler creates an AskHandler. recorder may be nil.
func NewAskHandler(pipeline Answerer, recorder ConversationRecorder) *AskHandler {
	return &AskHandler{pipeline: pipeline, recorder: recorder}
}

type AskRequest struct {
	Query    string                    `json:"query"`
	ThreadID string                    `json:"threadId"`
	History  []domain.ConversationTurn `json:"history"`
	Limit    int                       `json:"limit"`
}

type AskResponse struct {
	*domain.GroundedResponse
	ConversationID string `json:"conversationId"`
}

// AskFailureResponse carries the customer-facing reply next to the error
// when generation failed.
type AskFailureResponse struct {
	Data  AskResponse `json:"data"`
	Error string      `json:"error"`
	Code  string      `json:"code"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenantID := middleware.GetTenantID(r.Context())
	principal := middleware.GetPrincipal(r.Context())

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrorCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body")
		return
	}

	resp, err := h.pipeline.Answer(r.Context(), service.AnswerRequest{
		TenantID:  tenantID,
		Principal: principal,
		Query:     req.Query,
		History:   req.History,
		Limit:     req.Limit,
		Tenant:    middleware.GetTenantHandle(r.Context()),
	})
	if resp == nil {
		api.HandleError(w, err)
		return
	}

	out := AskResponse{GroundedResponse: resp, ConversationID: uuid.NewString()}
	if h.recorder != nil {
		h.recorder.RecordConversation(r.Context(), &domain.ConversationEntry{
			ID:             out.ConversationID,
			TenantID:       tenantID,
			ThreadID:       req.ThreadID,
			UserMessage:    req.Query,
			BotMessage:     resp.Text,
			Confidence:     resp.Confidence,
			Sources:        resp.Sources,
			Platform:       PlatformAPI,
			CustomerID:     principal,
			Intent:         resp.QueryType,
			ResponseTimeMS: time.Since(start).Milliseconds(),
			Cost:           resp.Cost,
			NeedsHuman:     resp.NeedsHuman,
		})
	}

	if err != nil {
		code := domain.CodeOf(err)
		var de *domain.DomainError
		message := http.StatusText(http.StatusBadGateway)
		if errors.As(err, &de) {
			message = de.Message
		}
		api.JSON(w, api.DomainErrorToHTTP(err), AskFailureResponse{Data: out, Error: message, Code: code})
		return
	}
	api.Success(w, http.StatusOK, out)
}
