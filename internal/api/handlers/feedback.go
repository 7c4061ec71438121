package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/domain"
)

type FeedbackRecorder interface {
	Explicit(ctx context.Context, tenantID, conversationID string, rating domain.FeedbackRating, correction string) (*domain.FeedbackEntry, error)
}

type FeedbackHandler struct {
	collector FeedbackRecorder
}

func NewFeedbackHandler(collector FeedbackRecorder) *FeedbackHandler {
	return &FeedbackHandler{collector: collector}
}

type FeedbackRequest struct {
	ConversationID string `json:"conversationId"`
	Rating         string `json:"rating"`
	Correction     string `json:"correction"`
}

type FeedbackResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
	Rating         string `json:"rating"`
}

func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrorCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		api.ErrorCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "conversationId is required")
		return
	}

	entry, err := h.collector.Explicit(r.Context(), middleware.GetTenantID(r.Context()),
		req.ConversationID, domain.FeedbackRating(req.Rating), req.Correction)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, FeedbackResponse{
		ID:             entry.ID,
		ConversationID: entry.ConversationID,
		Type:           string(entry.Type),
		Rating:         string(entry.Rating),
	})
}
