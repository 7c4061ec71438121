package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/service"
)

type Onboarder interface {
	CreateTenant(ctx context.Context, in service.CreateTenantInput) (*service.OnboardingResult, error)
}

type TenantHandler struct {
	svc Onboarder
}

func NewTenantHandler(svc Onboarder) *TenantHandler {
	return &TenantHandler{svc: svc}
}

type CreateTenantRequest struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Domain string `json:"domain"`
}

type TenantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Domain    string `json:"domain,omitempty"`
	OwnerID   string `json:"ownerId"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

type BotConfigResponse struct {
	BotName       string `json:"botName"`
	Personality   string `json:"personality"`
	AutonomyLevel int    `json:"autonomyLevel"`
}

type CreateTenantResponse struct {
	Tenant          TenantResponse    `json:"tenant"`
	BotConfig       BotConfigResponse `json:"botConfig"`
	SeededDocuments int               `json:"seededDocuments"`
}

// Create onboards a tenant owned by the calling principal.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrorCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body")
		return
	}

	res, err := h.svc.CreateTenant(r.Context(), service.CreateTenantInput{
		Name:    req.Name,
		Slug:    req.Slug,
		Domain:  req.Domain,
		OwnerID: middleware.GetPrincipal(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	t := res.Tenant
	resp := CreateTenantResponse{
		Tenant: TenantResponse{
			ID:        t.ID,
			Name:      t.Name,
			Slug:      t.Slug,
			Domain:    t.Domain,
			OwnerID:   t.OwnerID,
			IsActive:  t.IsActive,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		},
		SeededDocuments: len(res.Documents),
	}
	if res.BotConfig != nil {
		resp.BotConfig = BotConfigResponse{
			BotName:       res.BotConfig.BotName,
			Personality:   res.BotConfig.Personality,
			AutonomyLevel: res.BotConfig.AutonomyLevel,
		}
	}
	api.Success(w, http.StatusCreated, resp)
}
