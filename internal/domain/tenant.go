package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tenant represents an independent business whose knowledge and data are isolated
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	Domain    string
	OwnerID   string
	IsActive  bool
	CreatedAt time.Time
}

// BotConfig holds per-tenant assistant settings created at onboarding
type BotConfig struct {
	TenantID      string
	BotName       string
	Personality   string
	AutonomyLevel int
	CreatedAt     time.Time
}

// Default bot configuration for new tenants
const (
	DefaultBotName       = "BOK"
	DefaultBotPersona    = "Przyjazny asystent sprzedażowy"
	DefaultAutonomyLevel = 1
)

// NewTenant creates a new Tenant instance
func NewTenant(id, name, slug, ownerID string, createdAt time.Time) *Tenant {
	return &Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		OwnerID:   ownerID,
		IsActive:  true,
		CreatedAt: createdAt,
	}
}

// NormalizeTenantID validates a tenant identifier and returns its canonical
// lowercase form. Anything other than a hyphenated 36-character UUID is
// rejected with ErrInvalidTenant.
func NormalizeTenantID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if len(id) != 36 {
		return "", ErrInvalidTenant
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidTenant
	}
	if parsed == uuid.Nil {
		return "", ErrInvalidTenant
	}
	return parsed.String(), nil
}

// CollectionName returns the vector collection name owned by a tenant.
// The id must already be normalized.
func CollectionName(tenantID string) string {
	return "tenant_" + strings.ReplaceAll(tenantID, "-", "")
}

// ValidateTenant validates a Tenant instance
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}

	if _, err := NormalizeTenantID(t.ID); err != nil {
		return err
	}

	if t.Name == "" {
		return fmt.Errorf("tenant Name is required")
	}

	if t.Slug == "" {
		return fmt.Errorf("tenant Slug is required")
	}

	if t.OwnerID == "" {
		return fmt.Errorf("tenant OwnerID is required")
	}

	return nil
}
