package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// TenantRepository persists tenants and their members.
type TenantRepository interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	AddMember(ctx context.Context, tenantID, userID, role string) error
}

// BotConfigRepository persists per-tenant assistant settings.
type BotConfigRepository interface {
	Upsert(ctx context.Context, c *domain.BotConfig) error
	Get(ctx context.Context, tenantID string) (*domain.BotConfig, error)
}

// SeedDocument is knowledge every new tenant starts with.
type SeedDocument struct {
	Title    string   `yaml:"title"`
	Content  string   `yaml:"content"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
}

type seedFile struct {
	Documents []SeedDocument `yaml:"documents"`
}

// DefaultSeedDocuments is used when no seed file is configured.
func DefaultSeedDocuments() []SeedDocument {
	return []SeedDocument{{
		Title:    "Witaj w BOK-AI",
		Content:  "To jest Twoja pierwsza baza wiedzy. Dodaj dokumenty, FAQ i informacje o produktach.",
		Category: "Przewodnik",
		Tags:     []string{"start", "pomoc"},
	}}
}

// LoadSeedDocuments reads a YAML file with a top-level documents list.
func LoadSeedDocuments(path string) ([]SeedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("seed document %d: title and content are required", i)
		}
	}
	return f.Documents, nil
}

type CreateTenantInput struct {
	Name    string
	Slug    string
	Domain  string
	OwnerID string
}

type OnboardingResult struct {
	Tenant    *domain.Tenant
	BotConfig *domain.BotConfig
	Documents []*AddDocumentResult
}

// OnboardingService creates tenants with their default configuration and
// seed knowledge.
type OnboardingService struct {
	tx        TxRunner
	knowledge *KnowledgeService
	seeds     []SeedDocument
	indexNow  bool
	uuidGen   UUIDGenerator
	logger    *zap.Logger
}

// NewOnboardingService creates an OnboardingService. With indexNow the
// seed documents are indexed before CreateTenant returns; otherwise the
// index worker picks them up.
func NewOnboardingService(tx TxRunner, knowledge *KnowledgeService, seeds []SeedDocument, indexNow bool, logger *zap.Logger) *OnboardingService {
	if seeds == nil {
		seeds = DefaultSeedDocuments()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingService{
		tx:        tx,
		knowledge: knowledge,
		seeds:     seeds,
		indexNow:  indexNow,
		uuidGen:   &DefaultUUIDGenerator{},
		logger:    logger,
	}
}

// CreateTenant registers the tenant, its owner and bot configuration in one
// transaction, then adds the seed knowledge. A seeding failure is logged
// and does not undo the tenant.
func (s *OnboardingService) CreateTenant(ctx context.Context, in CreateTenantInput) (*OnboardingResult, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, domain.ErrMissingRequiredField
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}

	now := time.Now().UTC()
	tenant := domain.NewTenant(s.uuidGen.NewString(), strings.TrimSpace(in.Name), slug, in.OwnerID, now)
	tenant.Domain = in.Domain
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}

	bot := &domain.BotConfig{
		TenantID:      tenant.ID,
		BotName:       domain.DefaultBotName,
		Personality:   domain.DefaultBotPersona,
		AutonomyLevel: domain.DefaultAutonomyLevel,
		CreatedAt:     now,
	}

	err := s.tx.WithTx(ctx, "", func(repos TxRepositories) error {
		if err := repos.Tenants().Create(ctx, tenant); err != nil {
			return err
		}
		if err := repos.Tenants().AddMember(ctx, tenant.ID, in.OwnerID, "owner"); err != nil {
			return err
		}
		return repos.BotConfigs().Upsert(ctx, bot)
	})
	if err != nil {
		return nil, err
	}

	result := &OnboardingResult{Tenant: tenant, BotConfig: bot}
	for _, seed := range s.seeds {
		added, err := s.knowledge.AddDocument(ctx, AddDocumentInput{
			TenantID: tenant.ID,
			Title:    seed.Title,
			Content:  seed.Content,
			Category: seed.Category,
			Tags:     seed.Tags,
			Wait:     s.indexNow,
		})
		if err != nil {
			s.logger.Warn("failed to seed tenant knowledge",
				zap.String("tenant_id", tenant.ID),
				zap.String("title", seed.Title),
				zap.Error(err))
			continue
		}
		result.Documents = append(result.Documents, added)
	}

	s.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID),
		zap.String("slug", tenant.Slug),
		zap.Int("seed_documents", len(result.Documents)))
	return result, nil
}

var polishFold = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n",
	"ó", "o", "ś", "s", "ź", "z", "ż", "z",
)

// Slugify lowercases name, folds Polish letters to ASCII and joins the
// remaining letter and digit runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range polishFold.Replace(strings.ToLower(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
