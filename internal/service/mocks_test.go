package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/generation"
	"github.com/cloo-solutions/bokai/internal/pagination"
	"github.com/cloo-solutions/bokai/internal/tenancy"
	"github.com/cloo-solutions/bokai/internal/vectorindex"
)

const (
	testTenantID = "6f1c2f0e-3b7a-4c1e-9d2a-0a4b5c6d7e8f"
	testDocID    = "11111111-2222-4333-8444-555555555555"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockIndex struct {
	mock.Mock
}

var _ vectorindex.Index = (*MockIndex)(nil)

func (m *MockIndex) EnsureCollection(ctx context.Context, tenantID string, dim int, metric vectorindex.Metric) error {
	return m.Called(ctx, tenantID, dim, metric).Error(0)
}

func (m *MockIndex) Upsert(ctx context.Context, tenantID string, chunks []domain.KnowledgeChunk) ([]string, error) {
	args := m.Called(ctx, tenantID, chunks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockIndex) Search(ctx context.Context, tenantID string, vector []float32, limit int, threshold float64) ([]domain.KnowledgeSource, error) {
	args := m.Called(ctx, tenantID, vector, limit, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.KnowledgeSource), args.Error(1)
}

func (m *MockIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return m.Called(ctx, tenantID, documentID).Error(0)
}

func (m *MockIndex) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockBackend struct {
	mock.Mock
	name string
}

func (m *MockBackend) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.Result), args.Error(1)
}

func (m *MockBackend) Name() string { return m.name }

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, tenantID, principal string) (*tenancy.Handle, error) {
	args := m.Called(ctx, tenantID, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Handle), args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.KnowledgeDocument) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeDocument), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *MockIndexJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error {
	return m.Called(ctx, jobID, status, errMsg).Error(0)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) AddMember(ctx context.Context, tenantID, userID, role string) error {
	return m.Called(ctx, tenantID, userID, role).Error(0)
}

type MockBotConfigRepository struct {
	mock.Mock
}

func (m *MockBotConfigRepository) Upsert(ctx context.Context, c *domain.BotConfig) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockBotConfigRepository) Get(ctx context.Context, tenantID string) (*domain.BotConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BotConfig), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return m.Called(ctx, key, body, contentType).Error(0)
}

func (m *MockArchive) Get(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockArchive) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockDocumentIndexer struct {
	mock.Mock
}

func (m *MockDocumentIndexer) IndexDocument(ctx context.Context, doc *domain.KnowledgeDocument) (*IndexResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IndexResult), args.Error(1)
}

func (m *MockDocumentIndexer) RemoveDocument(ctx context.Context, tenantID, documentID string) error {
	return m.Called(ctx, tenantID, documentID).Error(0)
}

// fakeTx runs fn directly against the mock repositories and records the
// tenant each transaction was scoped to.
type fakeTx struct {
	tenants   *MockTenantRepository
	bots      *MockBotConfigRepository
	docs      *MockDocumentRepository
	jobs      *MockIndexJobRepository
	scopes    []string
	commitErr error
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		tenants: new(MockTenantRepository),
		bots:    new(MockBotConfigRepository),
		docs:    new(MockDocumentRepository),
		jobs:    new(MockIndexJobRepository),
	}
}

func (f *fakeTx) WithTx(_ context.Context, tenantID string, fn func(repos TxRepositories) error) error {
	f.scopes = append(f.scopes, tenantID)
	if err := fn(f); err != nil {
		return err
	}
	return f.commitErr
}

func (f *fakeTx) Tenants() TenantRepository       { return f.tenants }
func (f *fakeTx) BotConfigs() BotConfigRepository { return f.bots }
func (f *fakeTx) Documents() DocumentRepository   { return f.docs }
func (f *fakeTx) IndexJobs() IndexJobRepository   { return f.jobs }

type sequentialUUIDs struct {
	ids []string
	i   int
}

func (s *sequentialUUIDs) NewString() string {
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}
