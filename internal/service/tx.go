package service

import "context"

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Tenants() TenantRepository
	BotConfigs() BotConfigRepository
	Documents() DocumentRepository
	IndexJobs() IndexJobRepository
}

// TxRunner executes fn within a transaction. A non-empty tenantID runs the
// transaction on that tenant's scoped session so row policies apply; an
// empty one uses the shared pool for cross-tenant administration.
type TxRunner interface {
	WithTx(ctx context.Context, tenantID string, fn func(repos TxRepositories) error) error
}
