package database

import (
	"context"

	"docchat-platform/models"
)

// Store interfaces are what routes and services depend on, so tests can
// substitute fakes without a live catalog or tenant database.

type AccountStore interface {
	// GetByEmail returns the account and, when one is bound, its tenant
	// database row. Both nil when no account exists for the email.
	GetByEmail(ctx context.Context, email string) (*models.Account, *models.TenantDatabase, error)
	// Upsert inserts the account if absent; a duplicate email is treated
	// as "already exists" and the existing row is returned.
	Upsert(ctx context.Context, profile models.Profile, accountID string) (*models.Account, error)
}

type TenantDBStore interface {
	// Bind records the one-to-one account/tenant-database ownership.
	// A concurrent loser gets ErrTenantBindingRace.
	Bind(ctx context.Context, accountID int64, vectorDBID string) (*models.TenantDatabase, error)
	GetByAccount(ctx context.Context, accountID int64) (*models.TenantDatabase, error)
	// List returns every binding, for the reconcile batch script.
	List(ctx context.Context) ([]models.TenantDatabase, error)
}

type DocumentStore interface {
	Insert(ctx context.Context, doc models.Document) (*models.Document, error)
	CountByAccount(ctx context.Context, accountID int64) (int, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.Document, error)
}

// ChunkStore is the per-tenant embedding store, opened per request from
// a freshly fetched connection endpoint.
type ChunkStore interface {
	EnsureSchema(ctx context.Context) error
	InsertChunks(ctx context.Context, chunks []models.EmbeddingChunk) error
	// SimilaritySearch returns the k nearest chunks under cosine
	// distance, restricted to chunks whose metadata documentId matches.
	SimilaritySearch(ctx context.Context, embedding []float32, documentID string, k int) ([]models.ChunkMatch, error)
	Close(ctx context.Context) error
}

// ProvisioningAPI is the external database-hosting provider.
type ProvisioningAPI interface {
	// CreateProject provisions a new database instance and returns its
	// provider id plus an immediately usable connection endpoint.
	CreateProject(ctx context.Context) (projectID, connectionURI string, err error)
	// ConnectionURI re-derives the endpoint for an existing instance.
	ConnectionURI(ctx context.Context, projectID string) (string, error)
}

// ChunkStoreOpener dials a tenant database. Injected so the ingestion
// pipeline and chat responder can be tested without Postgres.
type ChunkStoreOpener func(ctx context.Context, connectionURI string, dimensions int) (ChunkStore, error)
