package services

import (
	"context"
	"fmt"

	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// ObjectFetcher reads an uploaded object back from storage through a
// short-lived read credential.
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string, maxSize int64) ([]byte, error)
}

// Embedder computes one fixed-dimension vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestionService runs the upload-to-searchable pipeline: fetch bytes,
// extract text, split, embed, persist chunks in the tenant database,
// then record the document in the shared catalog. Each step is a hard
// dependency on the previous one succeeding; there is no partial-result
// cleanup on failure.
type IngestionService struct {
	api        database.ProvisioningAPI
	tenants    database.TenantDBStore
	documents  database.DocumentStore
	openStore  database.ChunkStoreOpener
	fetcher    ObjectFetcher
	embedder   Embedder
	splitter   *TextSplitter
	extract    func(content []byte) (string, int, error)
	maxSize    int64
	dimensions int
}

func NewIngestionService(
	api database.ProvisioningAPI,
	tenants database.TenantDBStore,
	documents database.DocumentStore,
	openStore database.ChunkStoreOpener,
	fetcher ObjectFetcher,
	embedder Embedder,
	splitter *TextSplitter,
	maxSize int64,
	dimensions int,
) *IngestionService {
	return &IngestionService{
		api:        api,
		tenants:    tenants,
		documents:  documents,
		openStore:  openStore,
		fetcher:    fetcher,
		embedder:   embedder,
		splitter:   splitter,
		extract:    ExtractPDFText,
		maxSize:    maxSize,
		dimensions: dimensions,
	}
}

// Ingest processes one uploaded file for the given account. The storage
// key must come from a prior upload credential. Retrying the same key
// re-runs the whole pipeline and produces a fresh document id and fresh
// chunks; submissions are not deduplicated.
func (s *IngestionService) Ingest(ctx context.Context, account *models.Account, storageKey, title string) (*models.Document, error) {
	// Connection endpoint is re-derived fresh on every run, never cached.
	tenant, err := s.tenants.GetByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant database: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("account %s has no tenant database", account.AccountID)
	}

	connectionURI, err := s.api.ConnectionURI(ctx, tenant.VectorDBID)
	if err != nil {
		return nil, fmt.Errorf("resolve connection endpoint: %w", err)
	}

	data, err := s.fetcher.Fetch(ctx, storageKey, s.maxSize)
	if err != nil {
		return nil, fmt.Errorf("fetch uploaded file: %w", err)
	}

	text, pages, err := s.extract(data)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	// The public id is generated before embedding so every chunk carries
	// it in metadata; retrieval scopes on this value.
	documentID := utils.GenerateID(utils.PrefixDocument)

	vectors, err := s.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]models.EmbeddingChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.EmbeddingChunk{
			Content:   piece,
			Metadata:  map[string]string{"documentId": documentID},
			Embedding: vectors[i],
		}
	}

	store, err := s.openStore(ctx, connectionURI, s.dimensions)
	if err != nil {
		return nil, fmt.Errorf("open tenant database: %w", err)
	}
	defer store.Close(ctx)

	if err := store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}

	doc, err := s.documents.Insert(ctx, models.Document{
		DocumentID: documentID,
		AccountID:  account.ID,
		Title:      title,
		FileName:   storageKey,
		FileSize:   int64(len(data)),
	})
	if err != nil {
		// Chunks are already written at this point; a failure here leaves
		// them orphaned with no catalog entry. cmd/reconcile reports such
		// tenants, there is no inline cleanup.
		return nil, fmt.Errorf("record document: %w", err)
	}

	logger.Info("Document ingested",
		"account", account.AccountID,
		"document", doc.DocumentID,
		"pages", pages,
		"chunks", len(chunks),
	)
	return doc, nil
}
