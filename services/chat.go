package services

import (
	"context"
	"fmt"
	"strings"

	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
)

// TextEmbedder computes a single vector for one text, used for queries.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// RetrievalService answers "which chunks of this document are closest to
// this question". It opens the tenant database per call from a freshly
// derived connection endpoint, same as ingestion.
type RetrievalService struct {
	api        database.ProvisioningAPI
	openStore  database.ChunkStoreOpener
	embedder   TextEmbedder
	topK       int
	dimensions int
}

func NewRetrievalService(api database.ProvisioningAPI, openStore database.ChunkStoreOpener, embedder TextEmbedder, topK, dimensions int) *RetrievalService {
	return &RetrievalService{
		api:        api,
		openStore:  openStore,
		embedder:   embedder,
		topK:       topK,
		dimensions: dimensions,
	}
}

// Retrieve embeds the question and returns the top matches scoped to the
// given document. Matches from other documents in the same tenant
// database are never returned.
func (s *RetrievalService) Retrieve(ctx context.Context, vectorDBID, documentID, question string) (string, error) {
	connectionURI, err := s.api.ConnectionURI(ctx, vectorDBID)
	if err != nil {
		return "", fmt.Errorf("resolve connection endpoint: %w", err)
	}

	embedding, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	store, err := s.openStore(ctx, connectionURI, s.dimensions)
	if err != nil {
		return "", fmt.Errorf("open tenant database: %w", err)
	}
	defer store.Close(ctx)

	matches, err := store.SimilaritySearch(ctx, embedding, documentID, s.topK)
	if err != nil {
		return "", fmt.Errorf("similarity search: %w", err)
	}

	logger.Debug("Retrieved context chunks", "document", documentID, "matches", len(matches))

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n"), nil
}
