package services

import (
	"context"
	"testing"

	"docchat-platform/internal/database"
	"docchat-platform/models"
)

type fakeQueryEmbedder struct {
	questions []string
}

func (f *fakeQueryEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.questions = append(f.questions, text)
	return []float32{0.1, 0.2}, nil
}

type fakeSearchStore struct {
	fakeTenantChunks
	matches     []models.ChunkMatch
	documentIDs []string
	ks          []int
}

func (f *fakeSearchStore) SimilaritySearch(_ context.Context, _ []float32, documentID string, k int) ([]models.ChunkMatch, error) {
	f.documentIDs = append(f.documentIDs, documentID)
	f.ks = append(f.ks, k)
	return f.matches, nil
}

func TestRetrieveScopesAndJoinsMatches(t *testing.T) {
	api := &fakeProvisioningAPI{uri: "postgres://tenant"}
	store := &fakeSearchStore{matches: []models.ChunkMatch{
		{Content: "first excerpt", Similarity: 0.92},
		{Content: "second excerpt", Similarity: 0.88},
	}}
	embedder := &fakeQueryEmbedder{}

	opener := func(_ context.Context, _ string, _ int) (database.ChunkStore, error) {
		return store, nil
	}
	svc := NewRetrievalService(api, opener, embedder, 2, 768)

	excerpts, err := svc.Retrieve(context.Background(), "proj-1", "doc_abc349fGHJKLMN", "what is this?")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if excerpts != "first excerpt\nsecond excerpt" {
		t.Fatalf("unexpected joined excerpts %q", excerpts)
	}
	if len(store.documentIDs) != 1 || store.documentIDs[0] != "doc_abc349fGHJKLMN" {
		t.Fatalf("search not scoped to the document: %v", store.documentIDs)
	}
	if store.ks[0] != 2 {
		t.Fatalf("expected top-2 retrieval, got k=%d", store.ks[0])
	}
	if len(embedder.questions) != 1 || embedder.questions[0] != "what is this?" {
		t.Fatalf("question was not embedded: %v", embedder.questions)
	}
	if len(api.uriCalls) != 1 || api.uriCalls[0] != "proj-1" {
		t.Fatalf("endpoint not derived from the tenant binding: %v", api.uriCalls)
	}
	if !store.closed {
		t.Fatalf("tenant connection was not closed")
	}
}

func TestRetrieveEmptyTenantYieldsNoExcerpts(t *testing.T) {
	api := &fakeProvisioningAPI{uri: "postgres://tenant"}
	store := &fakeSearchStore{}
	svc := NewRetrievalService(api, func(_ context.Context, _ string, _ int) (database.ChunkStore, error) {
		return store, nil
	}, &fakeQueryEmbedder{}, 2, 768)

	excerpts, err := svc.Retrieve(context.Background(), "proj-1", "doc_abc349fGHJKLMN", "anything?")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if excerpts != "" {
		t.Fatalf("expected empty excerpts, got %q", excerpts)
	}
}
