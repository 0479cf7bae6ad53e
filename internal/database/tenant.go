package database

import (
	"context"
	"encoding/json"
	"fmt"

	"docchat-platform/models"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PgChunkStore talks to one account's dedicated vector database. The
// connection endpoint is fetched fresh from the provisioning API per
// request, so this store holds a single short-lived connection rather
// than a pool.
type PgChunkStore struct {
	conn       *pgx.Conn
	dimensions int
}

// OpenChunkStore dials the tenant database and registers the vector
// type codec. Satisfies ChunkStoreOpener.
func OpenChunkStore(ctx context.Context, connectionURI string, dimensions int) (ChunkStore, error) {
	conn, err := pgx.Connect(ctx, connectionURI)
	if err != nil {
		return nil, fmt.Errorf("connect tenant database: %w", err)
	}

	if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("register vector types: %w", err)
	}

	return &PgChunkStore{conn: conn, dimensions: dimensions}, nil
}

// EnsureSchema applies the tenant schema. Every statement is
// create-if-not-exists so repeated provisioning attempts against the
// same instance are safe.
func (s *PgChunkStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "embeddings" (
			"id" serial PRIMARY KEY NOT NULL,
			"content" text NOT NULL,
			"metadata" jsonb NOT NULL,
			"embedding" vector(%d),
			"created_at" timestamp with time zone DEFAULT now(),
			"updated_at" timestamp with time zone DEFAULT now()
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS "embedding_idx" ON "embeddings" USING hnsw ("embedding" vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tenant schema: %w", err)
		}
	}
	return nil
}

// InsertChunks bulk-inserts chunk content, metadata and embeddings in
// one batch round trip.
func (s *PgChunkStore) InsertChunks(ctx context.Context, chunks []models.EmbeddingChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		batch.Queue(
			`INSERT INTO embeddings (content, metadata, embedding) VALUES ($1, $2, $3)`,
			chunk.Content, metadata, pgvector.NewVector(chunk.Embedding),
		)
	}

	results := s.conn.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return nil
}

// SimilaritySearch runs cosine nearest-neighbor retrieval scoped to one
// document. Chunks belonging to other documents in the same tenant
// database are excluded by the metadata predicate.
func (s *PgChunkStore) SimilaritySearch(ctx context.Context, embedding []float32, documentID string, k int) ([]models.ChunkMatch, error) {
	query := `
		SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM embeddings
		WHERE metadata->>'documentId' = $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.conn.Query(ctx, query, pgvector.NewVector(embedding), documentID, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	matches := make([]models.ChunkMatch, 0, k)
	for rows.Next() {
		var m models.ChunkMatch
		var metadata []byte
		if err := rows.Scan(&m.Content, &metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal match metadata: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgChunkStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
