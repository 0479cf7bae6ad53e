package models

import "time"

// Document is the shared-catalog metadata row for one ingested file.
// The chunks themselves live in the owning account's tenant database,
// related only by DocumentID stamped into chunk metadata.
type Document struct {
	ID         int64     `json:"-"`
	DocumentID string    `json:"documentId"`
	AccountID  int64     `json:"-"`
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EmbeddingChunk is one unit of split document text with its embedding,
// stored in the tenant database's embeddings table.
type EmbeddingChunk struct {
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"-"`
}

// ChunkMatch is one retrieval hit from a cosine similarity search.
type ChunkMatch struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
}
