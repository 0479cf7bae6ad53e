package models

// ChatMessage is one turn of the client-held conversation. Role is
// "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest asks for a streamed reply grounded in one document.
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages" binding:"required,min=1"`
	DocumentID string        `json:"documentId" binding:"required"`
}

// UploadRequest asks for a direct-upload credential. FileSize is the
// declared size in bytes; it is checked against the cap before any
// credential is minted.
type UploadRequest struct {
	Filename string `json:"filename" binding:"required"`
	FileSize int64  `json:"fileSize"`
}

// UploadResponse carries the presigned PUT URL and the server-chosen
// storage key the client must pass back to vectorize.
type UploadResponse struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
}

// VectorizeRequest runs the ingestion pipeline over an already-uploaded
// file. Filename is the storage key returned by upload.
type VectorizeRequest struct {
	Filename string `json:"filename" binding:"required"`
	Title    string `json:"title" binding:"required"`
}
