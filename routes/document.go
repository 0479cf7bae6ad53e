package routes

import (
	"context"
	"net/http"
	"strings"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/storage"
	"docchat-platform/middleware"
	"docchat-platform/models"
	"docchat-platform/utils"

	"github.com/gin-gonic/gin"
)

// Presigner hands out short-lived upload URLs.
type Presigner interface {
	PresignUpload(ctx context.Context, key string) (string, error)
}

// Ingester runs the upload-to-searchable pipeline for one file.
type Ingester interface {
	Ingest(ctx context.Context, account *models.Account, storageKey, title string) (*models.Document, error)
}

// Retriever returns document-scoped context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, vectorDBID, documentID, question string) (string, error)
}

// ChatStreamer streams a grounded model reply chunk by chunk.
type ChatStreamer interface {
	StreamChat(ctx context.Context, turns []ai.ChatTurn, systemContext string, emit func(text string) error) error
}

type DocumentDeps struct {
	Accounts  database.AccountStore
	Documents database.DocumentStore
	Presigner Presigner
	Ingester  Ingester
	Retriever Retriever
	Streamer  ChatStreamer
}

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, sessions middleware.SessionValidator, deps DocumentDeps) {
	group := router.Group("/api")
	group.Use(middleware.AuthMiddleware(sessions, cfg.SessionCookie))

	// Upload broker: validates caps and hands out a presigned PUT URL.
	// The file itself never passes through this server.
	group.POST("/document/upload", func(c *gin.Context) {
		var req models.UploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		account, _, err := deps.Accounts.GetByEmail(c.Request.Context(), middleware.GetEmail(c))
		if err != nil || account == nil {
			utils.RespondWithUnauthorized(c, "Account not found")
			return
		}

		count, err := deps.Documents.CountByAccount(c.Request.Context(), account.ID)
		if err != nil {
			logger.Error("Document count failed", "account", account.AccountID, "error", err)
			utils.RespondWithInternalError(c, "Could not check document quota", nil)
			return
		}
		if count >= cfg.MaxDocuments {
			utils.RespondWithQuotaExceeded(c, "Document limit reached",
				gin.H{"limit": cfg.MaxDocuments, "current": count})
			return
		}

		if req.FileSize > cfg.MaxFileSize {
			utils.RespondWithPayloadTooLarge(c, "File exceeds the maximum allowed size",
				gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		key := storage.DeriveKey(req.Filename)
		url, err := deps.Presigner.PresignUpload(c.Request.Context(), key)
		if err != nil {
			logger.Error("Presign failed", "account", account.AccountID, "error", err)
			utils.RespondWithInternalError(c, "Could not create upload URL", nil)
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			URL:      url,
			Title:    req.Filename,
			Filename: key,
		})
	})

	// Vectorize: runs the full ingestion pipeline on a file that was
	// already uploaded through a presigned URL.
	group.POST("/document/vectorize", func(c *gin.Context) {
		var req models.VectorizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		account, _, err := deps.Accounts.GetByEmail(c.Request.Context(), middleware.GetEmail(c))
		if err != nil || account == nil {
			utils.RespondWithUnauthorized(c, "Account not found")
			return
		}

		// The cap guards ingestion too: a previously issued upload
		// credential must not let a caller vectorize past the quota.
		count, err := deps.Documents.CountByAccount(c.Request.Context(), account.ID)
		if err != nil {
			logger.Error("Document count failed", "account", account.AccountID, "error", err)
			utils.RespondWithInternalError(c, "Could not check document quota", nil)
			return
		}
		if count >= cfg.MaxDocuments {
			utils.RespondWithQuotaExceeded(c, "Document limit reached",
				gin.H{"limit": cfg.MaxDocuments, "current": count})
			return
		}

		doc, err := deps.Ingester.Ingest(c.Request.Context(), account, req.Filename, req.Title)
		if err != nil {
			logger.Error("Ingestion failed", "account", account.AccountID, "file", req.Filename, "error", err)
			utils.RespondWithInternalError(c, "Document processing failed", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"document": doc})
	})

	// Chat: retrieves document-scoped context, then streams the model
	// reply as plain text chunks.
	group.POST("/document/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		last := req.Messages[len(req.Messages)-1]
		if last.Role != "user" {
			utils.RespondWithBadRequest(c, "Last message must be from the user", nil)
			return
		}

		excerpts, err := deps.Retriever.Retrieve(c.Request.Context(),
			middleware.GetVectorDBID(c), req.DocumentID, last.Content)
		if err != nil {
			logger.Error("Retrieval failed", "document", req.DocumentID, "error", err)
			utils.RespondWithInternalError(c, "Could not retrieve document context", nil)
			return
		}

		turns := make([]ai.ChatTurn, len(req.Messages))
		for i, m := range req.Messages {
			turns[i] = ai.ChatTurn{Role: m.Role, Content: m.Content}
		}

		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		flusher, _ := c.Writer.(http.Flusher)
		err = deps.Streamer.StreamChat(c.Request.Context(), turns, chatSystemContext(excerpts), func(text string) error {
			if _, werr := c.Writer.WriteString(text); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		})
		if err != nil {
			// Headers are already sent, all we can do is log and close.
			logger.Error("Chat stream failed", "document", req.DocumentID, "error", err)
		}
	})

	group.GET("/documents", func(c *gin.Context) {
		account, _, err := deps.Accounts.GetByEmail(c.Request.Context(), middleware.GetEmail(c))
		if err != nil || account == nil {
			utils.RespondWithUnauthorized(c, "Account not found")
			return
		}

		docs, err := deps.Documents.ListByAccount(c.Request.Context(), account.ID)
		if err != nil {
			logger.Error("Document listing failed", "account", account.AccountID, "error", err)
			utils.RespondWithInternalError(c, "Could not list documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"documents": docs})
	})
}

func chatSystemContext(excerpts string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about a document the user uploaded.\n")
	b.WriteString("Here is relevant information from the document:\n\n")
	b.WriteString(excerpts)
	b.WriteString("\n\nOnly use this information if it's relevant.")
	return b.String()
}
