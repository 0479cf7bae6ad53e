package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/auth"
	"docchat-platform/internal/config"
	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/storage"
	"docchat-platform/internal/telemetry"
	"docchat-platform/middleware"
	"docchat-platform/routes"
	"docchat-platform/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("docchat-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracing:", err)
		}
		defer shutdown()
	}

	// Redis backs the rate limiter and session revocation store
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Shared catalog database
	pool, err := config.NewCatalogPool(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to connect to catalog database:", err)
	}
	defer pool.Close()

	if err := database.EnsureCatalogSchema(context.Background(), pool); err != nil {
		log.Fatal("Failed to ensure catalog schema:", err)
	}

	accounts := database.NewAccountStore(pool)
	tenants := database.NewTenantDBStore(pool)
	documents := database.NewDocumentStore(pool)

	neon := database.NewNeonAPI(cfg)
	provisioner := database.NewProvisioner(accounts, tenants, neon, database.OpenChunkStore, cfg.VectorDimensions)

	broker, err := storage.NewBroker(cfg)
	if err != nil {
		log.Fatal("Failed to initialize object storage:", err)
	}

	aiClient, err := ai.NewClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize AI client:", err)
	}
	defer aiClient.Close()

	sessions, err := auth.NewSessionManager(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to initialize session manager:", err)
	}
	google := auth.NewGoogleAuthenticator(cfg)

	splitter := services.NewTextSplitter(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingester := services.NewIngestionService(
		neon, tenants, documents, database.OpenChunkStore,
		broker, aiClient, splitter, cfg.MaxFileSize, cfg.VectorDimensions,
	)
	retriever := services.NewRetrievalService(neon, database.OpenChunkStore, aiClient, cfg.RetrievalTopK, cfg.VectorDimensions)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupAuthRoutes(router, cfg, google, sessions, provisioner)
	routes.SetupDocumentRoutes(router, cfg, sessions, routes.DocumentDeps{
		Accounts:  accounts,
		Documents: documents,
		Presigner: broker,
		Ingester:  ingester,
		Retriever: retriever,
		Streamer:  aiClient,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
