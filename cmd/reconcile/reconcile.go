package main

import (
	"context"
	"log"
	"os"
	"time"

	"docchat-platform/internal/config"
	"docchat-platform/internal/database"
	"docchat-platform/internal/logger"
)

// Reconcile walks every tenant database binding and re-applies the
// embedding schema. It repairs tenants left in the created-but-
// unconfigured state by an interrupted first login. Failures on one
// tenant never stop the sweep.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := config.NewCatalogPool(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to catalog database:", err)
	}
	defer pool.Close()

	tenants := database.NewTenantDBStore(pool)
	neon := database.NewNeonAPI(cfg)

	bindings, err := tenants.List(ctx)
	if err != nil {
		log.Fatal("Failed to list tenant databases:", err)
	}

	logger.Info("Reconciling tenant databases", "count", len(bindings))

	var failed int
	for _, binding := range bindings {
		if err := reconcileTenant(ctx, neon, binding.VectorDBID, cfg.VectorDimensions); err != nil {
			logger.Error("Tenant reconcile failed", "tenant", binding.VectorDBID, "error", err)
			failed++
			continue
		}
		logger.Info("Tenant reconciled", "tenant", binding.VectorDBID)
	}

	logger.Info("Reconcile finished", "total", len(bindings), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func reconcileTenant(ctx context.Context, api database.ProvisioningAPI, vectorDBID string, dimensions int) error {
	connectionURI, err := api.ConnectionURI(ctx, vectorDBID)
	if err != nil {
		return err
	}

	store, err := database.OpenChunkStore(ctx, connectionURI, dimensions)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	return store.EnsureSchema(ctx)
}
