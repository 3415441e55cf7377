package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/rogerio-castellano/product-catalog/internal/app"
	"github.com/rogerio-castellano/product-catalog/internal/config"
	"github.com/rogerio-castellano/product-catalog/internal/logger"
	"go.uber.org/zap"
)

// @title Product Catalog API
// @version 1.0
// @description CRUD API over the product catalog.
// @host localhost:3000
// @BasePath /api
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Could not load configuration: %v", err)
	}

	lg, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Production: cfg.IsProduction(),
		File:       cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("❌ Could not build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("could not start", zap.Error(err))
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		lg.Error("server stopped", zap.Error(err))
		return
	}
	lg.Info("server stopped")
}
