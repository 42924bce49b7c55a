package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/variant-lollipop-server/internal/api"
	"github.com/variant-lollipop-server/internal/config"
	"github.com/variant-lollipop-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	components, err := service.NewComponents(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer components.Close()

	// Stop on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go components.RunJanitor(ctx)

	var opts []api.ServerOption
	if components.Cache != nil {
		opts = append(opts, api.WithHealthCheck("cache", components.Cache))
	}
	server := api.NewServer(configManager, components.Layouts, components.Sessions, logger, opts...)

	logger.WithField("port", cfg.Server.Port).Info("Starting lollipop layout server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
