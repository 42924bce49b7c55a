package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/variant-lollipop-server/internal/config"
	"github.com/variant-lollipop-server/internal/mcp"
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

	// stdout carries the protocol
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger := config.NewLogger(cfg.Logging)

	components, err := service.NewComponents(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer components.Close()

	mcpServer, err := mcp.NewServer(cfg.MCP, components.Layouts, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcpServer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("Lollipop MCP server stopped")
}
