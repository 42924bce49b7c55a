// Package mcp exposes the layout service as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
)

// Server represents the lollipop layout MCP server
type Server struct {
	config    domain.MCPConfig
	layouts   domain.LayoutComputer
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(cfg domain.MCPConfig, layouts domain.LayoutComputer, logger *logrus.Logger) (*Server, error) {
	if layouts == nil {
		return nil, fmt.Errorf("layout service is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "lollipop-layout"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	server := &Server{
		config:    cfg,
		layouts:   layouts,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	server.registerTools()

	return server, nil
}

// Run serves MCP requests over t until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"server_name": s.config.ServerName,
		"version":     s.config.ServerVersion,
	}).Info("Starting lollipop layout MCP server")

	if err := s.mcpServer.Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Start runs the server on the configured transport
func (s *Server) Start(ctx context.Context) error {
	switch s.config.TransportType {
	case "", "stdio":
		return s.Run(ctx, &mcp.StdioTransport{})
	default:
		return fmt.Errorf("unsupported MCP transport %q", s.config.TransportType)
	}
}
