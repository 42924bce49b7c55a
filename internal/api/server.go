package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/middleware"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// SessionService is the session surface the HTTP API drives
type SessionService interface {
	domain.SessionStore
	Zoom(id string, protein *lollipop.Range) (*domain.SessionInfo, error)
	Resize(id string, width float64) (*domain.SessionInfo, error)
	SVG(id string) ([]byte, error)
	Len() int
}

// HealthChecker reports the health of a dependency
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	layouts       domain.LayoutComputer
	sessions      SessionService
	checks        map[string]HealthChecker
	upgrader      *websocket.Upgrader
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// ServerOption configures optional server collaborators
type ServerOption func(*Server)

// WithHealthCheck adds a named dependency to the health endpoint.
func WithHealthCheck(name string, check HealthChecker) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, layouts domain.LayoutComputer, sessions SessionService, logger *logrus.Logger, opts ...ServerOption) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	server := &Server{
		configManager: configManager,
		layouts:       layouts,
		sessions:      sessions,
		checks:        make(map[string]HealthChecker),
		upgrader:      newUpgrader(cfg.Server.AllowedOrigins),
		logger:        logger,
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes(cfg.Server)

	return server
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and shuts it down gracefully when ctx is done
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(cfg domain.ServerConfig) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequestTimeout(cfg.WriteTimeout))
	if cfg.RateLimit > 0 {
		v1.Use(middleware.RateLimit(middleware.NewClientLimiter(cfg.RateLimit, cfg.RateBurst)))
	}
	{
		v1.POST("/layout", s.handleLayout)
		v1.POST("/layout/svg", s.handleLayoutSVG)

		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.DELETE("/sessions/:id", s.handleDeleteSession)
		v1.GET("/sessions/:id/svg", s.handleSessionSVG)
		v1.POST("/sessions/:id/events", s.handleSessionEvent)
		v1.POST("/sessions/:id/explode/:node", s.handleExplode)
		v1.POST("/sessions/:id/zoom", s.handleZoom)
		v1.POST("/sessions/:id/resize", s.handleResize)
		v1.GET("/sessions/:id/ws", s.handleSessionStream)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now(),
		"version":   Version,
		"sessions":  s.sessions.Len(),
		"checks":    checks,
	})
}

func (s *Server) handleLayout(c *gin.Context) {
	var req domain.LayoutRequest
	if !s.bind(c, &req) {
		return
	}
	result, err := s.layouts.ComputeLayout(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLayoutSVG(c *gin.Context) {
	var req domain.LayoutRequest
	if !s.bind(c, &req) {
		return
	}
	doc, result, err := s.layouts.RenderSVG(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-View-Protein-Range", fmt.Sprintf("%d-%d", result.ViewProteinRange[0], result.ViewProteinRange[1]))
	c.Data(http.StatusOK, "image/svg+xml", doc)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req domain.LayoutRequest
	if !s.bind(c, &req) {
		return
	}
	info, err := s.sessions.Create(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/api/v1/sessions/"+info.ID)
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleGetSession(c *gin.Context) {
	info, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSessionSVG(c *gin.Context) {
	doc, err := s.sessions.SVG(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", doc)
}

// EventResponse is returned for every pointer event
type EventResponse struct {
	Changed bool                `json:"changed"`
	Session *domain.SessionInfo `json:"session"`
}

func (s *Server) handleSessionEvent(c *gin.Context) {
	var ev lollipop.Event
	if !s.bind(c, &ev) {
		return
	}
	info, changed, err := s.sessions.HandleEvent(c.Param("id"), ev)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EventResponse{Changed: changed, Session: info})
}

func (s *Server) handleExplode(c *gin.Context) {
	track := c.Query("track")
	if track == "" {
		s.fail(c, domain.NewValidationError("track", "track query parameter is required", nil))
		return
	}
	info, err := s.sessions.Explode(c.Param("id"), track, c.Param("node"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ZoomRequest moves a session to a protein window. An empty range resets the
// view.
type ZoomRequest struct {
	ProteinRange *lollipop.Range `json:"protein_range"`
}

func (s *Server) handleZoom(c *gin.Context) {
	var req ZoomRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	info, err := s.sessions.Zoom(c.Param("id"), req.ProteinRange)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ResizeRequest changes the canvas width of a session
type ResizeRequest struct {
	Width float64 `json:"width"`
}

func (s *Server) handleResize(c *gin.Context) {
	var req ResizeRequest
	if !s.bind(c, &req) {
		return
	}
	info, err := s.sessions.Resize(c.Param("id"), req.Width)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// bind decodes the JSON body and answers 400 on failure.
func (s *Server) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, domain.NewValidationError("body", "invalid JSON body: "+err.Error(), nil))
		return false
	}
	return true
}

// fail writes the coded error response for err.
func (s *Server) fail(c *gin.Context, err error) {
	resp, status := domain.ErrorResponse(err, c.GetString(middleware.CorrelationIDKey))
	_ = c.Error(err)

	entry := s.logger.WithFields(logrus.Fields{
		"correlation_id": resp.RequestID,
		"code":           resp.Code,
		"status":         status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, resp)
}
