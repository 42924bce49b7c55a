package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// ManagerOption configures a Manager before the first load.
type ManagerOption func(*Manager)

// WithConfigFile reads the given file instead of searching the config paths.
func WithConfigFile(path string) ManagerOption {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/lollipop-server/")
	}

	// LOLLIPOP_SERVER_PORT overrides server.port
	v.SetEnvPrefix("LOLLIPOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Layout defaults mirror the engine's own
	layout := lollipop.DefaultConfig()
	v.SetDefault("layout.width", layout.Width)
	v.SetDefault("layout.node_padding", layout.NodePadding)
	v.SetDefault("layout.cluster_factor", layout.ClusterFactor)
	v.SetDefault("layout.cluster_factor_step", layout.ClusterFactorStep)
	v.SetDefault("layout.max_cluster_retries", layout.MaxClusterRetries)
	v.SetDefault("layout.max_resolve_iterations", layout.MaxResolveIterations)
	v.SetDefault("layout.exploded_factor", layout.ExplodedFactor)
	v.SetDefault("layout.max_cluster_size_factor", layout.MaxClusterSizeFactor)
	v.SetDefault("layout.animation_duration", layout.AnimationDuration.String())
	v.SetDefault("layout.stagger_delay", layout.StaggerDelay.String())
	v.SetDefault("layout.handle_width", layout.HandleWidth)
	v.SetDefault("layout.click_tolerance", layout.ClickTolerance)
	v.SetDefault("layout.tick_count", layout.TickCount)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_size", 512)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Variant source defaults
	v.SetDefault("variant_source.enabled", false)
	v.SetDefault("variant_source.base_url", "")
	v.SetDefault("variant_source.api_key", "")
	v.SetDefault("variant_source.timeout", "30s")
	v.SetDefault("variant_source.rate_limit", 10)
	v.SetDefault("variant_source.retry_count", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "lollipop-layout")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetLayoutConfig returns the engine configuration
func (m *Manager) GetLayoutConfig() *lollipop.Config {
	return &m.config.Layout
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetVariantSourceConfig returns the remote variant source configuration
func (m *Manager) GetVariantSourceConfig() *domain.VariantSourceConfig {
	return &m.config.VariantSource
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit <= 0 {
		return fmt.Errorf("server rate limit must be positive")
	}
	if config.Server.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	if err := config.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout configuration: %w", err)
	}

	if config.Cache.Enabled && config.Cache.MemorySize <= 0 {
		return fmt.Errorf("cache memory size must be positive")
	}

	if config.VariantSource.Enabled && config.VariantSource.BaseURL == "" {
		return fmt.Errorf("variant source base URL is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}

// NewLogger builds a logger from the logging section. Unknown levels fall back
// to info.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if strings.ToLower(cfg.Format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetOutput(outputFor(cfg.Output))
	return logger
}

func outputFor(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	case "discard", "none":
		return io.Discard
	}
	return os.Stdout
}
