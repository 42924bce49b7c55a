package domain

import (
	"time"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Layout        lollipop.Config     `mapstructure:"layout"`
	Cache         CacheConfig         `mapstructure:"cache"`
	VariantSource VariantSourceConfig `mapstructure:"variant_source"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	MCP           MCPConfig           `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// CacheConfig represents layout cache configuration. An empty RedisURL keeps
// the cache in memory only.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MemorySize  int           `mapstructure:"memory_size"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// VariantSourceConfig represents the remote variant REST API configuration
type VariantSourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	TransportType string `mapstructure:"transport_type"` // "stdio"
}
