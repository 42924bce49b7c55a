package lollipop

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the engine's layout parameters.
type Config struct {
	Width                float64       `json:"width" mapstructure:"width"`
	NodePadding          float64       `json:"node_padding" mapstructure:"node_padding"`
	ClusterFactor        float64       `json:"cluster_factor" mapstructure:"cluster_factor"`
	ClusterFactorStep    float64       `json:"cluster_factor_step" mapstructure:"cluster_factor_step"`
	MaxClusterRetries    int           `json:"max_cluster_retries" mapstructure:"max_cluster_retries"`
	MaxResolveIterations int           `json:"max_resolve_iterations" mapstructure:"max_resolve_iterations"`
	ExplodedFactor       float64       `json:"exploded_factor" mapstructure:"exploded_factor"`
	MaxClusterSizeFactor float64       `json:"max_cluster_size_factor" mapstructure:"max_cluster_size_factor"`
	AnimationDuration    time.Duration `json:"animation_duration" mapstructure:"animation_duration"`
	StaggerDelay         time.Duration `json:"stagger_delay" mapstructure:"stagger_delay"`
	HandleWidth          float64       `json:"handle_width" mapstructure:"handle_width"`
	ClickTolerance       float64       `json:"click_tolerance" mapstructure:"click_tolerance"`
	TickCount            int           `json:"tick_count" mapstructure:"tick_count"`
}

// MaxWidth is the widest canvas whose pixel coordinates still fit an int32.
const MaxWidth = math.MaxInt32

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Width:                1000,
		NodePadding:          1,
		ClusterFactor:        0.2,
		ClusterFactorStep:    0.1,
		MaxClusterRetries:    50,
		MaxResolveIterations: 10_000_000,
		ExplodedFactor:       1.9,
		MaxClusterSizeFactor: 5,
		AnimationDuration:    500 * time.Millisecond,
		StaggerDelay:         10 * time.Millisecond,
		HandleWidth:          6,
		ClickTolerance:       3,
		TickCount:            10,
	}
}

// Validate rejects configurations the engine cannot lay out with.
func (c Config) Validate() error {
	switch {
	case !(c.Width > 0):
		return newConfigError("", "width", "canvas width must be positive")
	case c.Width > MaxWidth:
		return newConfigError("", "width", fmt.Sprintf("canvas width cannot exceed %d", MaxWidth))
	case c.NodePadding < 0:
		return newConfigError("", "node_padding", "node padding cannot be negative")
	case c.ClusterFactor < 0:
		return newConfigError("", "cluster_factor", "cluster factor cannot be negative")
	case c.ClusterFactorStep <= 0:
		return newConfigError("", "cluster_factor_step", "cluster factor step must be positive")
	case c.MaxClusterRetries < 0:
		return newConfigError("", "max_cluster_retries", "max cluster retries cannot be negative")
	case c.MaxResolveIterations <= 0:
		return newConfigError("", "max_resolve_iterations", "max resolve iterations must be positive")
	case c.ExplodedFactor <= 0:
		return newConfigError("", "exploded_factor", "exploded factor must be positive")
	case c.MaxClusterSizeFactor < 1:
		return newConfigError("", "max_cluster_size_factor", "max cluster size factor must be at least 1")
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the engine configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.cfg = cfg
		return nil
	}
}

// WithWidth sets the canvas width.
func WithWidth(width float64) Option {
	return func(e *Engine) error {
		e.cfg.Width = width
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}
