package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// ErrServiceUnavailable is returned while the breaker is open and no cached
// answer exists.
var ErrServiceUnavailable = errors.New("variant service unavailable (circuit breaker open)")

// VariantFetcher is the upstream the resilient client wraps.
type VariantFetcher interface {
	FetchVariants(ctx context.Context, gene string) ([]lollipop.Variant, error)
}

// VariantStore caches fetched variant lists.
type VariantStore interface {
	GetVariants(ctx context.Context, gene string) ([]lollipop.Variant, bool, error)
	SetVariants(ctx context.Context, gene string, variants []lollipop.Variant, ttl time.Duration) error
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio"`
}

// DefaultCircuitBreakerConfig trips after three requests with 60% failures.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// ResilientVariantClient wraps a variant source with a circuit breaker and an
// optional cache
type ResilientVariantClient struct {
	upstream VariantFetcher
	cache    VariantStore
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// NewResilientVariantClient creates a resilient client. cache may be nil.
func NewResilientVariantClient(upstream VariantFetcher, cache VariantStore, config CircuitBreakerConfig, logger *logrus.Logger) *ResilientVariantClient {
	if logger == nil {
		logger = logrus.New()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "VariantSource",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// an unknown gene is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrGeneNotFound)
		},
	})

	return &ResilientVariantClient{
		upstream: upstream,
		cache:    cache,
		breaker:  breaker,
		logger:   logger,
	}
}

// FetchVariants queries the upstream with circuit breaker and caching
func (r *ResilientVariantClient) FetchVariants(ctx context.Context, gene string) ([]lollipop.Variant, error) {
	if cached, ok := r.cached(ctx, gene); ok {
		return cached, nil
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.upstream.FetchVariants(ctx, gene)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrServiceUnavailable
		}
		return nil, fmt.Errorf("variant query failed: %w", err)
	}

	variants := result.([]lollipop.Variant)
	if r.cache != nil {
		if cacheErr := r.cache.SetVariants(ctx, gene, variants, 0); cacheErr != nil {
			r.logger.WithError(cacheErr).WithField("gene", gene).Warn("Failed to cache variants")
		}
	}
	return variants, nil
}

func (r *ResilientVariantClient) cached(ctx context.Context, gene string) ([]lollipop.Variant, bool) {
	if r.cache == nil {
		return nil, false
	}
	variants, found, err := r.cache.GetVariants(ctx, gene)
	if err != nil {
		r.logger.WithError(err).WithField("gene", gene).Debug("Variant cache lookup failed")
		return nil, false
	}
	return variants, found
}

// State returns the current breaker state
func (r *ResilientVariantClient) State() gobreaker.State {
	return r.breaker.State()
}

// Counts returns the breaker counters of the current interval
func (r *ResilientVariantClient) Counts() gobreaker.Counts {
	return r.breaker.Counts()
}
