package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// ErrGeneNotFound is returned when the variant API knows no such gene.
var ErrGeneNotFound = errors.New("gene not found")

// VariantClient handles interactions with a REST variant knowledge base that
// lists the protein-level variants of a gene.
type VariantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	retryCount int
	backoff    time.Duration
	logger     *logrus.Logger
}

// VariantClientConfig represents configuration for the variant API client
type VariantClientConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  int           `json:"rate_limit"` // requests per second
	RetryCount int           `json:"retry_count"`
	Backoff    time.Duration `json:"backoff"`
}

// VariantResponse represents the JSON response of GET /genes/{gene}/variants
type VariantResponse struct {
	Gene     string `json:"gene"`
	Length   int    `json:"protein_length"`
	Variants []struct {
		ID              string `json:"id"`
		ProteinPosition int    `json:"protein_position"`
		ProteinChange   string `json:"protein_change"`
		Consequence     string `json:"consequence"`
	} `json:"variants"`
}

// HTTPError is a non-success response of the variant API.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("variant API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewVariantClient creates a new variant API client
func NewVariantClient(config VariantClientConfig, logger *logrus.Logger) *VariantClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.Backoff == 0 {
		config.Backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &VariantClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		retryCount: config.RetryCount,
		backoff:    config.Backoff,
		logger:     logger,
	}
}

// FetchVariants retrieves the variants of a gene as lollipop markers keyed by
// protein position. Entries without a positive position are dropped.
func (c *VariantClient) FetchVariants(ctx context.Context, gene string) ([]lollipop.Variant, error) {
	gene = strings.TrimSpace(strings.ToUpper(gene))
	if gene == "" {
		return nil, fmt.Errorf("gene symbol cannot be empty")
	}

	var (
		resp *VariantResponse
		err  error
	)
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			c.logger.WithFields(logrus.Fields{"gene": gene, "attempt": attempt, "wait": wait}).WithError(err).Warn("Retrying variant API request")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err = c.queryGene(ctx, gene)
		if err == nil || !retryable(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants for %s: %w", gene, err)
	}

	variants := make([]lollipop.Variant, 0, len(resp.Variants))
	for _, v := range resp.Variants {
		if v.ProteinPosition <= 0 {
			continue
		}
		id := v.ID
		if id == "" {
			id = v.ProteinChange
		}
		if id == "" {
			id = fmt.Sprintf("%s:%d", gene, v.ProteinPosition)
		}
		variants = append(variants, lollipop.Variant{ID: id, Start: v.ProteinPosition})
	}
	c.logger.WithFields(logrus.Fields{"gene": gene, "variants": len(variants)}).Debug("Fetched variants")
	return variants, nil
}

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return !errors.Is(err, ErrGeneNotFound) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *VariantClient) queryGene(ctx context.Context, gene string) (*VariantResponse, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/genes/%s/variants", c.baseURL, url.PathEscape(gene))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "variant-lollipop-server/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", gene, ErrGeneNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result VariantResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
