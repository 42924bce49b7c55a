package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(ErrInvalidInput, "Invalid track file", "line 3: unknown key", "req-123")

	assert.Equal(t, ErrInvalidInput, err.Code)
	assert.Equal(t, "req-123", err.RequestID)
	assert.WithinDuration(t, time.Now(), err.Timestamp, time.Minute)
	assert.Equal(t, "INVALID_INPUT: Invalid track file", err.Error())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("width", "width cannot be negative", -1.0)
	assert.Equal(t, "validation error for field 'width': width cannot be negative", err.Error())
	assert.Equal(t, -1.0, err.Value)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{
			name:   "infeasible layout",
			err:    fmt.Errorf("render: %w", &lollipop.LayoutInfeasibleError{Stage: lollipop.StageCollision}),
			code:   ErrLayoutInfeasible,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "configuration",
			err:    &lollipop.ConfigurationError{Track: "variants", Field: "view", Message: "missing view block"},
			code:   ErrConfiguration,
			status: http.StatusBadRequest,
		},
		{
			name:   "degenerate domain",
			err:    &lollipop.DomainError{Min: 5, Max: 5, Message: "empty domain"},
			code:   ErrDomain,
			status: http.StatusBadRequest,
		},
		{
			name:   "validation",
			err:    NewValidationError("tracks", "at least one track is required", nil),
			code:   ErrValidation,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown node",
			err:    fmt.Errorf("cluster x: %w", lollipop.ErrNodeNotFound),
			code:   ErrNodeNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "unknown session",
			err:    fmt.Errorf("session abc: %w", ErrSessionMissing),
			code:   ErrSessionNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "session table full",
			err:    ErrTooManySessions,
			code:   ErrSessionLimit,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "coded upstream error",
			err:    NewAPIError(ErrExternalAPI, "variant source unavailable", "", ""),
			code:   ErrExternalAPI,
			status: http.StatusBadGateway,
		},
		{
			name:   "anything else",
			err:    errors.New("boom"),
			code:   ErrInternalServer,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := ClassifyError(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestErrorResponse(t *testing.T) {
	t.Run("infeasible layout carries the fallback hint", func(t *testing.T) {
		resp, status := ErrorResponse(&lollipop.LayoutInfeasibleError{Stage: lollipop.StageClustering}, "req-1")
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, ErrLayoutInfeasible, resp.Code)
		assert.Equal(t, lollipop.FallbackHint, resp.Hint)
		assert.Equal(t, "req-1", resp.RequestID)
		assert.Contains(t, resp.Details, "clustering")
	})

	t.Run("degenerate domain carries a range hint", func(t *testing.T) {
		resp, status := ErrorResponse(&lollipop.DomainError{Min: 5, Max: 5, Message: "empty domain"}, "req-3")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ErrDomain, resp.Code)
		assert.Equal(t, lollipop.DomainHint, resp.Hint)
	})

	t.Run("api errors keep their own fields", func(t *testing.T) {
		orig := NewAPIError(ErrRateLimit, "slow down", "", "")
		resp, status := ErrorResponse(orig, "req-2")
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "slow down", resp.Message)
		assert.Equal(t, "req-2", resp.RequestID)
		assert.Empty(t, orig.RequestID)
	})
}

func TestLayoutRequestValidate(t *testing.T) {
	track := &lollipop.Track{Name: "variants", Type: lollipop.TrackVariants}

	tests := []struct {
		name  string
		req   *LayoutRequest
		field string
	}{
		{"nil request", nil, "request"},
		{"no tracks", &LayoutRequest{}, "tracks"},
		{"negative width", &LayoutRequest{Tracks: []*lollipop.Track{track}, Width: -5}, "width"},
		{"width overflows pixels", &LayoutRequest{Tracks: []*lollipop.Track{track}, Width: 1e19}, "width"},
		{
			"both ranges",
			&LayoutRequest{Tracks: []*lollipop.Track{track}, ViewRange: &lollipop.Range{0, 10}, ProteinRange: &lollipop.Range{1, 2}},
			"view_range",
		},
		{"explode without node", &LayoutRequest{Tracks: []*lollipop.Track{track}, Explode: &NodeRef{Track: "variants"}}, "explode"},
		{"source without gene", &LayoutRequest{Source: &SourceRef{Track: "variants"}}, "source"},
		{"valid", &LayoutRequest{Tracks: []*lollipop.Track{track}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
