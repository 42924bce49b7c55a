package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrConfiguration    = "CONFIGURATION_ERROR"
	ErrLayoutInfeasible = "LAYOUT_INFEASIBLE"
	ErrDomain           = "DOMAIN_ERROR"
	ErrSessionNotFound  = "SESSION_NOT_FOUND"
	ErrNodeNotFound     = "NODE_NOT_FOUND"
	ErrExternalAPI      = "EXTERNAL_API_ERROR"
	ErrRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidation       = "VALIDATION_ERROR"
	ErrSessionLimit     = "SESSION_LIMIT_REACHED"
)

// ErrSessionMissing is returned by session lookups for unknown or expired ids.
var ErrSessionMissing = errors.New("session not found")

// ErrTooManySessions is returned when the session table is full.
var ErrTooManySessions = errors.New("session limit reached")

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ClassifyError maps an error to an API error code and HTTP status.
func ClassifyError(err error) (string, int) {
	var (
		cfgErr     *lollipop.ConfigurationError
		domainErr  *lollipop.DomainError
		validation *ValidationError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, statusForCode(apiErr.Code)
	case errors.Is(err, lollipop.ErrLayoutInfeasible):
		return ErrLayoutInfeasible, http.StatusUnprocessableEntity
	case errors.As(err, &cfgErr):
		return ErrConfiguration, http.StatusBadRequest
	case errors.As(err, &domainErr):
		return ErrDomain, http.StatusBadRequest
	case errors.As(err, &validation):
		return ErrValidation, http.StatusBadRequest
	case errors.Is(err, lollipop.ErrNodeNotFound):
		return ErrNodeNotFound, http.StatusNotFound
	case errors.Is(err, ErrSessionMissing):
		return ErrSessionNotFound, http.StatusNotFound
	case errors.Is(err, ErrTooManySessions):
		return ErrSessionLimit, http.StatusServiceUnavailable
	}
	return ErrInternalServer, http.StatusInternalServerError
}

func statusForCode(code string) int {
	switch code {
	case ErrInvalidInput, ErrValidation, ErrConfiguration, ErrDomain:
		return http.StatusBadRequest
	case ErrLayoutInfeasible:
		return http.StatusUnprocessableEntity
	case ErrSessionNotFound, ErrNodeNotFound:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrExternalAPI:
		return http.StatusBadGateway
	case ErrSessionLimit:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorResponse builds the API error body and status for err.
func ErrorResponse(err error, requestID string) (*APIError, int) {
	code, status := ClassifyError(err)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		out := *apiErr
		if out.RequestID == "" {
			out.RequestID = requestID
		}
		return &out, status
	}
	resp := NewAPIError(code, messageForCode(code), err.Error(), requestID)
	switch code {
	case ErrLayoutInfeasible:
		resp.Hint = lollipop.FallbackHint
	case ErrDomain:
		resp.Hint = lollipop.DomainHint
	}
	return resp, status
}

func messageForCode(code string) string {
	switch code {
	case ErrLayoutInfeasible:
		return "No layout solution at this container width for this variant density"
	case ErrConfiguration:
		return "Invalid track configuration"
	case ErrDomain:
		return "Degenerate coordinate domain"
	case ErrValidation:
		return "Request validation failed"
	case ErrNodeNotFound:
		return "Node not found in current layout"
	case ErrSessionNotFound:
		return "Session not found"
	case ErrSessionLimit:
		return "Too many active sessions"
	}
	return "Internal server error"
}
