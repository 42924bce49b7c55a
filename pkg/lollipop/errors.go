package lollipop

import (
	"errors"
	"fmt"
)

// ErrLayoutInfeasible is matched by every *LayoutInfeasibleError via errors.Is.
var ErrLayoutInfeasible = errors.New("no layout solution at this container width for this variant density")

// ConfigurationError reports a malformed track or engine configuration.
type ConfigurationError struct {
	Track   string
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Track == "" {
		return fmt.Sprintf("configuration error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error in track '%s' field '%s': %s", e.Track, e.Field, e.Message)
}

// DomainError reports a degenerate coordinate transform.
type DomainError struct {
	Min     float64
	Max     float64
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s (domain [%g, %g])", e.Message, e.Min, e.Max)
}

// LayoutStage identifies which pass gave up.
type LayoutStage string

const (
	StageClustering LayoutStage = "clustering"
	StageCollision  LayoutStage = "collision"
)

// LayoutInfeasibleError is returned when no non-overlapping arrangement is
// found within the configured bounds. Callers should either widen the canvas
// or zoom in to reduce the displayed density.
type LayoutInfeasibleError struct {
	Stage      LayoutStage
	Attempts   int
	Width      float64
	NodeCount  int
	TotalWidth float64
}

// Error implements the error interface
func (e *LayoutInfeasibleError) Error() string {
	return fmt.Sprintf("layout infeasible during %s after %d attempts: %d nodes need %.1fpx on a %.1fpx canvas",
		e.Stage, e.Attempts, e.NodeCount, e.TotalWidth, e.Width)
}

// Is lets errors.Is match ErrLayoutInfeasible.
func (e *LayoutInfeasibleError) Is(target error) bool {
	return target == ErrLayoutInfeasible
}

// FallbackHint is the user-facing message hosts show instead of a frozen plot.
const FallbackHint = "zoom in to reduce variant density"

// DomainHint is shown when a coordinate window spans a single position.
const DomainHint = "choose a range that spans at least two positions"

func newConfigError(track, field, message string) *ConfigurationError {
	return &ConfigurationError{Track: track, Field: field, Message: message}
}
