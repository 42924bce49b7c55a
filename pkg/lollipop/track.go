package lollipop

import "fmt"

// TrackType names the visual lane a Track occupies.
type TrackType string

const (
	TrackPositionBar TrackType = "positionBar"
	TrackVariants    TrackType = "variants"
)

// TrackView holds the layout parameters of a track.
type TrackView struct {
	Height            float64 `json:"height" yaml:"height"`
	ScaleHeight       float64 `json:"scaleHeight" yaml:"scaleHeight"`
	VariantAreaHeight float64 `json:"variantAreaHeight" yaml:"variantAreaHeight"`
	CircleSize        float64 `json:"circleSize" yaml:"circleSize"`
	PositionBarHeight float64 `json:"positionBarHeight" yaml:"positionBarHeight"`
}

// Subsection annotates a gene region on the position bar.
type Subsection struct {
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
	Color string `json:"color" yaml:"color"`
}

// Variant is a raw input marker. Only the start position is used.
type Variant struct {
	ID    string `json:"id" yaml:"id"`
	Start int    `json:"start" yaml:"start"`
}

// Track is a named visual lane. View is a pointer so that a missing view
// block can be told apart from a zero one.
type Track struct {
	Name        string                `json:"name" yaml:"name"`
	Type        TrackType             `json:"type" yaml:"type"`
	View        *TrackView            `json:"view" yaml:"view"`
	Subsections map[string]Subsection `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	Variants    []Variant             `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// Validate fails fast on malformed track definitions.
func (t *Track) Validate() error {
	if t == nil {
		return newConfigError("", "track", "track is nil")
	}
	if t.Name == "" {
		return newConfigError("", "name", "track name is required")
	}
	if t.View == nil {
		return newConfigError(t.Name, "view", "missing view block")
	}
	switch t.Type {
	case TrackPositionBar:
		if t.View.PositionBarHeight <= 0 && t.View.Height <= 0 {
			return newConfigError(t.Name, "view.positionBarHeight", "position bar needs a positive height")
		}
		for gene, s := range t.Subsections {
			if s.End < s.Start {
				return newConfigError(t.Name, "subsections."+gene, fmt.Sprintf("end %d before start %d", s.End, s.Start))
			}
		}
	case TrackVariants:
		if t.View.CircleSize <= 0 {
			return newConfigError(t.Name, "view.circleSize", "circle size must be positive")
		}
		if t.View.VariantAreaHeight <= 0 {
			return newConfigError(t.Name, "view.variantAreaHeight", "variant area height must be positive")
		}
		seen := make(map[string]struct{}, len(t.Variants))
		for i, v := range t.Variants {
			if v.ID == "" {
				return newConfigError(t.Name, fmt.Sprintf("variants[%d].id", i), "variant id is required")
			}
			if _, dup := seen[v.ID]; dup {
				return newConfigError(t.Name, fmt.Sprintf("variants[%d].id", i), "duplicate variant id "+v.ID)
			}
			seen[v.ID] = struct{}{}
		}
	default:
		return newConfigError(t.Name, "type", fmt.Sprintf("unknown track type %q", t.Type))
	}
	return nil
}

// ProteinBoundaries returns the smallest and largest variant start of a track.
func ProteinBoundaries(t *Track) (int, int, error) {
	if len(t.Variants) == 0 {
		return 0, 0, newConfigError(t.Name, "variants", "cannot compute protein boundaries without variants")
	}
	lo, hi := t.Variants[0].Start, t.Variants[0].Start
	for _, v := range t.Variants[1:] {
		if v.Start < lo {
			lo = v.Start
		}
		if v.Start > hi {
			hi = v.Start
		}
	}
	return lo, hi, nil
}
