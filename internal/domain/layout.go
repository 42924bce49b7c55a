package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// LayoutRequest asks for the layout of a set of tracks at one view
type LayoutRequest struct {
	Tracks       []*lollipop.Track `json:"tracks" yaml:"tracks"`
	Width        float64           `json:"width,omitempty" yaml:"width,omitempty"`
	ViewRange    *lollipop.Range   `json:"view_range,omitempty" yaml:"view_range,omitempty"`
	ProteinRange *lollipop.Range   `json:"protein_range,omitempty" yaml:"protein_range,omitempty"`
	Explode      *NodeRef          `json:"explode,omitempty" yaml:"explode,omitempty"`
	Source       *SourceRef        `json:"source,omitempty" yaml:"source,omitempty"`
}

// NodeRef names a node of a track
type NodeRef struct {
	Track  string `json:"track" yaml:"track"`
	NodeID string `json:"node_id" yaml:"node_id"`
}

// SourceRef fills a variants track from the remote variant source
type SourceRef struct {
	Gene  string `json:"gene" yaml:"gene"`
	Track string `json:"track" yaml:"track"`
}

// LayoutResult is the computed state of every track of a request or session
type LayoutResult struct {
	Layouts          []*lollipop.Layout `json:"layouts"`
	ViewRange        lollipop.Range     `json:"view_range"`
	ViewProteinRange lollipop.Range     `json:"view_protein_range"`
	ProteinDomain    lollipop.Range     `json:"protein_domain"`
	Width            float64            `json:"width"`
	Height           float64            `json:"height"`
	State            lollipop.State     `json:"state"`
	Exploded         *NodeRef           `json:"exploded,omitempty"`
	Cached           bool               `json:"cached"`
}

// SessionInfo describes a live interactive session
type SessionInfo struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	LastAccess time.Time     `json:"last_access"`
	Result     *LayoutResult `json:"result"`
}

// Validate performs request level checks. Track level checks are left to the
// engine so its ConfigurationError reaches the caller unchanged.
func (r *LayoutRequest) Validate() error {
	if r == nil {
		return NewValidationError("request", "request body is required", nil)
	}
	if len(r.Tracks) == 0 && r.Source == nil {
		return NewValidationError("tracks", "at least one track is required", nil)
	}
	if r.Width < 0 {
		return NewValidationError("width", "width cannot be negative", r.Width)
	}
	if r.Width > lollipop.MaxWidth || math.IsNaN(r.Width) {
		return NewValidationError("width", fmt.Sprintf("width cannot exceed %d", lollipop.MaxWidth), r.Width)
	}
	if r.ViewRange != nil && r.ProteinRange != nil {
		return NewValidationError("view_range", "view_range and protein_range are mutually exclusive", nil)
	}
	if r.Explode != nil && (r.Explode.Track == "" || r.Explode.NodeID == "") {
		return NewValidationError("explode", "track and node_id are required", r.Explode)
	}
	if r.Source != nil && (r.Source.Gene == "" || r.Source.Track == "") {
		return NewValidationError("source", "gene and track are required", r.Source)
	}
	return nil
}
