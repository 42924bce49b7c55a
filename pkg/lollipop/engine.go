package lollipop

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// ErrNodeNotFound is returned when a node id is not part of the current layout.
var ErrNodeNotFound = errors.New("node not found in current layout")

// Layout is the computed state of one track for the current view.
type Layout struct {
	Track            string    `json:"track"`
	Type             TrackType `json:"type"`
	Nodes            []*Node   `json:"nodes"`
	ViewRange        Range     `json:"viewRange"`
	ViewProteinRange Range     `json:"viewProteinRange"`
	ClusterFactor    float64   `json:"clusterFactor"`
	ClusterAttempts  int       `json:"clusterAttempts"`
	Iterations       int       `json:"iterations"`
	VisibleVariants  int       `json:"visibleVariants"`
}

// Node returns the node with the given id, or nil.
func (l *Layout) Node(id string) *Node {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

type trackState struct {
	track   *Track
	offsetY float64
	height  float64
	index   *VariantIndex
	layout  *Layout
	markers *markerIndex
}

type viewState struct {
	view    Range
	protein Range
}

type explodedRef struct {
	track  string
	nodeID string
}

// Engine lays out variant markers along a protein axis and tracks the
// interactive view. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	surface Surface
	logger  *logrus.Logger

	tracks []*trackState
	byName map[string]*trackState

	proteinStart int
	proteinEnd   int

	viewRange        Range
	viewProteinRange Range
	exploded         explodedRef

	state State
	drag  dragState
}

// New creates an engine drawing onto mount. Tracks are stacked top to bottom
// in the given order. Canvas measurements are taken once here; call Resize
// when the host container changes size.
func New(mount Surface, tracks []*Track, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     DefaultConfig(),
		surface: mount,
		logger:  logrus.New(),
		byName:  make(map[string]*trackState),
		state:   StateIdle,
	}
	if e.surface == nil {
		e.surface = NopSurface{}
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, newConfigError("", "tracks", "at least one track is required")
	}

	var y float64
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.byName[t.Name]; dup {
			return nil, newConfigError(t.Name, "name", "duplicate track name")
		}
		ts := &trackState{track: t, offsetY: y, height: trackHeight(t)}
		y += ts.height
		e.tracks = append(e.tracks, ts)
		e.byName[t.Name] = ts
	}

	if err := e.loadVariants(); err != nil {
		return nil, err
	}
	e.resetView()
	return e, nil
}

func trackHeight(t *Track) float64 {
	if t.Type == TrackPositionBar {
		bar := t.View.PositionBarHeight
		if bar <= 0 {
			bar = t.View.Height
		}
		return bar + t.View.ScaleHeight
	}
	return t.View.VariantAreaHeight + t.View.ScaleHeight
}

// loadVariants rebuilds the position indexes and the protein domain.
func (e *Engine) loadVariants() error {
	found := false
	for _, ts := range e.tracks {
		if ts.track.Type != TrackVariants {
			continue
		}
		idx, err := NewVariantIndex(Preprocess(ts.track.Variants))
		if err != nil {
			return fmt.Errorf("failed to index variants of track %s: %w", ts.track.Name, err)
		}
		ts.index = idx
		if idx.Len() == 0 {
			continue
		}
		lo, hi, err := ProteinBoundaries(ts.track)
		if err != nil {
			return err
		}
		if !found || lo < e.proteinStart {
			e.proteinStart = lo
		}
		if !found || hi > e.proteinEnd {
			e.proteinEnd = hi
		}
		found = true
	}
	if !found {
		return newConfigError("", "variants", "no variants in any variants track")
	}
	if e.proteinStart == e.proteinEnd {
		// all variants share one position; give the axis one residue either side
		e.proteinStart--
		e.proteinEnd++
	}
	e.logger.WithFields(logrus.Fields{
		"protein_start": e.proteinStart,
		"protein_end":   e.proteinEnd,
	}).Debug("Protein boundaries initialized")
	return nil
}

func (e *Engine) resetView() {
	e.viewRange = Range{0, int(e.cfg.Width)}
	e.viewProteinRange = Range{e.proteinStart, e.proteinEnd}
}

func (e *Engine) transform() viewTransform {
	return viewTransform{width: e.cfg.Width, proteinStart: e.proteinStart, proteinEnd: e.proteinEnd}
}

func (e *Engine) lookup(name string) (*trackState, error) {
	ts, ok := e.byName[name]
	if !ok {
		return nil, newConfigError(name, "track", "unknown track")
	}
	return ts, nil
}

// minWindow keeps the protein window at least one position wide.
func (e *Engine) minWindow() int {
	span := e.proteinEnd - e.proteinStart
	if span <= 0 {
		return 1
	}
	w := int(math.Ceil(e.cfg.Width / float64(span)))
	if w < 1 {
		w = 1
	}
	return w
}

// resolveView clamps a pixel window to the canvas and derives its protein window.
func (e *Engine) resolveView(view Range) (viewState, error) {
	view = view.normalized()
	width := int(e.cfg.Width)
	lo, hi := clampInt(view[0], 0, width), clampInt(view[1], 0, width)
	if minW := e.minWindow(); hi-lo < minW {
		hi = lo + minW
		if hi > width {
			hi = width
			lo = clampInt(width-minW, 0, width)
		}
	}
	protein, err := e.transform().proteinRange(Range{lo, hi})
	if err != nil {
		return viewState{}, err
	}
	return viewState{view: Range{lo, hi}, protein: protein}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) currentView() viewState {
	return viewState{view: e.viewRange, protein: e.viewProteinRange}
}

// computeLayout runs filter, prepare, cluster and collision resolution for a
// track without touching engine state.
func (e *Engine) computeLayout(ts *trackState, vs viewState, ex explodedRef) (*Layout, error) {
	layout := &Layout{
		Track:            ts.track.Name,
		Type:             ts.track.Type,
		Nodes:            []*Node{},
		ViewRange:        vs.view,
		ViewProteinRange: vs.protein,
	}
	if ts.track.Type != TrackVariants || ts.index == nil || ts.index.Len() == 0 {
		return layout, nil
	}

	t := e.transform()
	visible := ts.index.Visible(vs.protein)
	prepared, err := PrepareVariants(visible, ts.track.View.CircleSize, t, vs.protein)
	if err != nil {
		return nil, err
	}
	layout.VisibleVariants = len(prepared)

	clustered, err := Cluster(prepared, ClusterOptions{
		MarkerSize:    ts.track.View.CircleSize,
		Factor:        e.cfg.ClusterFactor,
		FactorStep:    e.cfg.ClusterFactorStep,
		MaxRetries:    e.cfg.MaxClusterRetries,
		Padding:       e.cfg.NodePadding,
		Width:         e.cfg.Width,
		MaxSizeFactor: e.cfg.MaxClusterSizeFactor,
	}, func(pos float64) (int, error) {
		return t.viewPos(pos, vs.protein)
	})
	if err != nil {
		return nil, err
	}
	if clustered.Attempts > 1 {
		e.logger.WithFields(logrus.Fields{
			"track":    ts.track.Name,
			"attempts": clustered.Attempts,
			"factor":   clustered.Factor,
		}).Debug("Clustering coarsened to fit canvas")
	}

	for _, n := range clustered.Nodes {
		if n.Type != NodeCluster || ex.track != ts.track.Name || ex.nodeID != n.ID {
			continue
		}
		n.Exploded = true
		n.Children = FanOut(n.Variants, ts.track.View.CircleSize/2, n.Size*e.cfg.ExplodedFactor)
		if childrenOverlap(n.Children) {
			e.logger.WithField("cluster", n.ID).Debug("Fanned children touch after rounding")
		}
	}

	iterations, err := ResolveCollisions(clustered.Nodes, CollisionOptions{
		Width:          e.cfg.Width,
		Padding:        e.cfg.NodePadding,
		ExplodedFactor: e.cfg.ExplodedFactor,
		MaxIterations:  e.cfg.MaxResolveIterations,
	})
	if err != nil {
		return nil, err
	}

	layout.Nodes = clustered.Nodes
	layout.ClusterFactor = clustered.Factor
	layout.ClusterAttempts = clustered.Attempts
	layout.Iterations = iterations
	return layout, nil
}

// renderAll lays out every track for the given view and commits only when
// all of them succeed.
func (e *Engine) renderAll(vs viewState, ex explodedRef, redrawTicks bool) error {
	layouts := make([]*Layout, len(e.tracks))
	for i, ts := range e.tracks {
		l, err := e.computeLayout(ts, vs, ex)
		if err != nil {
			e.logLayoutError(ts.track.Name, vs, err)
			return err
		}
		layouts[i] = l
	}
	e.commit(vs, ex, layouts, redrawTicks)
	return nil
}

func (e *Engine) commit(vs viewState, ex explodedRef, layouts []*Layout, redrawTicks bool) {
	e.viewRange = vs.view
	e.viewProteinRange = vs.protein

	e.exploded = ex
	for i, ts := range e.tracks {
		if layouts[i] == nil {
			continue
		}
		ts.layout = layouts[i]
		if ex.nodeID == "" || ex.track != ts.track.Name {
			continue
		}
		// the cluster may have been dissolved by a zoom
		if n := ts.layout.Node(ex.nodeID); n == nil || !n.Exploded {
			e.exploded = explodedRef{}
		}
	}
	for i, ts := range e.tracks {
		if layouts[i] == nil {
			continue
		}
		e.indexMarkers(ts)
		e.draw(ts, redrawTicks)
	}
}

func (e *Engine) logLayoutError(track string, vs viewState, err error) {
	entry := e.logger.WithError(err).WithFields(logrus.Fields{
		"track":              track,
		"view_range":         vs.view,
		"view_protein_range": vs.protein,
	})
	if errors.Is(err, ErrLayoutInfeasible) {
		entry.Warn("No layout solution for current view")
		return
	}
	entry.Error("Layout failed")
}

// Render lays out and draws a track. A non-nil viewRange moves the view
// first, which re-lays out every track since they share the view.
func (e *Engine) Render(track string, viewRange *Range, redrawTicks bool) (*Layout, error) {
	ts, err := e.lookup(track)
	if err != nil {
		return nil, err
	}

	if viewRange != nil {
		vs, err := e.resolveView(*viewRange)
		if err != nil {
			return nil, err
		}
		if vs != e.currentView() || ts.layout == nil {
			if err := e.renderAll(vs, e.exploded, redrawTicks); err != nil {
				return nil, err
			}
			return ts.layout, nil
		}
	}

	vs := e.currentView()
	layouts := make([]*Layout, len(e.tracks))
	for i, other := range e.tracks {
		if other != ts {
			continue
		}
		l, err := e.computeLayout(ts, vs, e.exploded)
		if err != nil {
			e.logLayoutError(track, vs, err)
			return nil, err
		}
		layouts[i] = l
	}
	e.commit(vs, e.exploded, layouts, redrawTicks)
	return ts.layout, nil
}

// RenderAll lays out and draws every track at the current view.
func (e *Engine) RenderAll(redrawTicks bool) error {
	return e.renderAll(e.currentView(), e.exploded, redrawTicks)
}

// ResizeVariant moves the view to a new pixel window on the navigation bar
// and re-renders.
func (e *Engine) ResizeVariant(viewRange Range) error {
	vs, err := e.resolveView(viewRange)
	if err != nil {
		return err
	}
	return e.renderAll(vs, e.exploded, true)
}

// ZoomToProtein moves the view to cover a protein window.
func (e *Engine) ZoomToProtein(protein Range) error {
	protein = protein.normalized()
	start, end := float64(e.proteinStart), float64(e.proteinEnd)
	lo, err := Rescale(float64(protein[0]), start, end, 0, e.cfg.Width)
	if err != nil {
		return err
	}
	hi, err := Rescale(float64(protein[1]), start, end, 0, e.cfg.Width)
	if err != nil {
		return err
	}
	return e.ResizeVariant(Range{lo, hi})
}

// Reset returns to the full, unzoomed view.
func (e *Engine) Reset() error {
	return e.ResizeVariant(Range{0, int(e.cfg.Width)})
}

// Resize is the host's hook for container size changes. The view window is
// scaled to the new width.
func (e *Engine) Resize(width float64) error {
	candidate := e.cfg
	candidate.Width = width
	if err := candidate.Validate(); err != nil {
		return err
	}
	oldWidth, oldView := e.cfg.Width, e.viewRange
	lo, err := Rescale(float64(oldView[0]), 0, oldWidth, 0, width)
	if err != nil {
		return err
	}
	hi, err := Rescale(float64(oldView[1]), 0, oldWidth, 0, width)
	if err != nil {
		return err
	}

	e.cfg.Width = width
	vs, err := e.resolveView(Range{lo, hi})
	if err == nil {
		err = e.renderAll(vs, e.exploded, true)
	}
	if err != nil {
		e.cfg.Width = oldWidth
		return err
	}
	e.logger.WithFields(logrus.Fields{"old_width": oldWidth, "width": width}).Debug("Canvas resized")
	return nil
}

// SetVariants replaces a track's variants, recomputes the protein domain and
// resets to the full view.
func (e *Engine) SetVariants(track string, variants []Variant) error {
	ts, err := e.lookup(track)
	if err != nil {
		return err
	}
	if ts.track.Type != TrackVariants {
		return newConfigError(track, "type", "variants can only be set on a variants track")
	}
	candidate := *ts.track
	candidate.Variants = variants
	if err := candidate.Validate(); err != nil {
		return err
	}

	previous := ts.track.Variants
	prevStart, prevEnd := e.proteinStart, e.proteinEnd
	ts.track.Variants = variants
	if err := e.loadVariants(); err != nil {
		ts.track.Variants = previous
		e.proteinStart, e.proteinEnd = prevStart, prevEnd
		if rerr := e.loadVariants(); rerr != nil {
			e.logger.WithError(rerr).Error("Failed to restore previous variants")
		}
		return err
	}
	e.exploded = explodedRef{}
	e.resetView()
	return e.RenderAll(true)
}

// ExplodeCluster fans out the members of a cluster. At most one cluster is
// open at a time; exploding the open cluster again collapses it.
func (e *Engine) ExplodeCluster(nodeID, track string) (*Layout, error) {
	ts, err := e.lookup(track)
	if err != nil {
		return nil, err
	}
	if ts.track.Type != TrackVariants {
		return nil, newConfigError(track, "type", "only variants tracks have clusters")
	}
	if ts.layout == nil {
		if _, err := e.Render(track, nil, false); err != nil {
			return nil, err
		}
	}
	node := ts.layout.Node(nodeID)
	if node == nil {
		return nil, fmt.Errorf("cluster %s in track %s: %w", nodeID, track, ErrNodeNotFound)
	}
	if node.Type != NodeCluster {
		return nil, newConfigError(track, "node", fmt.Sprintf("node %s is a single variant, not a cluster", nodeID))
	}
	if e.exploded.track == track && e.exploded.nodeID == nodeID {
		return e.CollapseCluster(track)
	}

	if err := e.renderAll(e.currentView(), explodedRef{track: track, nodeID: nodeID}, false); err != nil {
		return nil, err
	}
	e.state = e.restingState()
	return ts.layout, nil
}

// CollapseCluster closes the open cluster, if any, and re-renders.
func (e *Engine) CollapseCluster(track string) (*Layout, error) {
	ts, err := e.lookup(track)
	if err != nil {
		return nil, err
	}
	if err := e.renderAll(e.currentView(), explodedRef{}, false); err != nil {
		return nil, err
	}
	e.state = e.restingState()
	return ts.layout, nil
}

// Layout returns the last committed layout of a track, or nil before the
// first render.
func (e *Engine) Layout(track string) *Layout {
	ts, ok := e.byName[track]
	if !ok {
		return nil
	}
	return ts.layout
}

// ViewRange returns the visible pixel window on the navigation bar.
func (e *Engine) ViewRange() Range { return e.viewRange }

// ViewProteinRange returns the visible protein window.
func (e *Engine) ViewProteinRange() Range { return e.viewProteinRange }

// ProteinDomain returns the full protein extent of the loaded variants.
func (e *Engine) ProteinDomain() Range { return Range{e.proteinStart, e.proteinEnd} }

// Width returns the canvas width.
func (e *Engine) Width() float64 { return e.cfg.Width }

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// ExplodedCluster returns the track and id of the open cluster.
func (e *Engine) ExplodedCluster() (string, string, bool) {
	return e.exploded.track, e.exploded.nodeID, e.exploded.nodeID != ""
}

// TrackHeight returns the computed height of a track.
func (e *Engine) TrackHeight(track string) float64 {
	if ts, ok := e.byName[track]; ok {
		return ts.height
	}
	return 0
}

// Height returns the stacked height of all tracks.
func (e *Engine) Height() float64 {
	var h float64
	for _, ts := range e.tracks {
		h += ts.height
	}
	return h
}

// Tracks returns the track names top to bottom.
func (e *Engine) Tracks() []string {
	names := make([]string, 0, len(e.tracks))
	for _, ts := range e.tracks {
		names = append(names, ts.track.Name)
	}
	return names
}
