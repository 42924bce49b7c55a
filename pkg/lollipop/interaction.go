package lollipop

import (
	"math"

	"github.com/sirupsen/logrus"
)

// State is the interaction state of the engine.
type State string

const (
	StateIdle                State = "idle"
	StatePanning             State = "panning"
	StateRangeDragging       State = "rangeDragging"
	StateVariantAreaDragging State = "variantAreaDragging"
	StateClusterExploded     State = "clusterExploded"
)

// EventKind names a pointer event forwarded by the host.
type EventKind string

const (
	EventPointerDown EventKind = "pointerdown"
	EventPointerMove EventKind = "pointermove"
	EventPointerUp   EventKind = "pointerup"
	EventDoubleClick EventKind = "dblclick"
)

// Event is a pointer event in canvas coordinates.
type Event struct {
	Kind EventKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

type dragMode int

const (
	dragNone dragMode = iota
	dragSelect
	dragResizeLo
	dragResizeHi
	dragMove
	dragPan
)

type dragState struct {
	mode      dragMode
	hit       Hit
	startX    float64
	startView Range
	moved     bool
}

// State returns the current interaction state.
func (e *Engine) State() State { return e.state }

func (e *Engine) restingState() State {
	if e.exploded.nodeID != "" {
		return StateClusterExploded
	}
	return StateIdle
}

// HitTest reports what lies under a canvas point. Markers win over track
// bands because fanned children may reach outside their own track.
func (e *Engine) HitTest(x, y float64) Hit {
	for _, ts := range e.tracks {
		if ts.track.Type != TrackVariants {
			continue
		}
		if m := ts.markers.lookup(x, y); m != nil {
			if m.childID != "" {
				return Hit{Kind: HitFanChild, Track: ts.track.Name, NodeID: m.nodeID, ChildID: m.childID}
			}
			return Hit{Kind: HitNode, Track: ts.track.Name, NodeID: m.nodeID}
		}
	}
	for _, ts := range e.tracks {
		localY := y - ts.offsetY
		if localY < 0 || localY >= ts.height {
			continue
		}
		switch ts.track.Type {
		case TrackPositionBar:
			return e.hitNavBar(ts, x, localY)
		case TrackVariants:
			if localY <= ts.track.View.VariantAreaHeight {
				return Hit{Kind: HitVariantArea, Track: ts.track.Name}
			}
		}
		return Hit{Kind: HitNone}
	}
	return Hit{Kind: HitNone}
}

func (e *Engine) hitNavBar(ts *trackState, x, localY float64) Hit {
	if localY > barHeight(ts.track) {
		return Hit{Kind: HitNone}
	}
	name := ts.track.Name
	lo, hi := float64(e.viewRange[0]), float64(e.viewRange[1])
	reach := e.cfg.HandleWidth/2 + e.cfg.ClickTolerance
	switch {
	case math.Abs(x-lo) <= reach && math.Abs(x-lo) <= math.Abs(x-hi):
		return Hit{Kind: HitNavHandleLo, Track: name}
	case math.Abs(x-hi) <= reach:
		return Hit{Kind: HitNavHandleHi, Track: name}
	case x > lo && x < hi:
		return Hit{Kind: HitNavWindow, Track: name}
	}
	return Hit{Kind: HitNavBar, Track: name}
}

// HandleEvent feeds a pointer event to the state machine. It reports whether
// the layout was recomputed. A failed re-render keeps the previous layout and
// view.
func (e *Engine) HandleEvent(ev Event) (bool, error) {
	switch ev.Kind {
	case EventPointerDown:
		e.pointerDown(ev)
		return false, nil
	case EventPointerMove:
		return e.pointerMove(ev)
	case EventPointerUp:
		return e.pointerUp(ev)
	case EventDoubleClick:
		return e.doubleClick(ev)
	}
	return false, newConfigError("", "event", "unknown event kind "+string(ev.Kind))
}

func (e *Engine) pointerDown(ev Event) {
	hit := e.HitTest(ev.X, ev.Y)
	d := dragState{hit: hit, startX: ev.X, startView: e.viewRange}
	switch hit.Kind {
	case HitNavBar:
		d.mode, e.state = dragSelect, StatePanning
	case HitNavHandleLo:
		d.mode, e.state = dragResizeLo, StateRangeDragging
	case HitNavHandleHi:
		d.mode, e.state = dragResizeHi, StateRangeDragging
	case HitNavWindow:
		d.mode, e.state = dragMove, StateRangeDragging
	case HitVariantArea, HitNode, HitFanChild:
		d.mode, e.state = dragPan, StateVariantAreaDragging
	default:
		e.drag = dragState{}
		return
	}
	e.drag = d
}

func (e *Engine) pointerMove(ev Event) (bool, error) {
	d := &e.drag
	if d.mode == dragNone {
		return false, nil
	}
	dx := ev.X - d.startX
	if !d.moved && math.Abs(dx) < e.cfg.ClickTolerance {
		return false, nil
	}
	d.moved = true

	target := e.dragTarget(d, ev.X, dx)
	if target == e.viewRange {
		return false, nil
	}
	if err := e.ResizeVariant(target); err != nil {
		return false, err
	}
	return true, nil
}

// dragTarget computes the pixel window a drag in progress asks for.
func (e *Engine) dragTarget(d *dragState, x, dx float64) Range {
	width := int(e.cfg.Width)
	start := d.startView
	w := start.Width()
	shift := int(roundHalfUp(dx))
	switch d.mode {
	case dragSelect:
		return Range{int(roundHalfUp(d.startX)), int(roundHalfUp(x))}.normalized()
	case dragResizeLo:
		lo := clampInt(start[0]+shift, 0, start[1]-e.minWindow())
		return Range{lo, start[1]}
	case dragResizeHi:
		hi := clampInt(start[1]+shift, start[0]+e.minWindow(), width)
		return Range{start[0], hi}
	case dragMove:
		lo := clampInt(start[0]+shift, 0, width-w)
		return Range{lo, lo + w}
	case dragPan:
		pan := int(roundHalfUp(-dx * float64(w) / e.cfg.Width))
		lo := clampInt(start[0]+pan, 0, width-w)
		return Range{lo, lo + w}
	}
	return e.viewRange
}

func (e *Engine) pointerUp(ev Event) (bool, error) {
	d := e.drag
	e.drag = dragState{}
	e.state = e.restingState()
	if d.mode == dragNone || d.moved {
		return false, nil
	}

	switch d.mode {
	case dragSelect:
		// a click on the bar centres the window there
		width := int(e.cfg.Width)
		w := e.viewRange.Width()
		lo := clampInt(int(roundHalfUp(ev.X-float64(w)/2)), 0, width-w)
		if lo == e.viewRange[0] {
			return false, nil
		}
		return e.afterClick(e.ResizeVariant(Range{lo, lo + w}))
	case dragPan:
		return e.variantClick(d.hit)
	}
	return false, nil
}

func (e *Engine) variantClick(hit Hit) (bool, error) {
	switch hit.Kind {
	case HitNode:
		ts, err := e.lookup(hit.Track)
		if err != nil {
			return false, err
		}
		if n := ts.layout.Node(hit.NodeID); n == nil || n.Type != NodeCluster {
			return false, nil
		}
		_, err = e.ExplodeCluster(hit.NodeID, hit.Track)
		return e.afterClick(err)
	case HitVariantArea:
		if e.exploded.nodeID == "" {
			return false, nil
		}
		_, err := e.CollapseCluster(e.exploded.track)
		return e.afterClick(err)
	}
	return false, nil
}

func (e *Engine) afterClick(err error) (bool, error) {
	e.state = e.restingState()
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) doubleClick(ev Event) (bool, error) {
	e.drag = dragState{}
	switch e.HitTest(ev.X, ev.Y).Kind {
	case HitNavBar, HitNavWindow, HitNavHandleLo, HitNavHandleHi:
	default:
		e.state = e.restingState()
		return false, nil
	}
	e.logger.WithFields(logrus.Fields{"x": ev.X, "y": ev.Y}).Debug("Resetting to full view")
	return e.afterClick(e.Reset())
}
