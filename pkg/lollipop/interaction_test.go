package lollipop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, e *Engine, events ...Event) bool {
	t.Helper()
	changed := false
	for _, ev := range events {
		c, err := e.HandleEvent(ev)
		require.NoError(t, err)
		changed = changed || c
	}
	return changed
}

func down(x, y float64) Event { return Event{Kind: EventPointerDown, X: x, Y: y} }
func move(x, y float64) Event { return Event{Kind: EventPointerMove, X: x, Y: y} }
func up(x, y float64) Event { return Event{Kind: EventPointerUp, X: x, Y: y} }
func dblclick(x, y float64) Event { return Event{Kind: EventDoubleClick, X: x, Y: y} }

// zoomedEngine shows protein window [400, 500], pixel window [375, 500].
func zoomedEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	require.NoError(t, e.ZoomToProtein(Range{400, 500}))
	require.Equal(t, Range{375, 500}, e.ViewRange())
	return e
}

func TestHitTest(t *testing.T) {
	e := zoomedEngine(t)

	tests := []struct {
		name string
		x, y float64
		kind HitKind
	}{
		{"navigation background", 100, 10, HitNavBar},
		{"left handle", 376, 10, HitNavHandleLo},
		{"right handle", 497, 10, HitNavHandleHi},
		{"window body", 430, 10, HitNavWindow},
		{"navigation scale", 430, 30, HitNone},
		{"variant area", 500, 60, HitVariantArea},
		{"variants scale", 500, 150, HitNone},
		{"below canvas", 500, 400, HitNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, e.HitTest(tt.x, tt.y).Kind)
		})
	}
}

func TestHitTest_Markers(t *testing.T) {
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	cluster := e.Layout("variants").Node("v1-v8")
	require.NotNil(t, cluster)

	hit := e.HitTest(cluster.X(), 90)
	assert.Equal(t, HitNode, hit.Kind)
	assert.Equal(t, "variants", hit.Track)
	assert.Equal(t, "v1-v8", hit.NodeID)

	lone := e.Layout("variants").Node("v9")
	assert.Equal(t, "v9", e.HitTest(lone.X(), 90).NodeID)

	_, err := e.ExplodeCluster("v1-v8", "variants")
	require.NoError(t, err)
	exploded := e.Layout("variants").Node("v1-v8")
	child := exploded.Children[2]
	hit = e.HitTest(exploded.X()+child.DX, 90+child.DY)
	assert.Equal(t, HitFanChild, hit.Kind)
	assert.Equal(t, "v1-v8", hit.NodeID)
	assert.Equal(t, child.ID, hit.ChildID)
}

func TestHitTest_FanChildAboveTrack(t *testing.T) {
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	_, err := e.ExplodeCluster("v1-v8", "variants")
	require.NoError(t, err)

	exploded := e.Layout("variants").Node("v1-v8")
	top := exploded.Children[0]
	for _, c := range exploded.Children[1:] {
		if c.DY < top.DY {
			top = c
		}
	}
	// the variants track starts at y=40 and its marker heads sit at y=90
	y := 90 + top.DY
	require.Less(t, y, 40.0)

	hit := e.HitTest(exploded.X()+top.DX, y)
	assert.Equal(t, HitFanChild, hit.Kind)
	assert.Equal(t, "variants", hit.Track)
	assert.Equal(t, top.ID, hit.ChildID)

	// beside the child the point still falls on the navigation scale
	assert.Equal(t, HitNone, e.HitTest(exploded.X()+top.DX+40, y).Kind)
}

func TestInteraction_DragSelectsWindow(t *testing.T) {
	e := zoomedEngine(t)

	send(t, e, down(100, 10))
	assert.Equal(t, StatePanning, e.State())

	changed := send(t, e, move(200, 10))
	assert.True(t, changed)
	assert.Equal(t, Range{100, 200}, e.ViewRange())
	assert.Equal(t, Range{180, 260}, e.ViewProteinRange())

	// dragging back past the start point flips the selection
	send(t, e, move(50, 10))
	assert.Equal(t, Range{50, 100}, e.ViewRange())

	send(t, e, up(50, 10))
	assert.Equal(t, StateIdle, e.State())
}

func TestInteraction_ClickCentresWindow(t *testing.T) {
	e := zoomedEngine(t)

	changed := send(t, e, down(100, 10), up(100, 10))
	assert.True(t, changed)
	assert.Equal(t, Range{38, 163}, e.ViewRange())
	assert.Equal(t, StateIdle, e.State())
}

func TestInteraction_MoveWindow(t *testing.T) {
	e := zoomedEngine(t)

	send(t, e, down(430, 10))
	assert.Equal(t, StateRangeDragging, e.State())
	send(t, e, move(480, 10))
	assert.Equal(t, Range{425, 550}, e.ViewRange())

	// clamped to the canvas, width preserved
	send(t, e, move(1000, 10), up(1000, 10))
	assert.Equal(t, Range{875, 1000}, e.ViewRange())
	assert.Equal(t, StateIdle, e.State())
}

func TestInteraction_ResizeHandles(t *testing.T) {
	e := zoomedEngine(t)

	send(t, e, down(376, 10), move(300, 10), up(300, 10))
	assert.Equal(t, Range{299, 500}, e.ViewRange())

	send(t, e, down(499, 10), move(600, 10), up(600, 10))
	assert.Equal(t, Range{299, 601}, e.ViewRange())

	// the left handle cannot cross the right one
	send(t, e, down(300, 10), move(900, 10), up(900, 10))
	assert.Equal(t, Range{601 - e.minWindow(), 601}, e.ViewRange())
}

func TestInteraction_SmallMovesAreClicks(t *testing.T) {
	e := zoomedEngine(t)

	send(t, e, down(430, 10))
	changed := send(t, e, move(431, 10))
	assert.False(t, changed)
	assert.Equal(t, Range{375, 500}, e.ViewRange())
	send(t, e, up(431, 10))
	assert.Equal(t, Range{375, 500}, e.ViewRange())
}

func TestInteraction_VariantAreaPans(t *testing.T) {
	e := zoomedEngine(t)

	send(t, e, down(500, 60))
	assert.Equal(t, StateVariantAreaDragging, e.State())

	send(t, e, move(600, 60))
	// dragging right moves the window left by dx scaled to the window width
	assert.Equal(t, Range{363, 488}, e.ViewRange())

	send(t, e, up(600, 60))
	assert.Equal(t, StateIdle, e.State())
}

func TestInteraction_ClickExplodesAndCollapses(t *testing.T) {
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	cluster := e.Layout("variants").Node("v1-v8")

	changed := send(t, e, down(cluster.X(), 90), up(cluster.X(), 90))
	assert.True(t, changed)
	assert.Equal(t, StateClusterExploded, e.State())
	_, id, ok := e.ExplodedCluster()
	require.True(t, ok)
	assert.Equal(t, "v1-v8", id)

	// clicking the open cluster closes it
	exploded := e.Layout("variants").Node("v1-v8")
	send(t, e, down(exploded.X(), 90), up(exploded.X(), 90))
	assert.Equal(t, StateIdle, e.State())
	_, _, ok = e.ExplodedCluster()
	assert.False(t, ok)
}

func TestInteraction_ClickOnEmptyAreaCollapses(t *testing.T) {
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	_, err := e.ExplodeCluster("v1-v8", "variants")
	require.NoError(t, err)

	changed := send(t, e, down(500, 60), up(500, 60))
	assert.True(t, changed)
	assert.Equal(t, StateIdle, e.State())
	_, _, ok := e.ExplodedCluster()
	assert.False(t, ok)
}

func TestInteraction_ClickOnSingleVariantIsNoop(t *testing.T) {
	e := newTestEngine(t, nil, navTrack(), clusterTrack())
	lone := e.Layout("variants").Node("v9")

	changed := send(t, e, down(lone.X(), 90), up(lone.X(), 90))
	assert.False(t, changed)
	assert.Equal(t, StateIdle, e.State())
}

func TestInteraction_DoubleClickResets(t *testing.T) {
	e := zoomedEngine(t)

	changed := send(t, e, dblclick(100, 10))
	assert.True(t, changed)
	assert.Equal(t, Range{0, 1000}, e.ViewRange())
	assert.Equal(t, Range{100, 900}, e.ViewProteinRange())

	// double click outside the navigation bar does nothing
	require.NoError(t, e.ZoomToProtein(Range{400, 500}))
	changed = send(t, e, dblclick(500, 60))
	assert.False(t, changed)
	assert.Equal(t, Range{375, 500}, e.ViewRange())
}

func TestInteraction_MoveWithoutDown(t *testing.T) {
	e := zoomedEngine(t)
	assert.False(t, send(t, e, move(10, 10), up(10, 10)))
	assert.Equal(t, StateIdle, e.State())
}

func TestHandleEvent_UnknownKind(t *testing.T) {
	e := zoomedEngine(t)
	_, err := e.HandleEvent(Event{Kind: "wheel"})
	assert.Error(t, err)
}
