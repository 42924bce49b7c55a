package lollipop

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// HitKind tells what a pointer landed on.
type HitKind string

const (
	HitNone        HitKind = "none"
	HitNavWindow   HitKind = "navWindow"
	HitNavHandleLo HitKind = "navHandleLeft"
	HitNavHandleHi HitKind = "navHandleRight"
	HitNavBar      HitKind = "navBar"
	HitVariantArea HitKind = "variantArea"
	HitNode        HitKind = "node"
	HitFanChild    HitKind = "fanChild"
)

// Hit is the result of a hit test.
type Hit struct {
	Kind    HitKind
	Track   string
	NodeID  string
	ChildID string
}

// markerTarget is a circle registered in the spatial index.
type markerTarget struct {
	nodeID  string
	childID string
	cx, cy  float64
	r       float64
	order   int
}

func (m *markerTarget) Bounds() rtreego.Rect {
	r, err := rtreego.NewRect(rtreego.Point{m.cx - m.r, m.cy - m.r}, []float64{2 * m.r, 2 * m.r})
	if err != nil {
		// zero radius markers still need a valid box
		return rtreego.Point{m.cx, m.cy}.ToRect(0.5)
	}
	return r
}

func (m *markerTarget) contains(x, y float64) bool {
	return math.Hypot(x-m.cx, y-m.cy) <= m.r
}

// markerIndex is an R-tree over the marker heads of one variants track.
type markerIndex struct {
	tree  *rtreego.Rtree
	count int
}

func newMarkerIndex() *markerIndex {
	return &markerIndex{tree: rtreego.NewTree(2, 4, 16)}
}

func (idx *markerIndex) add(t *markerTarget) {
	t.order = idx.count
	idx.count++
	idx.tree.Insert(t)
}

// lookup returns the last inserted circle containing the point, so fanned
// children drawn over their cluster win.
func (idx *markerIndex) lookup(x, y float64) *markerTarget {
	if idx == nil || idx.count == 0 {
		return nil
	}
	var best *markerTarget
	for _, s := range idx.tree.SearchIntersect(rtreego.Point{x, y}.ToRect(0.5)) {
		t := s.(*markerTarget)
		if !t.contains(x, y) {
			continue
		}
		if best == nil || t.order > best.order {
			best = t
		}
	}
	return best
}
