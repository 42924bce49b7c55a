package lollipop

import (
	"math"
)

// Collision records an overlapping adjacent pair. Index is the midpoint
// between the pair's indices (i+0.5) and Gap the free space between them,
// negative when they overlap.
type Collision struct {
	Index float64 `json:"index"`
	Gap   float64 `json:"gap"`
}

// Pair returns the indices of the left and right node of the collision.
func (c Collision) Pair() (int, int) {
	left := int(math.Floor(c.Index))
	return left, left + 1
}

// CollisionOptions parameterizes detection and resolution.
type CollisionOptions struct {
	Width          float64
	Padding        float64
	ExplodedFactor float64
	MaxIterations  int
}

// DetectCollisions reports every adjacent pair closer than the padding.
// nodes must be ordered by view position.
func DetectCollisions(nodes []*Node, opts CollisionOptions) []Collision {
	var out []Collision
	for i := 0; i+1 < len(nodes); i++ {
		if gap := pairGap(nodes[i], nodes[i+1], opts.ExplodedFactor); gap < opts.Padding {
			out = append(out, Collision{Index: float64(i) + 0.5, Gap: gap})
		}
	}
	return out
}

func pairGap(left, right *Node, explodedFactor float64) float64 {
	rightEdge := left.X() + left.HalfSize(explodedFactor)
	leftEdge := right.X() - right.HalfSize(explodedFactor)
	return leftEdge - rightEdge
}

// MoveFromBoundaries pulls every node inside [0, Width]. It fails when a
// single node is wider than the canvas.
func MoveFromBoundaries(nodes []*Node, opts CollisionOptions) error {
	for _, n := range nodes {
		half := n.HalfSize(opts.ExplodedFactor)
		if 2*half > opts.Width {
			return &LayoutInfeasibleError{
				Stage:      StageCollision,
				Width:      opts.Width,
				NodeCount:  len(nodes),
				TotalWidth: 2 * half,
			}
		}
		if left := n.X() - half; left < 0 {
			n.Offset -= left
		}
		if right := n.X() + half; right > opts.Width {
			n.Offset -= right - opts.Width
		}
	}
	return nil
}

// ResolveCollisions nudges node offsets until no adjacent pair is closer than
// the padding. It returns the number of resolve steps taken.
func ResolveCollisions(nodes []*Node, opts CollisionOptions) (int, error) {
	if err := MoveFromBoundaries(nodes, opts); err != nil {
		return 0, err
	}
	window := stallWindow(len(nodes), opts.Width)
	bestOverlap, bestGap := math.Inf(1), math.Inf(-1)
	lastProgress := 0
	for iter := 0; ; iter++ {
		collisions := DetectCollisions(nodes, opts)
		if len(collisions) == 0 {
			return iter, nil
		}
		overlap, worst := overlapSum(collisions, opts.Padding), worstCollision(collisions).Gap
		if overlap < bestOverlap-progressEpsilon || worst > bestGap+progressEpsilon {
			bestOverlap = math.Min(bestOverlap, overlap)
			bestGap = math.Max(bestGap, worst)
			lastProgress = iter
		}
		stalled := iter-lastProgress >= window
		if stalled || iter >= opts.MaxIterations || !resolveWorst(nodes, collisions, opts) {
			return iter, &LayoutInfeasibleError{
				Stage:      StageCollision,
				Attempts:   iter,
				Width:      opts.Width,
				NodeCount:  len(nodes),
				TotalWidth: TotalWidth(nodes, opts.Padding),
			}
		}
	}
}

const (
	progressEpsilon = 1e-9
	minStallWindow  = 1000
)

// stallWindow is how many steps the resolver may go without shrinking the
// overlap or widening the worst gap. A single step only nudges one pair, so
// pushing slack through a crowded run takes on the order of n*width steps.
func stallWindow(n int, width float64) int {
	w := n * int(math.Ceil(width))
	if w < minStallWindow {
		return minStallWindow
	}
	return w
}

// overlapSum is the total shortfall below the padding across all collisions.
func overlapSum(collisions []Collision, padding float64) float64 {
	var sum float64
	for _, c := range collisions {
		sum += padding - c.Gap
	}
	return sum
}

// worstCollision returns the most negative gap, first occurrence on ties.
func worstCollision(collisions []Collision) Collision {
	worst := collisions[0]
	for _, c := range collisions[1:] {
		if c.Gap < worst.Gap {
			worst = c
		}
	}
	return worst
}

// resolveWorst moves the worst pair apart by at least one pixel. It returns
// false when neither node can move without leaving the canvas.
func resolveWorst(nodes []*Node, collisions []Collision, opts CollisionOptions) bool {
	li, ri := worstCollision(collisions).Pair()
	left, right := nodes[li], nodes[ri]

	leftRoom := left.X() - left.HalfSize(opts.ExplodedFactor)
	rightRoom := opts.Width - (right.X() + right.HalfSize(opts.ExplodedFactor))
	canMoveLeft := leftRoom-1 >= 0
	canMoveRight := rightRoom-1 >= 0

	switch {
	case canMoveLeft && canMoveRight:
		left.Offset--
		right.Offset++
	case canMoveRight:
		// left node is pinned to the left edge, the right one takes both steps
		right.Offset += math.Min(3, rightRoom)
	case canMoveLeft:
		left.Offset -= math.Min(3, leftRoom)
	default:
		return false
	}
	return true
}
