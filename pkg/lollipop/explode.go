package lollipop

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FanChild is one member of an exploded cluster, placed on a ring around the
// cluster's visual centre. DX and DY are relative to that centre.
type FanChild struct {
	ID  string  `json:"id"`
	Pos int     `json:"pos"`
	DX  float64 `json:"dx"`
	DY  float64 `json:"dy"`
	R   float64 `json:"r"`
}

// FanCapacity is how many circles of radius r fit without overlap on a ring
// of radius R-r: round(π / asin(r/(R-r))). A ring too small for two circles
// holds one.
func FanCapacity(r, R float64) int {
	ring := R - r
	if r <= 0 || ring <= 0 || r/ring > 1 {
		return 1
	}
	return int(roundHalfUp(math.Pi / math.Asin(r/ring)))
}

// FanOut places up to FanCapacity members evenly by angle, starting straight
// above the centre and going clockwise.
func FanOut(members []PreparedVariant, r, R float64) []FanChild {
	count := FanCapacity(r, R)
	if len(members) < count {
		count = len(members)
	}
	if count == 0 {
		return nil
	}
	ring := R - r
	step := 2 * math.Pi / float64(count)
	children := make([]FanChild, 0, count)
	for i := 0; i < count; i++ {
		angle := -math.Pi/2 + float64(i)*step
		p := r2.Scale(ring, r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)})
		if count == 1 {
			p = r2.Vec{}
		}
		children = append(children, FanChild{
			ID:  members[i].ID,
			Pos: members[i].Pos,
			DX:  p.X,
			DY:  p.Y,
			R:   r,
		})
	}
	return children
}

// childrenOverlap reports whether any two fanned children intersect.
func childrenOverlap(children []FanChild) bool {
	for i := range children {
		for j := i + 1; j < len(children); j++ {
			a := r2.Vec{X: children[i].DX, Y: children[i].DY}
			b := r2.Vec{X: children[j].DX, Y: children[j].DY}
			if r2.Norm(r2.Sub(a, b)) < children[i].R+children[j].R-1e-9 {
				return true
			}
		}
	}
	return false
}
