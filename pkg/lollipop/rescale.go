package lollipop

import "math"

// Rescale linearly maps value from [oldMin, oldMax] onto [newMin, newMax] and
// rounds half up, so protein positions and pixels convert in both directions.
func Rescale(value, oldMin, oldMax, newMin, newMax float64) (int, error) {
	if oldMax == oldMin {
		return 0, &DomainError{Min: oldMin, Max: oldMax, Message: "cannot rescale from an empty domain"}
	}
	scaled := (value - oldMin) * (newMax - newMin) / (oldMax - oldMin)
	return int(newMin + roundHalfUp(scaled)), nil
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Range is a closed [Min, Max] interval either in pixels or protein positions.
type Range [2]int

// Min returns the lower bound.
func (r Range) Min() int { return r[0] }

// Max returns the upper bound.
func (r Range) Max() int { return r[1] }

// Width returns Max-Min.
func (r Range) Width() int { return r[1] - r[0] }

// Contains reports whether v lies inside the range, bounds included.
func (r Range) Contains(v int) bool { return v >= r[0] && v <= r[1] }

func (r Range) normalized() Range {
	if r[0] > r[1] {
		return Range{r[1], r[0]}
	}
	return r
}

// viewTransform keeps ViewRange and ViewProteinRange in sync.
type viewTransform struct {
	width        float64
	proteinStart int
	proteinEnd   int
}

// proteinRange converts a pixel window on the full canvas to protein coordinates.
func (t viewTransform) proteinRange(view Range) (Range, error) {
	lo, err := Rescale(float64(view[0]), 0, t.width, float64(t.proteinStart), float64(t.proteinEnd))
	if err != nil {
		return Range{}, err
	}
	hi, err := Rescale(float64(view[1]), 0, t.width, float64(t.proteinStart), float64(t.proteinEnd))
	if err != nil {
		return Range{}, err
	}
	return Range{lo, hi}, nil
}

// viewPos converts a protein position to a pixel in the zoomed window.
func (t viewTransform) viewPos(pos float64, proteinView Range) (int, error) {
	return Rescale(pos, float64(proteinView[0]), float64(proteinView[1]), 0, t.width)
}
