package lollipop

import "sort"

// PreparedVariant is a raw variant placed in the current view.
type PreparedVariant struct {
	ID      string  `json:"id"`
	Pos     int     `json:"pos"`
	Size    float64 `json:"size"`
	ViewPos int     `json:"viewPos"`
	Offset  float64 `json:"offset"`
}

// Preprocess strips raw variants down to their id and position.
func Preprocess(variants []Variant) []PreparedVariant {
	out := make([]PreparedVariant, 0, len(variants))
	for _, v := range variants {
		out = append(out, PreparedVariant{ID: v.ID, Pos: v.Start})
	}
	return out
}

// FilterVisible keeps the variants whose position lies inside the protein
// window, bounds included.
func FilterVisible(variants []PreparedVariant, proteinView Range) []PreparedVariant {
	out := make([]PreparedVariant, 0, len(variants))
	for _, v := range variants {
		if proteinView.Contains(v.Pos) {
			out = append(out, v)
		}
	}
	return out
}

// PrepareVariants sorts by position and attaches size, view position and a
// zero offset. Ties keep their input order.
func PrepareVariants(variants []PreparedVariant, size float64, t viewTransform, proteinView Range) ([]PreparedVariant, error) {
	out := make([]PreparedVariant, len(variants))
	copy(out, variants)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	for i := range out {
		vp, err := t.viewPos(float64(out[i].Pos), proteinView)
		if err != nil {
			return nil, err
		}
		out[i].Size = size
		out[i].ViewPos = vp
		out[i].Offset = 0
	}
	return out, nil
}
