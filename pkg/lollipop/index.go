package lollipop

import (
	"github.com/biogo/store/interval"
)

// indexedVariant stores a point variant as the half-open interval [pos, pos+1).
type indexedVariant struct {
	id      uintptr
	variant PreparedVariant
}

func (v *indexedVariant) Range() interval.IntRange {
	return interval.IntRange{Start: v.variant.Pos, End: v.variant.Pos + 1}
}

func (v *indexedVariant) Overlap(b interval.IntRange) bool {
	return b.End > v.variant.Pos && b.Start < v.variant.Pos+1
}

func (v *indexedVariant) ID() uintptr { return v.id }

// windowQuery matches intervals that touch the closed protein window.
type windowQuery Range

func (q windowQuery) Overlap(b interval.IntRange) bool {
	return b.End > q[0] && b.Start <= q[1]
}

// VariantIndex answers visible-window queries over a fixed variant set. It is
// rebuilt only when the variant set changes, not on pan or zoom.
type VariantIndex struct {
	tree  interval.IntTree
	start int
	end   int
	size  int
}

// NewVariantIndex builds an interval tree over the preprocessed variants.
func NewVariantIndex(variants []PreparedVariant) (*VariantIndex, error) {
	idx := &VariantIndex{size: len(variants)}
	for i, v := range variants {
		if i == 0 || v.Pos < idx.start {
			idx.start = v.Pos
		}
		if i == 0 || v.Pos > idx.end {
			idx.end = v.Pos
		}
		if err := idx.tree.Insert(&indexedVariant{id: uintptr(i + 1), variant: v}, true); err != nil {
			return nil, err
		}
	}
	idx.tree.AdjustRanges()
	return idx, nil
}

// Len returns the number of indexed variants.
func (idx *VariantIndex) Len() int { return idx.size }

// Boundaries returns the protein domain covered by the index.
func (idx *VariantIndex) Boundaries() (int, int) { return idx.start, idx.end }

// Visible returns the variants inside the closed protein window.
func (idx *VariantIndex) Visible(proteinView Range) []PreparedVariant {
	proteinView = proteinView.normalized()
	out := make([]PreparedVariant, 0)
	if idx.size == 0 {
		return out
	}
	idx.tree.DoMatching(func(e interval.IntInterface) bool {
		out = append(out, e.(*indexedVariant).variant)
		return false
	}, windowQuery(proteinView))
	return out
}
