package lollipop

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(variants []PreparedVariant) []string {
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.ID)
	}
	sort.Strings(out)
	return out
}

func TestVariantIndex_Visible(t *testing.T) {
	variants := Preprocess([]Variant{
		{ID: "a", Start: 100},
		{ID: "b", Start: 105},
		{ID: "c", Start: 105},
		{ID: "d", Start: 400},
		{ID: "e", Start: 900},
	})
	idx, err := NewVariantIndex(variants)
	require.NoError(t, err)

	assert.Equal(t, 5, idx.Len())
	lo, hi := idx.Boundaries()
	assert.Equal(t, 100, lo)
	assert.Equal(t, 900, hi)

	tests := []struct {
		name     string
		window   Range
		expected []string
	}{
		{"full domain", Range{100, 900}, []string{"a", "b", "c", "d", "e"}},
		{"inclusive bounds", Range{105, 400}, []string{"b", "c", "d"}},
		{"single position", Range{105, 105}, []string{"b", "c"}},
		{"empty window", Range{500, 800}, []string{}},
		{"reversed window", Range{400, 105}, []string{"b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(idx.Visible(tt.window)))
		})
	}
}

func TestVariantIndex_MatchesFilterVisible(t *testing.T) {
	raw := make([]Variant, 500)
	for i := range raw {
		raw[i] = Variant{ID: fmt.Sprintf("v%d", i), Start: (i * 7919) % 3000}
	}
	variants := Preprocess(raw)
	idx, err := NewVariantIndex(variants)
	require.NoError(t, err)

	for _, window := range []Range{{0, 3000}, {17, 17}, {250, 1250}, {2999, 3000}, {1500, 1600}} {
		assert.Equal(t, ids(FilterVisible(variants, window)), ids(idx.Visible(window)), "window %v", window)
	}
}

func TestVariantIndex_Empty(t *testing.T) {
	idx, err := NewVariantIndex(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Visible(Range{0, 100}))
}

func TestPrepareVariants(t *testing.T) {
	variants := Preprocess([]Variant{
		{ID: "late", Start: 900},
		{ID: "first", Start: 100},
		{ID: "tie-a", Start: 500},
		{ID: "tie-b", Start: 500},
	})
	tr := viewTransform{width: 1000, proteinStart: 100, proteinEnd: 900}

	prepared, err := PrepareVariants(variants, 12, tr, Range{100, 900})
	require.NoError(t, err)
	require.Len(t, prepared, 4)

	assert.Equal(t, []string{"first", "tie-a", "tie-b", "late"}, []string{prepared[0].ID, prepared[1].ID, prepared[2].ID, prepared[3].ID})
	assert.Equal(t, []int{0, 500, 500, 1000}, []int{prepared[0].ViewPos, prepared[1].ViewPos, prepared[2].ViewPos, prepared[3].ViewPos})
	for _, v := range prepared {
		assert.Equal(t, 12.0, v.Size)
		assert.Zero(t, v.Offset)
	}
	// input is left untouched
	assert.Equal(t, "late", variants[0].ID)
}

func TestFilterVisible(t *testing.T) {
	variants := Preprocess([]Variant{
		{ID: "a", Start: 99},
		{ID: "b", Start: 100},
		{ID: "c", Start: 200},
		{ID: "d", Start: 201},
	})
	assert.Equal(t, []string{"b", "c"}, ids(FilterVisible(variants, Range{100, 200})))
}
