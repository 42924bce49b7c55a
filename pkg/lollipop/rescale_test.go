package lollipop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescale(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		from     [2]float64
		to       [2]float64
		expected int
	}{
		{"midpoint", 50, [2]float64{0, 100}, [2]float64{0, 1000}, 500},
		{"lower bound", 100, [2]float64{100, 900}, [2]float64{0, 1000}, 0},
		{"upper bound", 900, [2]float64{100, 900}, [2]float64{0, 1000}, 1000},
		{"half rounds up", 1, [2]float64{0, 2}, [2]float64{0, 1}, 1},
		{"negative half rounds up", -1, [2]float64{0, 2}, [2]float64{0, 1}, 0},
		{"inverted target", 25, [2]float64{0, 100}, [2]float64{100, 0}, 75},
		{"offset target", 105, [2]float64{100, 900}, [2]float64{0, 1000}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rescale(tt.value, tt.from[0], tt.from[1], tt.to[0], tt.to[1])
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRescale_EmptyDomain(t *testing.T) {
	_, err := Rescale(5, 5, 5, 0, 1000)
	require.Error(t, err)

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 5.0, domainErr.Min)
	assert.Equal(t, 5.0, domainErr.Max)
}

func TestRescale_RoundTrip(t *testing.T) {
	for x := 100; x <= 900; x++ {
		px, err := Rescale(float64(x), 100, 900, 0, 1000)
		require.NoError(t, err)
		back, err := Rescale(float64(px), 0, 1000, 100, 900)
		require.NoError(t, err)
		assert.InDelta(t, x, back, 1, "position %d", x)
	}
}

func TestRange(t *testing.T) {
	r := Range{10, 20}
	assert.Equal(t, 10, r.Min())
	assert.Equal(t, 20, r.Max())
	assert.Equal(t, 10, r.Width())
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(20))
	assert.False(t, r.Contains(21))
	assert.Equal(t, Range{1, 5}, Range{5, 1}.normalized())
}

func TestViewTransform(t *testing.T) {
	tr := viewTransform{width: 1000, proteinStart: 100, proteinEnd: 900}

	protein, err := tr.proteinRange(Range{375, 500})
	require.NoError(t, err)
	assert.Equal(t, Range{400, 500}, protein)

	vp, err := tr.viewPos(450, protein)
	require.NoError(t, err)
	assert.Equal(t, 500, vp)

	_, err = tr.viewPos(450, Range{450, 450})
	var domainErr *DomainError
	assert.True(t, errors.As(err, &domainErr))
}
