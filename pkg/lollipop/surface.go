package lollipop

import (
	"math"
	"time"
)

// Style carries presentation attributes for surface primitives.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	FontSize    float64
	Anchor      string
	Class       string
}

// Surface is the drawing collaborator the engine renders onto. The engine
// sets the final geometry synchronously; implementations may interpolate
// Animate calls visually or apply them immediately.
type Surface interface {
	Clear(group string)
	Group(id, parent string, dx, dy float64)
	Circle(id, group string, cx, cy, r float64, style Style)
	Path(id, group, d string, style Style)
	Text(id, group string, x, y float64, text string, style Style)
	Animate(id string, attrs map[string]float64, duration, delay time.Duration)
}

// NopSurface discards all drawing. Useful for headless layout computation.
type NopSurface struct{}

func (NopSurface) Clear(string) {}
func (NopSurface) Group(string, string, float64, float64) {}
func (NopSurface) Circle(string, string, float64, float64, float64, Style) {}
func (NopSurface) Path(string, string, string, Style) {}
func (NopSurface) Text(string, string, float64, float64, string, Style) {}
func (NopSurface) Animate(string, map[string]float64, time.Duration, time.Duration) {}

// Ticks returns round positions covering r, about count of them.
func Ticks(r Range, count int) []int {
	r = r.normalized()
	if count <= 0 {
		return nil
	}
	span := float64(r.Width())
	if span == 0 {
		return []int{r[0]}
	}
	step := niceStep(span / float64(count))
	first := math.Ceil(float64(r[0])/step) * step
	var ticks []int
	for v := first; v <= float64(r[1]); v += step {
		ticks = append(ticks, int(v))
	}
	return ticks
}

// niceStep rounds a raw step up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw < 1 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch norm := raw / mag; {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}
