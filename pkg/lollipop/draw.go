package lollipop

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	variantFill  = "#3182bd"
	clusterFill  = "#e6550d"
	childFill    = "#fd8d3c"
	axisStroke   = "#636363"
	windowFill   = "#9ecae1"
	barFill      = "#f0f0f0"
	stemKneeRate = 0.25
)

func (e *Engine) draw(ts *trackState, redrawTicks bool) {
	group := ts.track.Name
	e.surface.Clear(group)
	e.surface.Group(group, "", 0, ts.offsetY)
	switch ts.track.Type {
	case TrackPositionBar:
		e.drawPositionBar(ts, group, redrawTicks)
	case TrackVariants:
		e.drawVariants(ts, group, redrawTicks)
	}
}

func barHeight(t *Track) float64 {
	if t.View.PositionBarHeight > 0 {
		return t.View.PositionBarHeight
	}
	return t.View.Height
}

// fullX maps a protein position onto the unzoomed navigation bar.
func (e *Engine) fullX(pos int) (float64, bool) {
	x, err := Rescale(float64(pos), float64(e.proteinStart), float64(e.proteinEnd), 0, e.cfg.Width)
	if err != nil {
		return 0, false
	}
	return float64(x), true
}

func (e *Engine) drawPositionBar(ts *trackState, group string, redrawTicks bool) {
	bar := barHeight(ts.track)
	width := e.cfg.Width
	e.surface.Path(group+"/bar", group, rectPath(0, 0, width, bar), Style{Fill: barFill, Stroke: axisStroke, StrokeWidth: 1})

	genes := make([]string, 0, len(ts.track.Subsections))
	for gene := range ts.track.Subsections {
		genes = append(genes, gene)
	}
	sort.Strings(genes)
	for _, gene := range genes {
		s := ts.track.Subsections[gene]
		x0, ok0 := e.fullX(s.Start)
		x1, ok1 := e.fullX(s.End)
		if !ok0 || !ok1 {
			continue
		}
		e.surface.Path(group+"/subsection/"+gene, group, rectPath(x0, 0, x1-x0, bar), Style{Fill: s.Color, Opacity: 0.6, Class: "subsection"})
		e.surface.Text(group+"/subsection-label/"+gene, group, (x0+x1)/2, bar/2+4, gene, Style{FontSize: 10, Anchor: "middle"})
	}

	lo, hi := float64(e.viewRange[0]), float64(e.viewRange[1])
	e.surface.Path(group+"/window", group, rectPath(lo, 0, hi-lo, bar), Style{Fill: windowFill, Opacity: 0.4, Stroke: variantFill, StrokeWidth: 1, Class: "nav-window"})
	hw := e.cfg.HandleWidth
	e.surface.Path(group+"/handle-left", group, rectPath(lo-hw/2, 0, hw, bar), Style{Fill: variantFill, Class: "nav-handle"})
	e.surface.Path(group+"/handle-right", group, rectPath(hi-hw/2, 0, hw, bar), Style{Fill: variantFill, Class: "nav-handle"})

	if !redrawTicks {
		return
	}
	for _, tick := range Ticks(Range{e.proteinStart, e.proteinEnd}, e.cfg.TickCount) {
		x, ok := e.fullX(tick)
		if !ok {
			continue
		}
		id := group + "/tick/" + strconv.Itoa(tick)
		e.surface.Path(id, group, fmt.Sprintf("M%g,%gV%g", x, bar, bar+ts.track.View.ScaleHeight/2), Style{Stroke: axisStroke, StrokeWidth: 1})
		e.surface.Text(id+"/label", group, x, bar+ts.track.View.ScaleHeight, strconv.Itoa(tick), Style{FontSize: 9, Anchor: "middle"})
	}
}

func (e *Engine) drawVariants(ts *trackState, group string, redrawTicks bool) {
	view := ts.track.View
	axisY := view.VariantAreaHeight
	headY := view.VariantAreaHeight / 2
	knee := axisY - view.VariantAreaHeight*stemKneeRate
	width := e.cfg.Width

	e.surface.Path(group+"/axis", group, fmt.Sprintf("M0,%gH%g", axisY, width), Style{Stroke: axisStroke, StrokeWidth: 1})

	for i, n := range ts.layout.Nodes {
		id := group + "/" + n.ID
		x := n.X()
		delay := time.Duration(i) * e.cfg.StaggerDelay
		e.surface.Path(id+"/stem", group, fmt.Sprintf("M%d,%gV%gL%g,%g", n.ViewPos, axisY, knee, x, headY+n.Size/2), Style{Stroke: axisStroke, StrokeWidth: 1})

		fill := variantFill
		if n.Type == NodeCluster {
			fill = clusterFill
		}
		e.surface.Circle(id, group, x, headY, n.Size/2, Style{Fill: fill, Stroke: "#ffffff", StrokeWidth: 1, Class: string(n.Type)})
		e.surface.Animate(id, map[string]float64{"cx": x, "r": n.Size / 2}, e.cfg.AnimationDuration, delay)

		if n.Type != NodeCluster {
			continue
		}
		e.surface.Text(id+"/count", group, x, headY+4, strconv.Itoa(n.Count()), Style{FontSize: 10, Anchor: "middle", Fill: "#ffffff"})
		for j, c := range n.Children {
			cid := id + "/" + c.ID
			e.surface.Path(cid+"/spoke", group, fmt.Sprintf("M%g,%gL%g,%g", x, headY, x+c.DX, headY+c.DY), Style{Stroke: childFill, StrokeWidth: 1})
			e.surface.Circle(cid, group, x+c.DX, headY+c.DY, c.R, Style{Fill: childFill, Stroke: "#ffffff", StrokeWidth: 1, Class: "child"})
			e.surface.Animate(cid, map[string]float64{"cx": x + c.DX, "cy": headY + c.DY}, e.cfg.AnimationDuration, delay+time.Duration(j)*e.cfg.StaggerDelay)
		}
	}

	if !redrawTicks {
		return
	}
	t := e.transform()
	for _, tick := range Ticks(e.viewProteinRange, e.cfg.TickCount) {
		vp, err := t.viewPos(float64(tick), e.viewProteinRange)
		if err != nil {
			continue
		}
		x := float64(vp)
		id := group + "/tick/" + strconv.Itoa(tick)
		e.surface.Path(id, group, fmt.Sprintf("M%g,%gV%g", x, axisY, axisY+view.ScaleHeight/2), Style{Stroke: axisStroke, StrokeWidth: 1})
		e.surface.Text(id+"/label", group, x, axisY+view.ScaleHeight, strconv.Itoa(tick), Style{FontSize: 9, Anchor: "middle"})
	}
}

// indexMarkers rebuilds the hit-test index for a variants track in canvas
// coordinates.
func (e *Engine) indexMarkers(ts *trackState) {
	if ts.track.Type != TrackVariants || ts.layout == nil {
		ts.markers = nil
		return
	}
	markers := newMarkerIndex()
	headY := ts.offsetY + ts.track.View.VariantAreaHeight/2
	for _, n := range ts.layout.Nodes {
		markers.add(&markerTarget{nodeID: n.ID, cx: n.X(), cy: headY, r: n.Size / 2})
	}
	for _, n := range ts.layout.Nodes {
		for _, c := range n.Children {
			markers.add(&markerTarget{nodeID: n.ID, childID: c.ID, cx: n.X() + c.DX, cy: headY + c.DY, r: c.R})
		}
	}
	ts.markers = markers
}

func rectPath(x, y, w, h float64) string {
	return fmt.Sprintf("M%g,%gH%gV%gH%gZ", x, y, x+w, y+h, x)
}
