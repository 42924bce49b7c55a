// Package svg renders engine drawing calls into a static SVG document.
package svg

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

var _ lollipop.Surface = (*Canvas)(nil)

type elementKind int

const (
	kindCircle elementKind = iota
	kindPath
	kindText
)

type animation struct {
	attr     string
	from, to float64
	duration time.Duration
	delay    time.Duration
}

type element struct {
	kind  elementKind
	id    string
	group string
	cx    float64
	cy    float64
	r     float64
	d     string
	text  string
	style lollipop.Style
	anims []animation

	// geometry of the element this one replaced, animated from
	from map[string]float64
}

type group struct {
	id     string
	parent string
	dx, dy float64
	elems  []*element
}

// Canvas is a retained scene graph implementing lollipop.Surface. Elements
// are keyed by id, so redrawing an id replaces it in place.
type Canvas struct {
	width   float64
	height  float64
	animate bool

	groups map[string]*group
	order  []string
	byID   map[string]*element
	stale  map[string]*element
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithAnimation emits SMIL animate elements for Animate calls. Without it
// the document only holds the final geometry.
func WithAnimation(enabled bool) Option {
	return func(c *Canvas) {
		c.animate = enabled
	}
}

// New creates an empty canvas.
func New(width, height float64, opts ...Option) *Canvas {
	c := &Canvas{
		width:  width,
		height: height,
		groups: make(map[string]*group),
		byID:   make(map[string]*element),
		stale:  make(map[string]*element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSize changes the document size.
func (c *Canvas) SetSize(width, height float64) {
	c.width, c.height = width, height
}

// Clear removes every element of a group. Child groups are kept.
func (c *Canvas) Clear(id string) {
	g, ok := c.groups[id]
	if !ok {
		return
	}
	for _, e := range g.elems {
		delete(c.byID, e.id)
		c.stale[e.id] = e
	}
	g.elems = nil
}

// Group creates or moves a group.
func (c *Canvas) Group(id, parent string, dx, dy float64) {
	g := c.group(id)
	g.parent, g.dx, g.dy = parent, dx, dy
}

// Circle draws a circle.
func (c *Canvas) Circle(id, group string, cx, cy, r float64, style lollipop.Style) {
	c.put(&element{kind: kindCircle, id: id, group: group, cx: cx, cy: cy, r: r, style: style})
}

// Path draws an SVG path.
func (c *Canvas) Path(id, group, d string, style lollipop.Style) {
	c.put(&element{kind: kindPath, id: id, group: group, d: d, style: style})
}

// Text draws a label anchored at x, y.
func (c *Canvas) Text(id, group string, x, y float64, text string, style lollipop.Style) {
	c.put(&element{kind: kindText, id: id, group: group, cx: x, cy: y, text: text, style: style})
}

// Animate moves an element to its final attribute values. Unknown ids and
// attributes are ignored.
func (c *Canvas) Animate(id string, attrs map[string]float64, duration, delay time.Duration) {
	e, ok := c.byID[id]
	if !ok {
		return
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := e.attr(name)
		if field == nil {
			continue
		}
		to := attrs[name]
		from, ok := e.from[name]
		if !ok {
			from = *field
		}
		if c.animate && from != to {
			e.anims = append(e.anims, animation{attr: name, from: from, to: to, duration: duration, delay: delay})
		}
		*field = to
	}
}

// Element reports whether id is currently drawn.
func (c *Canvas) Element(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of drawn elements.
func (c *Canvas) Len() int {
	return len(c.byID)
}

func (e *element) attr(name string) *float64 {
	switch name {
	case "cx", "x":
		return &e.cx
	case "cy", "y":
		return &e.cy
	case "r":
		if e.kind == kindCircle {
			return &e.r
		}
	}
	return nil
}

func (e *element) geometry() map[string]float64 {
	if e.kind != kindCircle {
		return map[string]float64{"x": e.cx, "y": e.cy}
	}
	return map[string]float64{"cx": e.cx, "cy": e.cy, "r": e.r}
}

func (c *Canvas) group(id string) *group {
	g, ok := c.groups[id]
	if !ok {
		g = &group{id: id}
		c.groups[id] = g
		c.order = append(c.order, id)
	}
	return g
}

func (c *Canvas) put(e *element) {
	if old, ok := c.stale[e.id]; ok {
		e.from = old.geometry()
		delete(c.stale, e.id)
	}
	if old, ok := c.byID[e.id]; ok {
		e.from = old.geometry()
		if old.group == e.group {
			*old = *e
			return
		}
		c.remove(old)
	}
	g := c.group(e.group)
	g.elems = append(g.elems, e)
	c.byID[e.id] = e
}

func (c *Canvas) remove(e *element) {
	g := c.groups[e.group]
	for i, cur := range g.elems {
		if cur == e {
			g.elems = append(g.elems[:i], g.elems[i+1:]...)
			break
		}
	}
	delete(c.byID, e.id)
}

// WriteTo writes the SVG document.
func (c *Canvas) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="Arial, sans-serif">`+"\n",
		num(c.width), num(c.height), num(c.width), num(c.height))

	children := make(map[string][]string)
	var roots []string
	for _, id := range c.order {
		g := c.groups[id]
		if _, ok := c.groups[g.parent]; ok && g.parent != id {
			children[g.parent] = append(children[g.parent], id)
			continue
		}
		roots = append(roots, id)
	}
	for _, id := range roots {
		c.writeGroup(&buf, id, children, 1)
	}

	buf.WriteString("</svg>\n")
	return buf.WriteTo(w)
}

// Bytes returns the SVG document.
func (c *Canvas) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = c.WriteTo(&buf)
	return buf.Bytes()
}

func (c *Canvas) writeGroup(buf *bytes.Buffer, id string, children map[string][]string, depth int) {
	g := c.groups[id]
	indent := indentOf(depth)
	fmt.Fprintf(buf, `%s<g data-id="%s"`, indent, html.EscapeString(id))
	if g.dx != 0 || g.dy != 0 {
		fmt.Fprintf(buf, ` transform="translate(%s,%s)"`, num(g.dx), num(g.dy))
	}
	buf.WriteString(">\n")

	for _, e := range g.elems {
		writeElement(buf, e, indentOf(depth+1))
	}
	for _, child := range children[id] {
		c.writeGroup(buf, child, children, depth+1)
	}

	fmt.Fprintf(buf, "%s</g>\n", indent)
}

func writeElement(buf *bytes.Buffer, e *element, indent string) {
	switch e.kind {
	case kindCircle:
		fmt.Fprintf(buf, `%s<circle data-id="%s" cx="%s" cy="%s" r="%s"%s`, indent, html.EscapeString(e.id), num(e.cx), num(e.cy), num(e.r), styleAttrs(e.style, "none"))
	case kindPath:
		fmt.Fprintf(buf, `%s<path data-id="%s" d="%s"%s`, indent, html.EscapeString(e.id), html.EscapeString(e.d), styleAttrs(e.style, "none"))
	case kindText:
		fmt.Fprintf(buf, `%s<text data-id="%s" x="%s" y="%s"%s>%s</text>`+"\n", indent, html.EscapeString(e.id), num(e.cx), num(e.cy), styleAttrs(e.style, ""), html.EscapeString(e.text))
		return
	}

	if len(e.anims) == 0 {
		buf.WriteString("/>\n")
		return
	}
	buf.WriteString(">\n")
	for _, a := range e.anims {
		fmt.Fprintf(buf, `%s  <animate attributeName="%s" from="%s" to="%s" dur="%s" begin="%s" fill="freeze"/>`+"\n",
			indent, a.attr, num(a.from), num(a.to), seconds(a.duration), seconds(a.delay))
	}
	if e.kind == kindCircle {
		fmt.Fprintf(buf, "%s</circle>\n", indent)
	} else {
		fmt.Fprintf(buf, "%s</path>\n", indent)
	}
}

func styleAttrs(s lollipop.Style, defaultFill string) string {
	var buf bytes.Buffer
	fill := s.Fill
	if fill == "" {
		fill = defaultFill
	}
	if fill != "" {
		fmt.Fprintf(&buf, ` fill="%s"`, html.EscapeString(fill))
	}
	if s.Stroke != "" {
		fmt.Fprintf(&buf, ` stroke="%s"`, html.EscapeString(s.Stroke))
	}
	if s.StrokeWidth > 0 {
		fmt.Fprintf(&buf, ` stroke-width="%s"`, num(s.StrokeWidth))
	}
	if s.Opacity > 0 {
		fmt.Fprintf(&buf, ` opacity="%s"`, num(s.Opacity))
	}
	if s.FontSize > 0 {
		fmt.Fprintf(&buf, ` font-size="%s"`, num(s.FontSize))
	}
	if s.Anchor != "" {
		fmt.Fprintf(&buf, ` text-anchor="%s"`, html.EscapeString(s.Anchor))
	}
	if s.Class != "" {
		fmt.Fprintf(&buf, ` class="%s"`, html.EscapeString(s.Class))
	}
	return buf.String()
}

// num prints at most two decimals without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func seconds(d time.Duration) string {
	return num(d.Seconds()) + "s"
}

func indentOf(depth int) string {
	return strings.Repeat("  ", depth)
}
