package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// planPadding is the margin around the drawn content, as a fraction of the
// larger plan dimension.
const planPadding = 0.05

// PlanSVG draws the document's placement to scale as an SVG plan view.
// Linear elements are strokes whose width matches their extent, point
// elements are circles. Status picks the color: frozen steelblue, validated
// seagreen, tentative dark goldenrod. Bounding regions from constraints are
// drawn as dashed rectangles behind the elements.
func PlanSVG(doc model.Document) []byte {
	bounds, ok := planBounds(doc)
	if !ok {
		return []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1"/>`)
	}

	w := bounds.Max.X - bounds.Min.X
	h := bounds.Max.Y - bounds.Min.Y
	pad := planPadding * math.Max(w, h)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.2f %.2f %.2f %.2f">`,
		bounds.Min.X-pad, -(bounds.Max.Y + pad), w+2*pad, h+2*pad)
	buf.WriteByte('\n')

	// Plan coordinates grow upward, SVG downward. Drawing at -y keeps the
	// plan upright.
	flip := func(y float64) float64 { return -y }

	for _, c := range doc.Constraints {
		r := c.Params.Region
		if r.Min == r.Max {
			continue
		}
		fmt.Fprintf(&buf,
			`  <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="none" stroke="grey" stroke-dasharray="4 2" stroke-width="0.5"/>`,
			r.Min.X, flip(r.Max.Y), r.Max.X-r.Min.X, r.Max.Y-r.Min.Y)
		buf.WriteByte('\n')
	}

	for _, e := range doc.Elements {
		color := statusColor(e.Status)
		g := e.Geometry
		if g.IsPoint() {
			radius := math.Max(g.Extent, 0.01*math.Max(w, h))
			fmt.Fprintf(&buf, `  <circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"><title>%s #%d</title></circle>`,
				g.Start.X, flip(g.Start.Y), radius, color, e.Kind, e.ID)
		} else {
			width := math.Max(2*g.Extent, 0.005*math.Max(w, h))
			fmt.Fprintf(&buf, `  <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.2f" stroke-linecap="round"><title>%s #%d</title></line>`,
				g.Start.X, flip(g.Start.Y), g.End.X, flip(g.End.Y), color, width, e.Kind, e.ID)
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func statusColor(status string) string {
	switch status {
	case "frozen":
		return "steelblue"
	case "validated":
		return "seagreen"
	default:
		return "darkgoldenrod"
	}
}

// planBounds returns the bounding box covering every element and constraint
// region, or false when the document draws nothing.
func planBounds(doc model.Document) (geometry.Box, bool) {
	var out geometry.Box
	found := false

	grow := func(b geometry.Box) {
		if !found {
			out = b
			found = true
			return
		}
		out.Min.X = math.Min(out.Min.X, b.Min.X)
		out.Min.Y = math.Min(out.Min.Y, b.Min.Y)
		out.Max.X = math.Max(out.Max.X, b.Max.X)
		out.Max.Y = math.Max(out.Max.Y, b.Max.Y)
	}

	for _, e := range doc.Elements {
		grow(e.Geometry.Bounds())
	}
	for _, c := range doc.Constraints {
		if c.Params.Region.Min != c.Params.Region.Max {
			grow(c.Params.Region)
		}
	}
	return out, found
}
