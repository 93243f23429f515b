// Package render visualizes resolution documents.
//
// # Overview
//
// Two complementary views are provided:
//
//   - Constraint graph: [ToDOT] emits the element-constraint graph in
//     Graphviz DOT format, and [RenderSVG] rasterizes it. Elements are nodes
//     styled by status (frozen, validated, tentative); connections and
//     constraints are edges.
//   - Plan view: [PlanSVG] draws the resolved placement to scale, with
//     linear elements as strokes and point elements as circles.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg). They apply to both views.
//
//	dot := render.ToDOT(doc, render.Options{})
//	svg, err := render.RenderSVG(dot)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
package render
