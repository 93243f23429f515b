package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/kholzweiler/planfreeze/pkg/model"
)

// Options configures constraint graph rendering.
type Options struct {
	// Detailed includes strength and score annotations in labels.
	// When false, only kinds and ids are shown.
	Detailed bool

	// Tolerance marks constraint edges below this score as violated.
	// Zero disables violation highlighting.
	Tolerance float64
}

// ToDOT converts a document to Graphviz DOT format for constraint graph
// visualization. The resulting DOT string can be rendered using [RenderSVG],
// [RenderPDF], or [RenderPNG].
//
// Frozen elements are drawn with bold blue outlines, validated elements
// filled green, tentative elements filled white. Physical connections are
// solid edges; constraints are dashed edges, red when their last recorded
// score fell below the tolerance.
func ToDOT(doc model.Document, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph plan {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.08\"];\n")
	buf.WriteString("\n")

	for _, e := range doc.Elements {
		label := elementLabel(e, opts.Detailed)
		attrs := elementAttrs(e, label)
		fmt.Fprintf(&buf, "  e%d [%s];\n", e.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	seen := make(map[[2]int]bool)
	for _, e := range doc.Elements {
		for _, other := range e.Connections {
			key := [2]int{e.ID, other}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Fprintf(&buf, "  e%d -- e%d [penwidth=2];\n", key[0], key[1])
		}
	}

	buf.WriteString("\n")
	for _, c := range doc.Constraints {
		attrs := constraintAttrs(c, opts)
		// Multi-element constraints become a chain of edges.
		for i := 1; i < len(c.Elements); i++ {
			fmt.Fprintf(&buf, "  e%d -- e%d [%s];\n", c.Elements[i-1], c.Elements[i], strings.Join(attrs, ", "))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func elementLabel(e model.ElementDoc, detailed bool) string {
	label := fmt.Sprintf("%s #%d", e.Kind, e.ID)
	if detailed {
		label += "\n" + e.Strength
		if e.Status != "" {
			label += " / " + e.Status
		}
	}
	return label
}

func elementAttrs(e model.ElementDoc, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch e.Status {
	case "frozen":
		attrs = append(attrs, "color=steelblue", "penwidth=3", "fillcolor=lightblue")
	case "validated":
		attrs = append(attrs, "fillcolor=palegreen")
	}
	return attrs
}

func constraintAttrs(c model.ConstraintDoc, opts Options) []string {
	label := c.Kind
	if opts.Detailed && c.Score > 0 {
		label = fmt.Sprintf("%s\n%.2f", c.Kind, c.Score)
	}
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		"style=dashed",
		"fontsize=10",
	}
	if opts.Tolerance > 0 && c.Score > 0 && c.Score < opts.Tolerance {
		attrs = append(attrs, "color=red", "fontcolor=red")
	} else {
		attrs = append(attrs, "color=grey40", "fontcolor=grey30")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [ToPDF]
// or [ToPNG].
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [ToPDF].
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(dot string) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [ToPNG].
//
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return ToPNG(svg, scale)
}
