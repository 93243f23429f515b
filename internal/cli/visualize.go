package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/render"
)

// visualizeOpts holds the command-line flags for the visualize command.
type visualizeOpts struct {
	output   string // output file (derived from input if empty)
	format   string // dot, svg, png, pdf, or plan
	detailed bool   // include strength/status/score annotations
	scale    float64
}

// visualizeCommand creates the visualize command.
func (c *CLI) visualizeCommand() *cobra.Command {
	opts := visualizeOpts{scale: 2.0}

	cmd := &cobra.Command{
		Use:   "visualize <document.json>",
		Short: "Render the element-constraint graph of a document",
		Long: `Render the element-constraint graph of a placement document.

The graph view shows elements as nodes (frozen elements styled distinctly)
with physical connections and constraints as edges. The plan view draws the
placement itself to scale.

Formats:
  dot   Graphviz DOT source of the constraint graph
  svg   constraint graph rendered via Graphviz (default)
  png   like svg, converted with librsvg at --scale resolution
  pdf   like svg, converted with librsvg
  plan  to-scale SVG plan view of the placement`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVisualize(args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (derived from input if empty)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "svg", "output format: dot, svg, png, pdf, plan")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "annotate nodes and edges with strength, status, and scores")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "raster scale for png output")

	return cmd
}

// runVisualize loads the document and renders the requested view.
func (c *CLI) runVisualize(input string, opts *visualizeOpts) error {
	doc, err := readDocument(input)
	if err != nil {
		return err
	}
	c.Logger.Infof("Rendering %s (%d elements, %d constraints)", input, len(doc.Elements), len(doc.Constraints))

	var data []byte
	renderOpts := render.Options{Detailed: opts.detailed, Tolerance: engine.DefaultTolerance}
	switch opts.format {
	case "dot":
		data = []byte(render.ToDOT(doc, renderOpts))
	case "svg":
		data, err = render.RenderSVG(render.ToDOT(doc, renderOpts))
	case "png":
		data, err = render.RenderPNG(render.ToDOT(doc, renderOpts), opts.scale)
	case "pdf":
		data, err = render.RenderPDF(render.ToDOT(doc, renderOpts))
	case "plan":
		data = render.PlanSVG(doc)
	default:
		return fmt.Errorf("unknown format: %s (want dot, svg, png, pdf, or plan)", opts.format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.format, err)
	}

	path := opts.output
	if path == "" {
		path = visualizePath(input, opts.format)
	}
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(data); err != nil {
		return err
	}

	printSuccess("Rendered %s view", opts.format)
	printFile(path)
	return nil
}

// visualizePath derives the output path from the input file and format.
// The plan view keeps the svg extension with a _plan suffix.
func visualizePath(input, format string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if format == "plan" {
		return base + "_plan.svg"
	}
	return base + "." + format
}
