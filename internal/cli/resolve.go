package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// resolveOpts holds the command-line flags for the resolve command.
type resolveOpts struct {
	output        string        // resolved document path (stdout if empty)
	reportPath    string        // report JSON path (omitted if empty)
	tuningPath    string        // TOML tuning file
	noCache       bool          // disable the resolution cache
	refresh       bool          // bypass cached results for this run
	watch         bool          // live per-iteration TUI
	tolerance     float64       // satisfaction threshold override
	maxIterations int           // iteration budget override
	deadline      time.Duration // wall-clock budget
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts

	cmd := &cobra.Command{
		Use:   "resolve <document.json>",
		Short: "Resolve a placement document",
		Long: `Resolve a provisional placement document.

The resolve command loads a placement document (elements plus constraints),
runs the progressive freezing loop until the placement converges, times out,
or proves over-constrained, and writes the resolved document with frozen
geometry to the output.

Results are cached locally by document and option hash; identical inputs
return instantly. Use --refresh to force a fresh run or --no-cache to
disable caching entirely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "resolved document file (stdout if empty)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write the full resolution report to this file")
	cmd.Flags().StringVar(&opts.tuningPath, "tuning", "", "TOML tuning file overriding engine defaults")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached results")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "show live per-iteration convergence table")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", 0, "satisfaction score threshold (default 0.95)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "iteration budget (default 50)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 0, "wall-clock budget, e.g. 30s (default none)")

	return cmd
}

// runResolve loads the document, resolves it, and writes the outputs.
func (c *CLI) runResolve(ctx context.Context, input string, opts *resolveOpts) error {
	doc, err := readDocument(input)
	if err != nil {
		return err
	}
	c.Logger.Infof("Loaded document: %d elements, %d constraints", len(doc.Elements), len(doc.Constraints))

	engOpts := engine.Options{
		Tolerance:     opts.tolerance,
		MaxIterations: opts.maxIterations,
		Deadline:      opts.deadline,
		Refresh:       opts.refresh,
		Logger:        c.Logger,
	}
	if opts.tuningPath != "" {
		tuning, err := loadTuning(opts.tuningPath)
		if err != nil {
			return err
		}
		tuning.applyTo(&engOpts)
		c.Logger.Debugf("Applied tuning from %s", opts.tuningPath)
	}

	runner := c.newRunner(opts.noCache)
	defer runner.Close()

	var result *engine.Result
	prog := newProgress(c.Logger)
	if opts.watch {
		result, err = c.resolveWithWatch(ctx, runner, doc, engOpts)
	} else {
		spinner := newSpinnerWithContext(ctx, "Resolving...")
		spinner.Start()
		result, err = runner.Execute(ctx, doc, engOpts)
		spinner.Stop()
	}
	if err != nil {
		printError("Resolution failed")
		return err
	}
	prog.done(fmt.Sprintf("Resolution %s after %d iterations", result.Report.Reason, result.Report.Iterations))

	printReason(result.Report)
	printRunStats(len(result.Document.Elements), frozenCount(result.Document), result.Report.Iterations,
		result.CacheInfo.ResolutionHit)

	if err := writeDocument(result.Document, opts.output); err != nil {
		return err
	}
	if opts.output != "" {
		printFile(opts.output)
		printNextStep("Visualize the result", fmt.Sprintf("%s visualize %s", appName, opts.output))
	}

	if opts.reportPath != "" {
		if err := writeReport(result.Report, opts.reportPath); err != nil {
			return err
		}
		printFile(opts.reportPath)
	}
	return nil
}

// printReason prints the termination outcome with its diagnostics.
func printReason(report *engine.Report) {
	switch report.Reason {
	case engine.ReasonConverged:
		printSuccess("Placement converged")
	case engine.ReasonTimedOut:
		printWarning("Iteration budget exhausted with %d outstanding violations", len(report.Outstanding))
		for _, id := range report.Outstanding {
			printDetail("constraint %d unsatisfied", id)
		}
	case engine.ReasonOverConstrained:
		printError("Placement is over-constrained")
		if report.Conflict != nil {
			printDetail("conflicting constraints: %v", report.Conflict.Constraints)
			printDetail("shared elements: %v", report.Conflict.Elements)
		}
	}
	if len(report.UnderConstrained) > 0 {
		printWarning("%d elements have no constraints: %v", len(report.UnderConstrained), report.UnderConstrained)
	}
	for _, id := range report.FrozenViolations {
		printWarning("constraint %d is violated but all its elements are frozen", id)
	}
}

// frozenCount counts elements whose status reached frozen.
func frozenCount(doc model.Document) int {
	n := 0
	for _, e := range doc.Elements {
		if e.Status == "frozen" {
			n++
		}
	}
	return n
}

// readDocument loads and parses a placement document from disk.
func readDocument(path string) (model.Document, error) {
	if err := errors.ValidatePath(path); err != nil {
		return model.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Document{}, errors.New(errors.ErrCodeFileNotFound, "document %s not found", path)
		}
		return model.Document{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to read %s", path)
	}
	doc, err := model.UnmarshalDocument(data)
	if err != nil {
		return model.Document{}, errors.Wrap(errors.ErrCodeInvalidDocument, err, "failed to parse %s", path)
	}
	return doc, nil
}

// writeDocument serializes the document to path, or stdout when path is empty.
func writeDocument(doc model.Document, path string) error {
	data, err := model.MarshalDocument(doc)
	if err != nil {
		return err
	}
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(append(data, '\n'))
	return err
}

// writeReport serializes the full report to path.
func writeReport(report *engine.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
