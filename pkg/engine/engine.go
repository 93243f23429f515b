// Package engine implements the progressive freezing resolution loop.
//
// This package drives the iterate → adjust → freeze cycle that settles a
// provisional placement into one where every constraint is satisfied. By
// centralizing this logic, the CLI, API, and archive components all share
// identical resolution behavior.
//
// # Architecture
//
// Each iteration performs four phases:
//
//  1. Adjust: walk the strength tiers strongest first, evaluate each tier's
//     constraints concurrently, and apply the collected corrections in
//     ascending constraint order.
//  2. Score: re-evaluate every constraint against the updated geometry.
//  3. Freeze: grow stability counters for unmoved elements and freeze the
//     satisfied ones that crossed their tier's threshold, cascading through
//     densely frozen neighborhoods.
//  4. Check: terminate on convergence, an unsatisfiable required conflict,
//     or the iteration budget.
//
// # Usage
//
// Build a registry and resolve it:
//
//	reg := model.New()
//	// ... add elements and constraints ...
//	report, err := engine.Resolve(ctx, reg, engine.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Reason)
//
// The registry is updated in place; the report carries the full adjustment
// and freeze history of the run.
package engine

import (
	"context"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kholzweiler/planfreeze/pkg/constraint"
	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/model"
	"github.com/kholzweiler/planfreeze/pkg/observability"
	"github.com/kholzweiler/planfreeze/pkg/solver"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Tuning Files
// =============================================================================

const (
	// DefaultTolerance is the satisfaction score at or above which a
	// constraint counts as satisfied.
	DefaultTolerance = 0.95

	// DefaultMaxIterations bounds the resolution loop. Runs that have not
	// settled by then terminate as timed out.
	DefaultMaxIterations = 50

	// DefaultCascadeFraction is the fraction of frozen neighbors at which
	// a satisfied element is frozen by cascade.
	DefaultCascadeFraction = 0.8

	// NeverFreeze disables threshold freezing for a tier.
	NeverFreeze = -1
)

// massEpsilon guards the violation mass comparison against float noise.
const massEpsilon = 1e-9

// =============================================================================
// Options - Engine Configuration
// =============================================================================

// Thresholds holds the per-tier stability counts required before an element
// freezes. NeverFreeze disables freezing for a tier.
type Thresholds struct {
	Required int `json:"required" toml:"required"`
	Strong   int `json:"strong" toml:"strong"`
	Medium   int `json:"medium" toml:"medium"`
	Weak     int `json:"weak" toml:"weak"`
}

// DefaultThresholds returns the standard freeze schedule: required elements
// freeze as soon as they are satisfied, strong after 2 stable iterations,
// medium after 5, and weak elements never freeze.
func DefaultThresholds() Thresholds {
	return Thresholds{Required: 0, Strong: 2, Medium: 5, Weak: NeverFreeze}
}

// For returns the threshold for a strength tier.
func (t Thresholds) For(s model.Strength) int {
	switch s {
	case model.Required:
		return t.Required
	case model.Strong:
		return t.Strong
	case model.Medium:
		return t.Medium
	default:
		return t.Weak
	}
}

// Options contains all configuration for a resolution run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Tolerance is the satisfaction score threshold.
	Tolerance float64 `json:"tolerance,omitempty"`

	// Thresholds overrides the per-tier freeze schedule.
	Thresholds *Thresholds `json:"thresholds,omitempty"`

	// CascadeFraction is the frozen-neighbor fraction triggering cascade
	// freezes.
	CascadeFraction float64 `json:"cascade_fraction,omitempty"`

	// MaxIterations bounds the resolution loop.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Deadline bounds the wall-clock time of a run. Zero means no limit.
	Deadline time.Duration `json:"deadline,omitempty"`

	// Parallelism caps concurrent constraint evaluation. Zero means one
	// worker per CPU.
	Parallelism int `json:"parallelism,omitempty"`

	// Refresh bypasses the resolution cache and forces a fresh run.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Solver solver.Solver `json:"-"`
	Logger *log.Logger   `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks ranges and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Tolerance < 0 || o.Tolerance > 1 {
		return errors.New(errors.ErrCodeInvalidOptions, "tolerance must be in (0, 1], got %v", o.Tolerance)
	}

	if o.Thresholds == nil {
		t := DefaultThresholds()
		o.Thresholds = &t
	}
	for _, s := range model.Strengths {
		if th := o.Thresholds.For(s); th < NeverFreeze {
			return errors.New(errors.ErrCodeInvalidOptions, "freeze threshold for %s must be >= %d, got %d", s, NeverFreeze, th)
		}
	}

	if o.CascadeFraction == 0 {
		o.CascadeFraction = DefaultCascadeFraction
	}
	if o.CascadeFraction < 0 || o.CascadeFraction > 1 {
		return errors.New(errors.ErrCodeInvalidOptions, "cascade fraction must be in (0, 1], got %v", o.CascadeFraction)
	}

	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxIterations < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "max iterations must be positive, got %d", o.MaxIterations)
	}

	if o.Parallelism == 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.Parallelism < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "parallelism must be positive, got %d", o.Parallelism)
	}

	if o.Solver == nil {
		o.Solver = solver.NewGreedy()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// =============================================================================
// Resolve - Resolution Loop
// =============================================================================

// Resolve runs the progressive freezing loop on the registry until it
// converges, hits an unsatisfiable required conflict, or exhausts its
// iteration or time budget. The registry is mutated in place; the returned
// report carries the complete run history.
func Resolve(ctx context.Context, reg *model.Registry, opts Options) (*Report, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "invalid model")
	}

	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	observability.Engine().OnResolveStart(ctx, reg.ElementCount(), reg.ConstraintCount())
	opts.Logger.Info("resolution started",
		"run", report.RunID,
		"elements", reg.ElementCount(),
		"constraints", reg.ConstraintCount())

	r := &run{
		reg:       reg,
		opts:      &opts,
		report:    report,
		neighbors: neighborMap(reg),
	}

	for _, e := range reg.Elements() {
		if len(reg.ConstraintsFor(e.ID)) == 0 {
			report.UnderConstrained = append(report.UnderConstrained, e.ID)
		}
	}

	reason := ReasonTimedOut
	var prev *requiredViolations
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			break
		}

		changed := r.adjust(ctx, iter)
		scores := r.scoreAll(ctx)
		newFrozen := r.freezePass(ctx, iter, scores, changed)
		report.Iterations = iter

		stats := r.recordStats(iter, len(changed), newFrozen, scores)
		observability.Engine().OnIterationComplete(ctx, iter, stats.Adjusted, stats.Frozen, stats.MeanScore)
		opts.Logger.Debug("iteration complete",
			"iteration", iter,
			"adjusted", stats.Adjusted,
			"frozen", stats.Frozen,
			"violated", stats.Violated,
			"mean_score", stats.MeanScore)

		cur := r.requiredViolations(scores)
		if conflict := detectConflict(prev, cur); conflict != nil {
			report.Conflict = conflict
			reason = ReasonOverConstrained
			break
		}
		prev = cur

		if len(changed) == 0 && !r.pendingFreezes(scores) {
			reason = ReasonConverged
			break
		}
	}

	r.finalize(reason, start)
	observability.Engine().OnResolveComplete(ctx, string(reason), report.Iterations, report.Elapsed, nil)
	opts.Logger.Info("resolution finished",
		"run", report.RunID,
		"reason", reason,
		"iterations", report.Iterations,
		"outstanding", len(report.Outstanding),
		"duration", report.Elapsed)
	return report, nil
}

// =============================================================================
// Iteration Phases
// =============================================================================

// run holds the mutable state of one resolution.
type run struct {
	reg       *model.Registry
	opts      *Options
	report    *Report
	neighbors map[int][]int
}

// adjust walks the strength tiers strongest first, evaluates each tier's
// constraints concurrently against the current geometry, and applies the
// collected proposals in ascending constraint order. Later proposals win
// conflicting updates to the same element, which keeps the result
// independent of evaluation scheduling. Returns the set of moved elements.
func (r *run) adjust(ctx context.Context, iter int) map[int]bool {
	changed := make(map[int]bool)
	all := r.reg.Constraints()

	for _, tier := range model.Strengths {
		var cs []*model.Constraint
		for _, c := range all {
			if c.Strength == tier {
				cs = append(cs, c)
			}
		}
		if len(cs) == 0 {
			continue
		}

		proposals := make([][]solver.Update, len(cs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Parallelism)
		for i, c := range cs {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				if constraint.Score(c, r.reg) >= r.opts.Tolerance {
					return nil
				}
				adjustable := r.adjustable(c)
				if len(adjustable) == 0 {
					return nil
				}
				proposals[i] = r.opts.Solver.Propose(c, adjustable, r.reg, r.opts.Tolerance)
				return nil
			})
		}
		_ = g.Wait()

		// Constraints() is sorted by id, so proposals apply in ascending
		// constraint order.
		for i, c := range cs {
			for _, u := range proposals[i] {
				before := r.reg.Geometry(u.Element)
				if before == u.Geometry {
					continue
				}
				if err := r.reg.SetGeometry(u.Element, u.Geometry); err != nil {
					continue
				}
				changed[u.Element] = true
				r.report.History = append(r.report.History, Adjustment{
					Iteration:  iter,
					Element:    u.Element,
					Constraint: c.ID,
					Before:     before,
					After:      u.Geometry,
				})
			}
		}
	}
	return changed
}

// adjustable returns the elements of c that the solver may move: unfrozen,
// not required, and no stronger than the constraint itself.
func (r *run) adjustable(c *model.Constraint) []*model.Element {
	var out []*model.Element
	for _, id := range c.Elements {
		e := r.reg.Element(id)
		if e == nil || e.IsFrozen() || e.Strength == model.Required {
			continue
		}
		if e.Strength < c.Strength {
			continue
		}
		out = append(out, e)
	}
	return out
}

// scoreAll evaluates every constraint concurrently against the post-adjust
// geometry and records the score on each constraint.
func (r *run) scoreAll(ctx context.Context) map[int]float64 {
	cs := r.reg.Constraints()
	results := make([]float64, len(cs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, c := range cs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = constraint.Score(c, r.reg)
			return nil
		})
	}
	_ = g.Wait()

	scores := make(map[int]float64, len(cs))
	for i, c := range cs {
		c.Score = results[i]
		if results[i] < r.opts.Tolerance {
			c.Violations++
			if r.allFrozen(c) {
				// Nothing can move to fix this; warn every iteration the
				// condition holds rather than once at the end.
				r.opts.Logger.Warn("constraint violated by frozen elements",
					"constraint", c.ID,
					"kind", c.Kind,
					"score", results[i])
			}
		}
		scores[c.ID] = results[i]
	}
	return scores
}

// allFrozen reports whether every element of the constraint is frozen.
func (r *run) allFrozen(c *model.Constraint) bool {
	for _, id := range c.Elements {
		if e := r.reg.Element(id); e == nil || !e.IsFrozen() {
			return false
		}
	}
	return true
}

// recordStats appends and returns the stats row for one iteration.
func (r *run) recordStats(iter, adjusted, newFrozen int, scores map[int]float64) IterationStats {
	frozen := 0
	for _, e := range r.reg.Elements() {
		if e.IsFrozen() {
			frozen++
		}
	}

	violated := 0
	mean := 1.0
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
			if s < r.opts.Tolerance {
				violated++
			}
		}
		mean = sum / float64(len(scores))
	}

	stats := IterationStats{
		Iteration: iter,
		Adjusted:  adjusted,
		NewFrozen: newFrozen,
		Frozen:    frozen,
		Violated:  violated,
		MeanScore: mean,
	}
	r.report.PerIteration = append(r.report.PerIteration, stats)
	return stats
}

// allSatisfied reports whether every constraint touching the element scores
// at or above tolerance.
func (r *run) allSatisfied(element int, scores map[int]float64) bool {
	for _, cid := range r.reg.ConstraintsFor(element) {
		if scores[cid] < r.opts.Tolerance {
			return false
		}
	}
	return true
}

// finalize fills the end-of-run report fields.
func (r *run) finalize(reason Reason, start time.Time) {
	for _, c := range r.reg.Constraints() {
		if c.Score >= r.opts.Tolerance {
			continue
		}
		r.report.Outstanding = append(r.report.Outstanding, c.ID)
		if r.allFrozen(c) {
			r.report.FrozenViolations = append(r.report.FrozenViolations, c.ID)
		}
	}

	total := 0.0
	for _, e := range r.reg.Elements() {
		w := e.Strength.Weight()
		if math.IsInf(w, 1) {
			continue
		}
		total += w * e.Deviation()
	}
	r.report.WeightedDeviation = total
	r.report.Reason = reason
	r.report.Elapsed = time.Since(start)
}

// =============================================================================
// Over-Constraint Detection
// =============================================================================

// requiredViolations is the per-iteration record of unsatisfied required
// constraints used by conflict detection.
type requiredViolations struct {
	// deficits maps constraint id to 1 - score.
	deficits map[int]float64
	// blocked marks violated required constraints with no adjustable
	// elements left.
	blocked map[int]bool
	// elements maps constraint id to its affected elements.
	elements map[int][]int
}

func (v *requiredViolations) mass() float64 {
	total := 0.0
	for _, d := range v.deficits {
		total += d
	}
	return total
}

// requiredViolations collects the unsatisfied required constraints of this
// iteration.
func (r *run) requiredViolations(scores map[int]float64) *requiredViolations {
	v := &requiredViolations{
		deficits: make(map[int]float64),
		blocked:  make(map[int]bool),
		elements: make(map[int][]int),
	}
	for _, c := range r.reg.Constraints() {
		if c.Strength != model.Required || scores[c.ID] >= r.opts.Tolerance {
			continue
		}
		v.deficits[c.ID] = 1 - scores[c.ID]
		v.elements[c.ID] = c.Elements
		if len(r.adjustable(c)) == 0 {
			v.blocked[c.ID] = true
		}
	}
	return v
}

// detectConflict decides whether two consecutive iterations of required
// violations prove an unsatisfiable conflict. Two rules apply:
//
//   - A violated required constraint with no adjustable elements in both
//     iterations can never recover.
//   - Two or more required constraints sharing an element stayed violated
//     across the window without their combined deficit shrinking, which is
//     the tug-of-war signature.
func detectConflict(prev, cur *requiredViolations) *Conflict {
	if prev == nil || cur == nil || len(cur.deficits) == 0 || len(prev.deficits) == 0 {
		return nil
	}

	for id := range cur.blocked {
		if prev.blocked[id] {
			return &Conflict{
				Constraints: []int{id},
				Elements:    append([]int(nil), cur.elements[id]...),
			}
		}
	}

	if cur.mass() < prev.mass()-massEpsilon {
		return nil
	}

	// Union the window and look for an element shared by two constraints.
	union := make(map[int][]int, len(cur.elements)+len(prev.elements))
	for id, elems := range prev.elements {
		union[id] = elems
	}
	for id, elems := range cur.elements {
		union[id] = elems
	}

	byElement := make(map[int][]int)
	for id, elems := range union {
		for _, e := range elems {
			byElement[e] = append(byElement[e], id)
		}
	}

	conflict := &Conflict{}
	seen := make(map[int]bool)
	for e, ids := range byElement {
		if len(ids) < 2 {
			continue
		}
		conflict.Elements = append(conflict.Elements, e)
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				conflict.Constraints = append(conflict.Constraints, id)
			}
		}
	}
	if len(conflict.Constraints) < 2 {
		return nil
	}
	sortInts(conflict.Constraints)
	sortInts(conflict.Elements)
	return conflict
}
