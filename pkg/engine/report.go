package engine

import (
	"time"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
)

// Reason describes why a resolution run terminated.
type Reason string

// Termination reasons.
const (
	// ReasonConverged means every constraint reached the satisfaction
	// tolerance and no further adjustments or freezes were pending.
	ReasonConverged Reason = "converged"

	// ReasonTimedOut means the iteration limit or deadline was reached
	// before the layout settled.
	ReasonTimedOut Reason = "timed_out"

	// ReasonOverConstrained means a set of required constraints was
	// detected to be mutually unsatisfiable.
	ReasonOverConstrained Reason = "over_constrained"
)

// Adjustment records a single geometry change applied during resolution.
type Adjustment struct {
	Iteration  int               `json:"iteration" bson:"iteration"`
	Element    int               `json:"element" bson:"element"`
	Constraint int               `json:"constraint" bson:"constraint"`
	Before     geometry.Geometry `json:"before" bson:"before"`
	After      geometry.Geometry `json:"after" bson:"after"`
}

// FreezeEvent records an element becoming immutable.
type FreezeEvent struct {
	Element   int  `json:"element" bson:"element"`
	Iteration int  `json:"iteration" bson:"iteration"`
	Cascade   bool `json:"cascade" bson:"cascade"`
}

// IterationStats summarizes one pass over the constraint set.
type IterationStats struct {
	Iteration int     `json:"iteration" bson:"iteration"`
	Adjusted  int     `json:"adjusted" bson:"adjusted"`
	NewFrozen int     `json:"new_frozen" bson:"new_frozen"`
	Frozen    int     `json:"frozen" bson:"frozen"`
	Violated  int     `json:"violated" bson:"violated"`
	MeanScore float64 `json:"mean_score" bson:"mean_score"`
}

// Conflict identifies the constraints and shared elements behind an
// over-constrained termination.
type Conflict struct {
	Constraints []int `json:"constraints" bson:"constraints"`
	Elements    []int `json:"elements" bson:"elements"`
}

// Report describes the outcome of a resolution run.
type Report struct {
	RunID      string        `json:"run_id" bson:"run_id"`
	Reason     Reason        `json:"reason" bson:"reason"`
	Iterations int           `json:"iterations" bson:"iterations"`
	Elapsed    time.Duration `json:"elapsed" bson:"elapsed"`

	// PerIteration holds one stats row per completed iteration.
	PerIteration []IterationStats `json:"per_iteration" bson:"per_iteration"`

	// History is the ordered list of all geometry adjustments.
	History []Adjustment `json:"history" bson:"history"`

	// FreezeEvents records when each element froze and whether the
	// freeze was cascaded from a neighbor.
	FreezeEvents []FreezeEvent `json:"freeze_events" bson:"freeze_events"`

	// Outstanding lists constraints still below tolerance at the end.
	Outstanding []int `json:"outstanding,omitempty" bson:"outstanding,omitempty"`

	// FrozenViolations lists constraints below tolerance whose affected
	// elements are all frozen. These are reported as warnings rather
	// than failing the run.
	FrozenViolations []int `json:"frozen_violations,omitempty" bson:"frozen_violations,omitempty"`

	// UnderConstrained lists elements with no constraints attached.
	UnderConstrained []int `json:"under_constrained,omitempty" bson:"under_constrained,omitempty"`

	// Conflict is set when Reason is ReasonOverConstrained.
	Conflict *Conflict `json:"conflict,omitempty" bson:"conflict,omitempty"`

	// WeightedDeviation is the final weighted distance of all adjustable
	// elements from their provisional origins.
	WeightedDeviation float64 `json:"weighted_deviation" bson:"weighted_deviation"`
}

// FrozenAt returns the iteration in which the element froze, or -1 when it
// never froze during the run.
func (r *Report) FrozenAt(element int) int {
	for _, ev := range r.FreezeEvents {
		if ev.Element == element {
			return ev.Iteration
		}
	}
	return -1
}

// AdjustmentsFor returns the history entries touching the given element.
func (r *Report) AdjustmentsFor(element int) []Adjustment {
	var out []Adjustment
	for _, a := range r.History {
		if a.Element == element {
			out = append(out, a)
		}
	}
	return out
}
