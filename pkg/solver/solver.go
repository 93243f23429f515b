// Package solver proposes geometry adjustments that raise a constraint's
// satisfaction score.
//
// The Solver interface is the extension point for optimization strategies:
// the shipped Greedy solver applies minimal per-kind corrections weakest
// element first, and stricter strategies (quadratic programming, simulated
// annealing, CSP backtracking) can be dropped in without touching the
// resolution engine.
package solver

import (
	"slices"

	"github.com/kholzweiler/planfreeze/pkg/constraint"
	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// Update is one candidate geometry change for one element.
type Update struct {
	Element  int
	Geometry geometry.Geometry
}

// State is the read-only element state a solver works against.
// *model.Registry implements it.
type State interface {
	constraint.View
	Element(id int) *model.Element
}

// Solver proposes updates for one unsatisfied constraint.
//
// adjustable holds the subset of the constraint's affected elements that the
// engine permits to move: non-frozen, non-Required, and no stronger than the
// constraint itself. Implementations must not mutate state; they return
// candidate updates and the engine applies them atomically per tier.
type Solver interface {
	Propose(c *model.Constraint, adjustable []*model.Element, state State, tolerance float64) []Update
}

// overlay layers proposed geometries over base state so the solver can score
// hypothetical placements without mutating anything.
type overlay struct {
	base    State
	updates map[int]geometry.Geometry
}

func newOverlay(base State) *overlay {
	return &overlay{base: base, updates: make(map[int]geometry.Geometry)}
}

func (o *overlay) set(id int, g geometry.Geometry) { o.updates[id] = g }

func (o *overlay) Geometry(id int) geometry.Geometry {
	if g, ok := o.updates[id]; ok {
		return g
	}
	return o.base.Geometry(id)
}

func (o *overlay) Kind(id int) string       { return o.base.Kind(id) }
func (o *overlay) Connections(id int) []int { return o.base.Connections(id) }

// byAdjustmentPreference orders elements weakest first (highest strength
// numeral), breaking ties by ascending id so proposals are deterministic.
func byAdjustmentPreference(elems []*model.Element) []*model.Element {
	out := slices.Clone(elems)
	slices.SortFunc(out, func(a, b *model.Element) int {
		if a.Strength != b.Strength {
			return int(b.Strength) - int(a.Strength)
		}
		return a.ID - b.ID
	})
	return out
}

// anchor picks the reference element a correction converges toward: frozen
// elements first, then the strongest tier, ties broken by ascending id.
func anchor(c *model.Constraint, state State) *model.Element {
	var best *model.Element
	for _, id := range c.Elements {
		e := state.Element(id)
		if e == nil {
			continue
		}
		if best == nil || anchorRank(e) < anchorRank(best) ||
			(anchorRank(e) == anchorRank(best) && e.ID < best.ID) {
			best = e
		}
	}
	return best
}

// anchorRank orders candidate anchors: frozen beats unfrozen, then stronger
// beats weaker.
func anchorRank(e *model.Element) int {
	rank := int(e.Strength)
	if e.Status != model.Frozen {
		rank += 10
	}
	return rank
}
