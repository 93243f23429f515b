package engine

import (
	"context"
	"sort"

	"github.com/kholzweiler/planfreeze/pkg/model"
	"github.com/kholzweiler/planfreeze/pkg/observability"
)

// freezePass updates stability counters from this iteration's outcome and
// freezes every element that crossed its tier threshold, then cascades
// through frozen neighborhoods with a worklist. Returns the number of
// elements frozen this iteration.
func (r *run) freezePass(ctx context.Context, iter int, scores map[int]float64, changed map[int]bool) int {
	var worklist []int

	for _, e := range r.reg.Elements() {
		if e.IsFrozen() {
			continue
		}

		// Stability tracks geometry only: moved elements had their counter
		// reset by SetGeometry, every element that sat still earns one,
		// whether or not its constraints are currently met.
		if !changed[e.ID] {
			e.Stability++
		}

		// Satisfaction gates promotion and freezing, never the counter.
		if !r.allSatisfied(e.ID, scores) {
			continue
		}
		if e.Status == model.Tentative {
			_ = r.reg.Promote(e.ID, model.Validated)
		}

		if th := r.opts.Thresholds.For(e.Strength); th >= 0 && e.Stability >= th {
			r.freeze(ctx, e, iter, false)
			worklist = append(worklist, e.ID)
		}
	}

	frozen := len(worklist)

	// Cascade: a satisfied element whose neighborhood is mostly frozen is
	// not going anywhere either. Weak elements are exempt, they stay
	// adjustable for later refinement passes.
	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]

		for _, nid := range r.neighbors[id] {
			n := r.reg.Element(nid)
			if n == nil || n.IsFrozen() || n.Strength == model.Weak {
				continue
			}
			if !r.allSatisfied(nid, scores) {
				continue
			}
			// Strictly exceeds: a neighborhood at exactly the cascade
			// fraction is not "mostly frozen" yet.
			if r.frozenFraction(nid) <= r.opts.CascadeFraction {
				continue
			}
			r.freeze(ctx, n, iter, true)
			worklist = append(worklist, nid)
			frozen++
		}
	}
	return frozen
}

// freeze marks the element immutable and records the event.
func (r *run) freeze(ctx context.Context, e *model.Element, iter int, cascade bool) {
	_ = r.reg.Promote(e.ID, model.Frozen)
	r.report.FreezeEvents = append(r.report.FreezeEvents, FreezeEvent{
		Element:   e.ID,
		Iteration: iter,
		Cascade:   cascade,
	})
	observability.Engine().OnElementFrozen(ctx, e.ID, iter, cascade)
	r.opts.Logger.Debug("element frozen",
		"element", e.ID,
		"kind", e.Kind,
		"iteration", iter,
		"cascade", cascade)
}

// frozenFraction returns the fraction of the element's connections that are
// frozen. Elements without connections cannot cascade.
func (r *run) frozenFraction(id int) float64 {
	ns := r.neighbors[id]
	if len(ns) == 0 {
		return 0
	}
	frozen := 0
	for _, nid := range ns {
		if e := r.reg.Element(nid); e != nil && e.IsFrozen() {
			frozen++
		}
	}
	return float64(frozen) / float64(len(ns))
}

// pendingFreezes reports whether any unfrozen element with a finite freeze
// threshold has all its constraints satisfied. Such an element will freeze
// once its stability counter catches up, so the run is not yet settled even
// when no geometry moved.
func (r *run) pendingFreezes(scores map[int]float64) bool {
	for _, e := range r.reg.Elements() {
		if e.IsFrozen() {
			continue
		}
		if r.opts.Thresholds.For(e.Strength) < 0 {
			continue
		}
		if r.allSatisfied(e.ID, scores) {
			return true
		}
	}
	return false
}

// neighborMap builds the undirected connection adjacency of the registry,
// with each neighbor list sorted for deterministic traversal.
func neighborMap(reg *model.Registry) map[int][]int {
	set := make(map[int]map[int]bool)
	add := func(a, b int) {
		if set[a] == nil {
			set[a] = make(map[int]bool)
		}
		set[a][b] = true
	}
	for _, e := range reg.Elements() {
		for _, c := range e.Connections {
			add(e.ID, c)
			add(c, e.ID)
		}
	}

	out := make(map[int][]int, len(set))
	for id, ns := range set {
		list := make([]int, 0, len(ns))
		for n := range ns {
			list = append(list, n)
		}
		sort.Ints(list)
		out[id] = list
	}
	return out
}

func sortInts(s []int) { sort.Ints(s) }
