package solver

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kholzweiler/planfreeze/pkg/constraint"
	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// separationMargin is added to clash corrections so separated bodies do not
// sit exactly on each other's border, where floating point noise could
// re-trigger the clash next iteration.
const separationMargin = 1e-3

// Greedy is the default adjustment heuristic: it walks the adjustable
// elements weakest first, applies the minimal geometric correction for the
// constraint's kind, and stops as soon as the projected score reaches the
// satisfaction tolerance. The weighted deviation objective is honored by
// construction - weaker elements absorb corrections before stronger ones are
// touched, and each correction is the smallest that resolves the violation.
type Greedy struct{}

// NewGreedy creates the default greedy solver.
func NewGreedy() *Greedy { return &Greedy{} }

// Propose implements Solver.
func (s *Greedy) Propose(c *model.Constraint, adjustable []*model.Element, state State, tol float64) []Update {
	if len(adjustable) == 0 {
		return nil
	}

	before := constraint.Score(c, state)
	ov := newOverlay(state)
	var updates []Update

	for _, e := range byAdjustmentPreference(adjustable) {
		if constraint.Score(c, ov) >= tol {
			break
		}
		g, ok := s.correct(c, e, ov, state)
		if !ok || g == ov.Geometry(e.ID) {
			continue
		}
		ov.set(e.ID, g)
		updates = append(updates, Update{Element: e.ID, Geometry: g})
	}

	// Only hand back proposals that actually help.
	if constraint.Score(c, ov) <= before {
		return nil
	}
	return updates
}

// correct computes the minimal correction of element e for constraint c.
// The boolean is false when the kind cannot be fixed by moving e.
func (s *Greedy) correct(c *model.Constraint, e *model.Element, ov *overlay, state State) (geometry.Geometry, bool) {
	switch c.Kind {
	case model.NoClash:
		return s.separate(c, e, ov), true
	case model.DistanceEquals:
		return s.matchDistance(c, e, ov, state), true
	case model.AlignedOnAxis:
		return s.align(c, e, ov, state), true
	case model.WithinBounds, model.CodeRequirement:
		g := s.moveIntoRegion(c, e, ov)
		if c.Kind == model.CodeRequirement && c.Params.Target > 0 {
			// Apply the spacing component on top of the region component.
			tmp := *e
			tmp.Geometry = g
			g = s.spread(c, &tmp, ov)
		}
		return g, true
	case model.ClearanceAtLeast:
		return s.pushApart(c, e, ov), true
	case model.Connected, model.EndpointSnapWithin, model.NetworkContinuity:
		return s.snap(c, e, ov, state), true
	case model.FlowDirectionConsistent:
		return s.alignFlow(c, e, ov), true
	case model.SpacingRule:
		return s.spread(c, e, ov), true
	case model.DimensionWithin:
		return s.resize(c, e, ov), true
	case model.LayerConsistent:
		// Kind mismatches are not a geometric problem; nothing to move.
		return geometry.Geometry{}, false
	}
	return geometry.Geometry{}, false
}

// separate translates e out of the deepest overlap with any other affected
// element, using the smallest translation that clears that partner.
func (s *Greedy) separate(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	g := ov.Geometry(e.ID)
	eb := g.Bounds()

	var worstDepth float64
	var worst geometry.Box
	for _, id := range c.Elements {
		if id == e.ID {
			continue
		}
		ob := ov.Geometry(id).Bounds()
		if depth := ob.PenetrationDepth(eb); depth > worstDepth {
			worstDepth = depth
			worst = ob
		}
	}
	if worstDepth == 0 {
		return g
	}
	return g.Translate(minSeparation(eb, worst))
}

// minSeparation returns the shortest translation of b that clears o, with a
// small margin so the separated borders do not touch. Ties between the four
// candidate directions resolve toward positive axes.
func minSeparation(b, o geometry.Box) r2.Vec {
	candidates := []r2.Vec{
		{X: o.Max.X - b.Min.X + separationMargin},
		{X: -(b.Max.X - o.Min.X + separationMargin)},
		{Y: o.Max.Y - b.Min.Y + separationMargin},
		{Y: -(b.Max.Y - o.Min.Y + separationMargin)},
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if r2.Norm(cand) < r2.Norm(best) {
			best = cand
		}
	}
	return best
}

// matchDistance moves e along the line to the anchor so their distance equals
// the target.
func (s *Greedy) matchDistance(c *model.Constraint, e *model.Element, ov *overlay, state State) geometry.Geometry {
	ref := anchor(c, state)
	if ref == nil || ref.ID == e.ID {
		// e is the strongest affected element; pull any other element as
		// the reference instead.
		for _, id := range c.Elements {
			if id != e.ID {
				ref = state.Element(id)
				break
			}
		}
		if ref == nil {
			return ov.Geometry(e.ID)
		}
	}

	g := ov.Geometry(e.ID)
	from := ov.Geometry(ref.ID).Position()
	to := g.Position()
	dir := r2.Sub(to, from)
	n := r2.Norm(dir)
	if n == 0 {
		dir = r2.Vec{X: 1}
		n = 1
	}
	target := r2.Add(from, r2.Scale(c.Params.Target/n, dir))
	return g.Translate(r2.Sub(target, to))
}

// align snaps e's perpendicular coordinate to the anchor's.
func (s *Greedy) align(c *model.Constraint, e *model.Element, ov *overlay, state State) geometry.Geometry {
	ref := anchor(c, state)
	if ref == nil || ref.ID == e.ID {
		return ov.Geometry(e.ID)
	}
	g := ov.Geometry(e.ID)
	delta := r2.Sub(ov.Geometry(ref.ID).Position(), g.Position())
	if c.Params.Axis == model.AxisY {
		return g.Translate(r2.Vec{X: delta.X})
	}
	return g.Translate(r2.Vec{Y: delta.Y})
}

// moveIntoRegion translates e minimally so its bounds fit the region.
func (s *Greedy) moveIntoRegion(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	region := c.Params.Region
	if region.Area() == 0 {
		return ov.Geometry(e.ID)
	}
	g := ov.Geometry(e.ID)
	b := g.Bounds()

	var delta r2.Vec
	if b.Min.X < region.Min.X {
		delta.X = region.Min.X - b.Min.X
	} else if b.Max.X > region.Max.X {
		delta.X = region.Max.X - b.Max.X
	}
	if b.Min.Y < region.Min.Y {
		delta.Y = region.Min.Y - b.Min.Y
	} else if b.Max.Y > region.Max.Y {
		delta.Y = region.Max.Y - b.Max.Y
	}
	return g.Translate(delta)
}

// pushApart moves e away from its nearest affected partner until the
// clearance target is met.
func (s *Greedy) pushApart(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	g := ov.Geometry(e.ID)
	eb := g.Bounds()

	// Find the partner with the worst clearance deficit.
	var worst *geometry.Box
	deficit := 0.0
	for _, id := range c.Elements {
		if id == e.ID {
			continue
		}
		ob := ov.Geometry(id).Bounds()
		if d := c.Params.Target - eb.Clearance(ob); d > deficit {
			deficit = d
			worst = &ob
		}
	}
	if worst == nil {
		return g
	}

	dir := r2.Sub(eb.Center(), worst.Center())
	n := r2.Norm(dir)
	if n == 0 {
		dir = r2.Vec{X: 1}
		n = 1
	}
	return g.Translate(r2.Scale((deficit+separationMargin)/n, dir))
}

// snap translates e so its nearest endpoint coincides with the nearest
// endpoint of its reference neighbor in the constraint's element order.
func (s *Greedy) snap(c *model.Constraint, e *model.Element, ov *overlay, state State) geometry.Geometry {
	ref := s.snapReference(c, e, state)
	if ref < 0 {
		return ov.Geometry(e.ID)
	}

	g := ov.Geometry(e.ID)
	rg := ov.Geometry(ref)

	// Pick the endpoint pair with the smallest gap and close it.
	target := rg.NearestEndpoint(g.Position())
	own := g.NearestEndpoint(target)
	return g.Translate(r2.Sub(target, own))
}

// snapReference chooses which neighbor e should snap to: the adjacent
// element in the ordered affected list with the strongest anchor rank.
func (s *Greedy) snapReference(c *model.Constraint, e *model.Element, state State) int {
	idx := -1
	for i, id := range c.Elements {
		if id == e.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}

	best := -1
	bestRank := math.MaxInt
	for _, j := range []int{idx - 1, idx + 1} {
		if j < 0 || j >= len(c.Elements) {
			continue
		}
		n := state.Element(c.Elements[j])
		if n == nil {
			continue
		}
		if r := anchorRank(n); r < bestRank {
			bestRank = r
			best = n.ID
		}
	}
	return best
}

// alignFlow reverses e so its direction agrees with the reference direction
// (or with the preceding segment).
func (s *Greedy) alignFlow(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	g := ov.Geometry(e.ID)
	if g.IsPoint() {
		return g
	}

	ref := c.Params.Direction
	if ref == (r2.Vec{}) {
		// Use the first non-point predecessor's direction.
		for _, id := range c.Elements {
			if id == e.ID {
				break
			}
			if og := ov.Geometry(id); !og.IsPoint() {
				ref = og.Direction()
			}
		}
	}
	if ref == (r2.Vec{}) {
		return g
	}

	d := g.Direction()
	if d.X*ref.X+d.Y*ref.Y < 0 {
		return g.Reverse()
	}
	return g
}

// spread pushes e away from the consecutive neighbor it crowds.
func (s *Greedy) spread(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	if c.Params.Target <= 0 {
		return ov.Geometry(e.ID)
	}
	g := ov.Geometry(e.ID)

	idx := -1
	for i, id := range c.Elements {
		if id == e.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return g
	}

	for _, j := range []int{idx - 1, idx + 1} {
		if j < 0 || j >= len(c.Elements) {
			continue
		}
		np := ov.Geometry(c.Elements[j]).Position()
		d := geometry.Dist(g.Position(), np)
		if d >= c.Params.Target {
			continue
		}
		dir := r2.Sub(g.Position(), np)
		n := r2.Norm(dir)
		if n == 0 {
			dir = r2.Vec{X: 1}
			n = 1
		}
		g = g.Translate(r2.Scale((c.Params.Target-d+separationMargin)/n, dir))
	}
	return g
}

// resize scales e's segment about its midpoint to the nearest dimension
// bound.
func (s *Greedy) resize(c *model.Constraint, e *model.Element, ov *overlay) geometry.Geometry {
	g := ov.Geometry(e.ID)
	l := g.Length()

	var want float64
	switch {
	case c.Params.Min > 0 && l < c.Params.Min:
		want = c.Params.Min
	case c.Params.Max > 0 && l > c.Params.Max:
		want = c.Params.Max
	default:
		return g
	}
	if l == 0 {
		// A point cannot be stretched along an axis it does not have.
		return g
	}

	mid := g.Position()
	dir := g.Direction()
	half := r2.Scale(want/2, dir)
	return geometry.Geometry{
		Start:  r2.Sub(mid, half),
		End:    r2.Add(mid, half),
		Extent: g.Extent,
	}
}

// Ensure Greedy implements Solver.
var _ Solver = (*Greedy)(nil)
