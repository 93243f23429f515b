// Package constraint implements the closed catalogue of constraint
// evaluators. Each evaluator is a pure function of the current geometries of
// the constraint's affected elements, returning a satisfaction score in
// [0,1] with 1.0 meaning fully satisfied.
//
// Evaluators never mutate state and read element data only through the View
// interface, so the engine can score all constraints of a tier concurrently
// against one registry snapshot, and the solver can score hypothetical
// placements through an overlay without copying the registry.
package constraint

import (
	"math"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// View provides read-only element state for scoring. *model.Registry
// implements it; the solver wraps it with proposal overlays.
type View interface {
	Geometry(id int) geometry.Geometry
	Kind(id int) string
	Connections(id int) []int
}

// DefaultTolerance is the slack applied by proximity-style evaluators when
// the constraint carries no explicit tolerance parameter.
const DefaultTolerance = 0.5

// Score evaluates a constraint against the element state in v. The result is
// always in [0,1]. Unknown kinds score 0.
func Score(c *model.Constraint, v View) float64 {
	switch c.Kind {
	case model.NoClash:
		return scoreNoClash(c, v)
	case model.DistanceEquals:
		return scoreDistanceEquals(c, v)
	case model.AlignedOnAxis:
		return scoreAlignedOnAxis(c, v)
	case model.WithinBounds:
		return scoreWithinBounds(c, v)
	case model.ClearanceAtLeast:
		return scoreClearanceAtLeast(c, v)
	case model.Connected:
		return scoreConnected(c, v)
	case model.NetworkContinuity:
		return scoreNetworkContinuity(c, v)
	case model.FlowDirectionConsistent:
		return scoreFlowDirection(c, v)
	case model.EndpointSnapWithin:
		return scoreEndpointSnap(c, v)
	case model.LayerConsistent:
		return scoreLayerConsistent(c, v)
	case model.SpacingRule:
		return scoreSpacingRule(c, v)
	case model.CodeRequirement:
		return scoreCodeRequirement(c, v)
	case model.DimensionWithin:
		return scoreDimensionWithin(c, v)
	}
	return 0
}

// clamp01 bounds a score to [0,1].
func clamp01(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}

// proximity maps an error distance to a score: 1.0 within tol, then a linear
// falloff reaching zero at ten times the tolerance.
func proximity(err, tol float64) float64 {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if err <= tol {
		return 1
	}
	return clamp01(1 - (err-tol)/(9*tol))
}

// tolerance returns the constraint's tolerance parameter or the default.
func tolerance(c *model.Constraint) float64 {
	if c.Params.Tolerance > 0 {
		return c.Params.Tolerance
	}
	return DefaultTolerance
}

// scoreNoClash scores 1.0 when the bounding volumes of every element pair are
// disjoint, 0.0 when a pair fully overlaps, with a linear interpolation on
// penetration depth in between. Multi-element constraints take the worst
// pairwise score.
func scoreNoClash(c *model.Constraint, v View) float64 {
	worst := 1.0
	for i := 0; i < len(c.Elements); i++ {
		for j := i + 1; j < len(c.Elements); j++ {
			a := v.Geometry(c.Elements[i]).Bounds()
			b := v.Geometry(c.Elements[j]).Bounds()
			depth := a.PenetrationDepth(b)
			if depth == 0 {
				continue
			}
			// Full overlap is a penetration equal to the smaller body's
			// smaller side.
			full := math.Min(
				math.Min(a.Width(), a.Height()),
				math.Min(b.Width(), b.Height()),
			)
			var s float64
			if full > 0 {
				s = clamp01(1 - depth/full)
			}
			if s < worst {
				worst = s
			}
		}
	}
	return worst
}

// scoreDistanceEquals compares the distance between the first two element
// positions to the target distance.
func scoreDistanceEquals(c *model.Constraint, v View) float64 {
	if len(c.Elements) < 2 {
		return 0
	}
	a := v.Geometry(c.Elements[0]).Position()
	b := v.Geometry(c.Elements[1]).Position()
	err := math.Abs(geometry.Dist(a, b) - c.Params.Target)
	return proximity(err, tolerance(c))
}

// scoreAlignedOnAxis measures the spread of the perpendicular coordinate
// across all element positions.
func scoreAlignedOnAxis(c *model.Constraint, v View) float64 {
	if len(c.Elements) < 2 {
		return 1
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, id := range c.Elements {
		p := v.Geometry(id).Position()
		coord := p.Y
		if c.Params.Axis == model.AxisY {
			coord = p.X
		}
		min = math.Min(min, coord)
		max = math.Max(max, coord)
	}
	return proximity(max-min, tolerance(c))
}

// scoreWithinBounds returns the fraction of each element's bounding box that
// lies inside the region; the constraint takes the worst element.
func scoreWithinBounds(c *model.Constraint, v View) float64 {
	region := c.Params.Region
	worst := 1.0
	for _, id := range c.Elements {
		b := v.Geometry(id).Bounds()
		var s float64
		switch {
		case region.Contains(b):
			s = 1
		case b.Area() == 0:
			// Degenerate boxes score on center containment.
			if region.Contains(geometry.NewBox(b.Center(), b.Center())) {
				s = 1
			}
		default:
			s = region.Intersection(b).Area() / b.Area()
		}
		if s < worst {
			worst = s
		}
	}
	return worst
}

// scoreClearanceAtLeast scores the gap between every element pair against the
// required clearance: 1.0 at or beyond the target, linearly down to 0.0 at
// contact or overlap.
func scoreClearanceAtLeast(c *model.Constraint, v View) float64 {
	if c.Params.Target <= 0 {
		return 1
	}
	worst := 1.0
	for i := 0; i < len(c.Elements); i++ {
		for j := i + 1; j < len(c.Elements); j++ {
			a := v.Geometry(c.Elements[i]).Bounds()
			b := v.Geometry(c.Elements[j]).Bounds()
			s := clamp01(a.Clearance(b) / c.Params.Target)
			if s < worst {
				worst = s
			}
		}
	}
	return worst
}

// scoreConnected checks that consecutive element pairs have coinciding
// endpoints, scoring 1.0 within tolerance and falling off with the gap.
func scoreConnected(c *model.Constraint, v View) float64 {
	if len(c.Elements) < 2 {
		return 1
	}
	tol := tolerance(c)
	worst := 1.0
	for i := 0; i+1 < len(c.Elements); i++ {
		gap := geometry.EndpointGap(v.Geometry(c.Elements[i]), v.Geometry(c.Elements[i+1]))
		if s := proximity(gap, tol); s < worst {
			worst = s
		}
	}
	return worst
}

// scoreNetworkContinuity walks topological connections from the designated
// root and returns the fraction of affected elements reachable from it.
func scoreNetworkContinuity(c *model.Constraint, v View) float64 {
	if len(c.Elements) == 0 {
		return 1
	}
	members := make(map[int]bool, len(c.Elements))
	for _, id := range c.Elements {
		members[id] = true
	}
	root := c.Params.Root
	if !members[root] {
		root = c.Elements[0]
	}

	seen := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range v.Connections(id) {
			if members[n] && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return float64(len(seen)) / float64(len(c.Elements))
}

// scoreFlowDirection checks that consecutive linear elements point the same
// way (or along Params.Direction when set). The score is the fraction of
// consistent pairs.
func scoreFlowDirection(c *model.Constraint, v View) float64 {
	ref := c.Params.Direction
	useRef := ref.X != 0 || ref.Y != 0

	pairs, consistent := 0, 0
	var prev geometry.Geometry
	havePrev := false
	for _, id := range c.Elements {
		g := v.Geometry(id)
		if g.IsPoint() {
			continue // fittings carry no direction
		}
		if useRef {
			pairs++
			d := g.Direction()
			if d.X*ref.X+d.Y*ref.Y >= 0 {
				consistent++
			}
			continue
		}
		if havePrev {
			pairs++
			a, b := prev.Direction(), g.Direction()
			if a.X*b.X+a.Y*b.Y >= 0 {
				consistent++
			}
		}
		prev, havePrev = g, true
	}
	if pairs == 0 {
		return 1
	}
	return float64(consistent) / float64(pairs)
}

// scoreEndpointSnap is a strict form of connected: the largest endpoint gap
// among consecutive pairs must fall within the tolerance.
func scoreEndpointSnap(c *model.Constraint, v View) float64 {
	if len(c.Elements) < 2 {
		return 1
	}
	maxGap := 0.0
	for i := 0; i+1 < len(c.Elements); i++ {
		gap := geometry.EndpointGap(v.Geometry(c.Elements[i]), v.Geometry(c.Elements[i+1]))
		maxGap = math.Max(maxGap, gap)
	}
	return proximity(maxGap, tolerance(c))
}

// scoreLayerConsistent returns the fraction of elements whose kind matches
// the allowed set (or the first element's kind when no set is given).
func scoreLayerConsistent(c *model.Constraint, v View) float64 {
	if len(c.Elements) == 0 {
		return 1
	}
	allowed := make(map[string]bool, len(c.Params.Kinds))
	for _, k := range c.Params.Kinds {
		allowed[k] = true
	}
	if len(allowed) == 0 {
		allowed[v.Kind(c.Elements[0])] = true
	}

	matching := 0
	for _, id := range c.Elements {
		if allowed[v.Kind(id)] {
			matching++
		}
	}
	return float64(matching) / float64(len(c.Elements))
}

// scoreSpacingRule requires every consecutive element pair to sit at least
// Target apart; the score is the worst pair's distance over the target.
func scoreSpacingRule(c *model.Constraint, v View) float64 {
	if c.Params.Target <= 0 || len(c.Elements) < 2 {
		return 1
	}
	worst := 1.0
	for i := 0; i+1 < len(c.Elements); i++ {
		d := geometry.Dist(
			v.Geometry(c.Elements[i]).Position(),
			v.Geometry(c.Elements[i+1]).Position(),
		)
		if s := clamp01(d / c.Params.Target); s < worst {
			worst = s
		}
	}
	return worst
}

// scoreCodeRequirement combines placement-within-region with minimum spacing,
// the common shape of code-mandated placement rules. The score is the worse
// of the two components.
func scoreCodeRequirement(c *model.Constraint, v View) float64 {
	s := 1.0
	if c.Params.Region.Area() > 0 {
		s = scoreWithinBounds(c, v)
	}
	if c.Params.Target > 0 {
		s = math.Min(s, scoreSpacingRule(c, v))
	}
	return s
}

// scoreDimensionWithin checks each element's axis length against [Min, Max].
func scoreDimensionWithin(c *model.Constraint, v View) float64 {
	worst := 1.0
	for _, id := range c.Elements {
		l := v.Geometry(id).Length()
		var err float64
		switch {
		case c.Params.Min > 0 && l < c.Params.Min:
			err = c.Params.Min - l
		case c.Params.Max > 0 && l > c.Params.Max:
			err = l - c.Params.Max
		}
		if s := proximity(err, tolerance(c)); s < worst {
			worst = s
		}
	}
	return worst
}
