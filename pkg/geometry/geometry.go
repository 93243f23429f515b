// Package geometry provides the 2D primitives the resolution engine operates
// on: positions, linear segments, and axis-aligned bounding boxes.
//
// Element geometry is deliberately small and value-typed. The engine copies
// geometries freely (origin snapshots, proposal overlays, adjustment history),
// so everything here must be comparable and cheap to copy. Vector math is
// delegated to gonum's spatial/r2 package.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Geometry describes the placement of one building element.
//
// Point elements (fittings, fixtures, terminals) have Start == End. Linear
// elements (walls, duct segments, pipes) span Start to End. Extent is the
// half-thickness perpendicular to the axis for linear elements, or the radius
// for point elements.
type Geometry struct {
	Start  r2.Vec  `json:"start" bson:"start"`
	End    r2.Vec  `json:"end" bson:"end"`
	Extent float64 `json:"extent,omitempty" bson:"extent,omitempty"`
}

// Point creates a point geometry at p with the given radius.
func Point(p r2.Vec, radius float64) Geometry {
	return Geometry{Start: p, End: p, Extent: radius}
}

// Segment creates a linear geometry from a to b with the given half-thickness.
func Segment(a, b r2.Vec, halfThickness float64) Geometry {
	return Geometry{Start: a, End: b, Extent: halfThickness}
}

// IsPoint reports whether the geometry degenerates to a single point.
func (g Geometry) IsPoint() bool {
	return g.Start == g.End
}

// Position returns the representative position: the midpoint for linear
// elements, the location itself for point elements.
func (g Geometry) Position() r2.Vec {
	return r2.Scale(0.5, r2.Add(g.Start, g.End))
}

// Length returns the axis length of the geometry (zero for point elements).
func (g Geometry) Length() float64 {
	return r2.Norm(r2.Sub(g.End, g.Start))
}

// Direction returns the unit vector from Start to End, or the zero vector for
// point elements.
func (g Geometry) Direction() r2.Vec {
	d := r2.Sub(g.End, g.Start)
	n := r2.Norm(d)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, d)
}

// Translate returns a copy of the geometry moved by delta.
func (g Geometry) Translate(delta r2.Vec) Geometry {
	return Geometry{
		Start:  r2.Add(g.Start, delta),
		End:    r2.Add(g.End, delta),
		Extent: g.Extent,
	}
}

// Reverse returns a copy with Start and End swapped. Used to flip the flow
// direction of linear elements without moving them.
func (g Geometry) Reverse() Geometry {
	return Geometry{Start: g.End, End: g.Start, Extent: g.Extent}
}

// Bounds returns the axis-aligned bounding box of the geometry, inflated by
// its extent.
func (g Geometry) Bounds() Box {
	return Box{
		Min: r2.Vec{X: math.Min(g.Start.X, g.End.X) - g.Extent, Y: math.Min(g.Start.Y, g.End.Y) - g.Extent},
		Max: r2.Vec{X: math.Max(g.Start.X, g.End.X) + g.Extent, Y: math.Max(g.Start.Y, g.End.Y) + g.Extent},
	}
}

// Endpoints returns the two endpoints of the geometry. For point elements
// both are the same location.
func (g Geometry) Endpoints() (r2.Vec, r2.Vec) {
	return g.Start, g.End
}

// NearestEndpoint returns the endpoint of g closest to p.
func (g Geometry) NearestEndpoint(p r2.Vec) r2.Vec {
	if Dist(g.Start, p) <= Dist(g.End, p) {
		return g.Start
	}
	return g.End
}

// EndpointGap returns the smallest distance between any endpoint of a and any
// endpoint of b. It is the measure used by connectivity constraints.
func EndpointGap(a, b Geometry) float64 {
	gap := Dist(a.Start, b.Start)
	for _, d := range []float64{
		Dist(a.Start, b.End),
		Dist(a.End, b.Start),
		Dist(a.End, b.End),
	} {
		if d < gap {
			gap = d
		}
	}
	return gap
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}
