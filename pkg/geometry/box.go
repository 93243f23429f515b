package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Box is an axis-aligned bounding rectangle.
type Box struct {
	Min r2.Vec `json:"min" bson:"min"`
	Max r2.Vec `json:"max" bson:"max"`
}

// NewBox creates a box from two corner points, normalizing the corners so
// Min is the lower-left and Max the upper-right.
func NewBox(a, b r2.Vec) Box {
	return Box{
		Min: r2.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: r2.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// Width returns the horizontal size of the box.
func (b Box) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical size of the box.
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Area returns the area of the box.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Center returns the center point of the box.
func (b Box) Center() r2.Vec {
	return r2.Scale(0.5, r2.Add(b.Min, b.Max))
}

// Intersects reports whether the two boxes share any area. Touching edges do
// not count as intersection.
func (b Box) Intersects(o Box) bool {
	return b.Min.X < o.Max.X && o.Min.X < b.Max.X &&
		b.Min.Y < o.Max.Y && o.Min.Y < b.Max.Y
}

// Intersection returns the overlapping region of two boxes. The zero Box is
// returned when they do not intersect.
func (b Box) Intersection(o Box) Box {
	if !b.Intersects(o) {
		return Box{}
	}
	return Box{
		Min: r2.Vec{X: math.Max(b.Min.X, o.Min.X), Y: math.Max(b.Min.Y, o.Min.Y)},
		Max: r2.Vec{X: math.Min(b.Max.X, o.Max.X), Y: math.Min(b.Max.Y, o.Max.Y)},
	}
}

// Contains reports whether o lies entirely within b.
func (b Box) Contains(o Box) bool {
	return b.Min.X <= o.Min.X && b.Min.Y <= o.Min.Y &&
		b.Max.X >= o.Max.X && b.Max.Y >= o.Max.Y
}

// PenetrationDepth returns how deep the two boxes overlap: the smallest
// translation distance that would separate them. Zero when disjoint.
func (b Box) PenetrationDepth(o Box) float64 {
	if !b.Intersects(o) {
		return 0
	}
	inter := b.Intersection(o)
	return math.Min(inter.Width(), inter.Height())
}

// SeparationAxis returns the unit vector along which moving o by
// PenetrationDepth separates it from b. When the boxes are disjoint or
// concentric on an axis the vector may be zero in that component; callers
// treat the zero vector as "push along +X".
func (b Box) SeparationAxis(o Box) r2.Vec {
	inter := b.Intersection(o)
	if inter.Area() == 0 && !b.Intersects(o) {
		return r2.Vec{}
	}
	// Push along the axis with the smaller overlap, away from b's center.
	dir := r2.Sub(o.Center(), b.Center())
	if inter.Width() <= inter.Height() {
		if dir.X < 0 {
			return r2.Vec{X: -1}
		}
		return r2.Vec{X: 1}
	}
	if dir.Y < 0 {
		return r2.Vec{Y: -1}
	}
	return r2.Vec{Y: 1}
}

// Clearance returns the gap between two boxes: the shortest distance between
// their borders. Zero when they touch or overlap.
func (b Box) Clearance(o Box) float64 {
	dx := math.Max(0, math.Max(o.Min.X-b.Max.X, b.Min.X-o.Max.X))
	dy := math.Max(0, math.Max(o.Min.Y-b.Max.Y, b.Min.Y-o.Max.Y))
	return math.Hypot(dx, dy)
}
