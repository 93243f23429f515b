// Package model defines the element and constraint data model for the
// progressive freezing resolution engine.
//
// Elements and constraints are stored in a flat, id-indexed Registry. All
// cross-references between them are stable integer ids rather than pointers,
// which sidesteps the ownership cycles that a reference-based object graph
// would create (a wall referencing a duct referencing a fitting referencing
// the wall). The Registry is the single mutable surface; everything else in
// this package is value types.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
)

var (
	// ErrInvalidElementID is returned by [Registry.AddElement] when the
	// element id is negative. Ids are assigned once by the upstream producer
	// and never reused.
	ErrInvalidElementID = errors.New("element ID must not be negative")

	// ErrDuplicateElementID is returned by [Registry.AddElement] when an
	// element with the same id already exists.
	ErrDuplicateElementID = errors.New("duplicate element ID")

	// ErrUnknownElement is returned when an operation references an element
	// id that does not exist in the registry.
	ErrUnknownElement = errors.New("unknown element")

	// ErrDuplicateConstraintID is returned by [Registry.AddConstraint] when a
	// constraint with the same id already exists.
	ErrDuplicateConstraintID = errors.New("duplicate constraint ID")

	// ErrNoAffectedElements is returned by [Registry.AddConstraint] when a
	// constraint references no elements.
	ErrNoAffectedElements = errors.New("constraint must reference at least one element")

	// ErrFrozenElement is returned by [Registry.SetGeometry] when the target
	// element has already been frozen. Frozen geometry is immutable for the
	// remainder of a run.
	ErrFrozenElement = errors.New("element is frozen")

	// ErrStatusRegression is returned by [Registry.Promote] when the new
	// status would move backwards in the Tentative → Validated → Frozen
	// lifecycle.
	ErrStatusRegression = errors.New("element status must not regress")
)

// Strength ranks how resistant an element or constraint is to being the one
// adjusted. Lower values are stronger; Required elements are never moved.
type Strength int

const (
	Required Strength = iota
	Strong
	Medium
	Weak
)

// Strengths lists all tiers in processing order (strongest first).
var Strengths = []Strength{Required, Strong, Medium, Weak}

// String returns the tier name.
func (s Strength) String() string {
	switch s {
	case Required:
		return "required"
	case Strong:
		return "strong"
	case Medium:
		return "medium"
	case Weak:
		return "weak"
	}
	return fmt.Sprintf("strength(%d)", int(s))
}

// Weight returns the deviation-objective weight for the tier. Weaker elements
// carry larger weights so they absorb adjustments preferentially; Required
// elements weigh infinity and are never adjusted.
func (s Strength) Weight() float64 {
	switch s {
	case Required:
		return math.Inf(1)
	case Strong:
		return 1
	case Medium:
		return 10
	case Weak:
		return 100
	}
	return math.Inf(1)
}

// ParseStrength converts a tier name to a Strength.
func ParseStrength(s string) (Strength, error) {
	switch s {
	case "required":
		return Required, nil
	case "strong":
		return Strong, nil
	case "medium":
		return Medium, nil
	case "weak":
		return Weak, nil
	}
	return 0, fmt.Errorf("invalid strength: %q", s)
}

// Status is the lifecycle state of an element. It is monotonically
// non-decreasing: Tentative → Validated → Frozen, never backwards.
type Status int

const (
	// Tentative elements have not yet had all their constraints satisfied.
	Tentative Status = iota
	// Validated elements have had every referencing constraint satisfied at
	// some iteration boundary. They remain adjustable.
	Validated
	// Frozen elements have immutable geometry for the remainder of the run.
	Frozen
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Validated:
		return "validated"
	case Frozen:
		return "frozen"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts a status name to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "tentative":
		return Tentative, nil
	case "validated":
		return Validated, nil
	case "frozen":
		return Frozen, nil
	}
	return 0, fmt.Errorf("invalid status: %q", s)
}

// Element is one placed building item: a wall, duct segment, fitting, branch,
// fixture, or terminal. The engine mutates Geometry, Status, and Stability;
// everything else is fixed for the lifetime of a run.
type Element struct {
	ID       int
	Kind     string // wall, duct-segment, fitting, branch, terminal, ...
	Strength Strength

	// Geometry is the current placement, mutable until the element freezes.
	Geometry geometry.Geometry
	// Origin is the initial pre-resolution placement, retained for the
	// deviation-minimization objective. Never mutated.
	Origin geometry.Geometry

	Status Status
	// Stability counts consecutive iterations without a geometry change.
	// Reset to zero in the iteration the element is adjusted.
	Stability int

	// Connections are ids of topologically linked elements, used by cascade
	// freezing and the network-continuity constraints.
	Connections []int
}

// IsFrozen reports whether the element's geometry is immutable.
func (e *Element) IsFrozen() bool { return e.Status == Frozen }

// Deviation returns the distance between the element's current position and
// its original placement.
func (e *Element) Deviation() float64 {
	return geometry.Dist(e.Geometry.Position(), e.Origin.Position())
}
