package model

import (
	"fmt"
	"slices"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
)

// Registry is the flat, id-indexed store of element and constraint state for
// one resolution run. It owns all mutation: geometry updates and status
// promotions go through methods that enforce the lifecycle invariants
// (frozen geometry is immutable, status never regresses).
//
// The zero value is not usable - use New. Registry is not safe for concurrent
// mutation; the engine owns it exclusively during a run and readers may only
// take snapshots between iterations.
type Registry struct {
	elements    map[int]*Element
	constraints map[int]*Constraint
	byElement   map[int][]int // element id -> referencing constraint ids
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		elements:    make(map[int]*Element),
		constraints: make(map[int]*Constraint),
		byElement:   make(map[int][]int),
	}
}

// AddElement adds an element to the registry. The element's Origin is
// captured from its Geometry when unset.
func (r *Registry) AddElement(e Element) error {
	if e.ID < 0 {
		return ErrInvalidElementID
	}
	if _, ok := r.elements[e.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateElementID, e.ID)
	}
	if e.Origin == (geometry.Geometry{}) {
		e.Origin = e.Geometry
	}
	r.elements[e.ID] = &e
	return nil
}

// AddConstraint adds a constraint. Every referenced element must already
// exist; a dangling reference is a contract violation and fails immediately.
func (r *Registry) AddConstraint(c Constraint) error {
	if _, ok := r.constraints[c.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateConstraintID, c.ID)
	}
	if len(c.Elements) == 0 {
		return fmt.Errorf("%w: constraint %d", ErrNoAffectedElements, c.ID)
	}
	for _, id := range c.Elements {
		if _, ok := r.elements[id]; !ok {
			return fmt.Errorf("%w: constraint %d references element %d", ErrUnknownElement, c.ID, id)
		}
	}
	r.constraints[c.ID] = &c
	for _, id := range c.Elements {
		r.byElement[id] = append(r.byElement[id], c.ID)
	}
	return nil
}

// Element returns the element with the given id, or nil.
func (r *Registry) Element(id int) *Element {
	return r.elements[id]
}

// Constraint returns the constraint with the given id, or nil.
func (r *Registry) Constraint(id int) *Constraint {
	return r.constraints[id]
}

// Elements returns all elements sorted by id. The sorted order is part of
// the determinism contract: every engine traversal uses it.
func (r *Registry) Elements() []*Element {
	out := make([]*Element, 0, len(r.elements))
	for _, e := range r.elements {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Element) int { return a.ID - b.ID })
	return out
}

// Constraints returns all constraints sorted by id.
func (r *Registry) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(r.constraints))
	for _, c := range r.constraints {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Constraint) int { return a.ID - b.ID })
	return out
}

// ConstraintsFor returns the ids of constraints referencing the element,
// sorted ascending.
func (r *Registry) ConstraintsFor(elementID int) []int {
	ids := slices.Clone(r.byElement[elementID])
	slices.Sort(ids)
	return ids
}

// ElementCount returns the number of elements.
func (r *Registry) ElementCount() int { return len(r.elements) }

// ConstraintCount returns the number of constraints.
func (r *Registry) ConstraintCount() int { return len(r.constraints) }

// SetGeometry updates an element's geometry and resets its stability counter.
// Frozen elements reject the update.
func (r *Registry) SetGeometry(id int, g geometry.Geometry) error {
	e, ok := r.elements[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	if e.Status == Frozen {
		return fmt.Errorf("%w: %d", ErrFrozenElement, id)
	}
	e.Geometry = g
	e.Stability = 0
	return nil
}

// Promote raises an element's lifecycle status. Equal status is a no-op;
// regression is an error.
func (r *Registry) Promote(id int, s Status) error {
	e, ok := r.elements[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	if s < e.Status {
		return fmt.Errorf("%w: element %d %s -> %s", ErrStatusRegression, id, e.Status, s)
	}
	e.Status = s
	return nil
}

// Geometry implements the constraint evaluation view.
func (r *Registry) Geometry(id int) geometry.Geometry {
	if e, ok := r.elements[id]; ok {
		return e.Geometry
	}
	return geometry.Geometry{}
}

// Kind implements the constraint evaluation view.
func (r *Registry) Kind(id int) string {
	if e, ok := r.elements[id]; ok {
		return e.Kind
	}
	return ""
}

// Connections implements the constraint evaluation view.
func (r *Registry) Connections(id int) []int {
	if e, ok := r.elements[id]; ok {
		return e.Connections
	}
	return nil
}

// Clone returns a deep copy of the registry. Used for what-if evaluation and
// snapshot exports; the clone shares nothing with the original.
func (r *Registry) Clone() *Registry {
	out := New()
	for id, e := range r.elements {
		cp := *e
		cp.Connections = slices.Clone(e.Connections)
		out.elements[id] = &cp
	}
	for id, c := range r.constraints {
		cp := *c
		cp.Elements = slices.Clone(c.Elements)
		cp.Params.Kinds = slices.Clone(c.Params.Kinds)
		out.constraints[id] = &cp
	}
	for id, cs := range r.byElement {
		out.byElement[id] = slices.Clone(cs)
	}
	return out
}

// Validate checks referential integrity: every constraint element and every
// connection id must resolve to a known element.
func (r *Registry) Validate() error {
	for _, c := range r.Constraints() {
		for _, id := range c.Elements {
			if _, ok := r.elements[id]; !ok {
				return fmt.Errorf("%w: constraint %d references element %d", ErrUnknownElement, c.ID, id)
			}
		}
	}
	for _, e := range r.Elements() {
		for _, id := range e.Connections {
			if _, ok := r.elements[id]; !ok {
				return fmt.Errorf("%w: element %d connects to element %d", ErrUnknownElement, e.ID, id)
			}
		}
	}
	return nil
}
