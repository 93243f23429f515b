package model

import (
	"encoding/json"
	"fmt"

	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/geometry"
)

// DocumentVersion is the current wire format version.
const DocumentVersion = 1

// Document is the canonical serialization format for a resolution model:
// the element and constraint set handed over by upstream extraction, and the
// frozen element set handed to downstream persistence. The format is
// human-readable and round-trip faithful: import → resolve → export preserves
// ids, kinds, and connections exactly.
type Document struct {
	Version     int             `json:"version" bson:"version"`
	Elements    []ElementDoc    `json:"elements" bson:"elements"`
	Constraints []ConstraintDoc `json:"constraints" bson:"constraints"`
}

// ElementDoc is the wire form of one element.
type ElementDoc struct {
	ID          int               `json:"id" bson:"id"`
	Kind        string            `json:"kind" bson:"kind"`
	Strength    string            `json:"strength,omitempty" bson:"strength,omitempty"`
	Status      string            `json:"status,omitempty" bson:"status,omitempty"`
	Geometry    geometry.Geometry `json:"geometry" bson:"geometry"`
	Origin      *geometry.Geometry `json:"origin,omitempty" bson:"origin,omitempty"`
	Connections []int             `json:"connections,omitempty" bson:"connections,omitempty"`

	// Attributes classify strength when the Strength field is absent.
	Attributes *Attributes `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// ConstraintDoc is the wire form of one constraint.
type ConstraintDoc struct {
	ID       int    `json:"id" bson:"id"`
	Kind     string `json:"kind" bson:"kind"`
	Strength string `json:"strength" bson:"strength"`
	Elements []int  `json:"elements" bson:"elements"`
	Params   Params `json:"params,omitempty" bson:"params,omitempty"`
	Score    float64 `json:"score,omitempty" bson:"score,omitempty"`
}

// ToRegistry materializes a document into a registry, classifying strength
// from attributes for elements that carry no explicit tier.
func (d Document) ToRegistry() (*Registry, error) {
	if d.Version != 0 && d.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported document version %d", d.Version)
	}

	r := New()
	for _, ed := range d.Elements {
		if err := errors.ValidateElementKind(ed.Kind); err != nil {
			return nil, fmt.Errorf("element %d: %w", ed.ID, err)
		}
		e := Element{
			ID:          ed.ID,
			Kind:        ed.Kind,
			Geometry:    ed.Geometry,
			Connections: ed.Connections,
		}
		if ed.Origin != nil {
			e.Origin = *ed.Origin
		}
		switch {
		case ed.Strength != "":
			s, err := ParseStrength(ed.Strength)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", ed.ID, err)
			}
			e.Strength = s
		case ed.Attributes != nil:
			e.Strength = Classify(*ed.Attributes)
		default:
			e.Strength = Medium
		}
		if ed.Status != "" {
			st, err := ParseStatus(ed.Status)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", ed.ID, err)
			}
			e.Status = st
		}
		if err := r.AddElement(e); err != nil {
			return nil, err
		}
	}

	for _, cd := range d.Constraints {
		kind, err := ParseConstraintKind(cd.Kind)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", cd.ID, err)
		}
		strength, err := ParseStrength(cd.Strength)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", cd.ID, err)
		}
		c := Constraint{
			ID:       cd.ID,
			Kind:     kind,
			Strength: strength,
			Elements: cd.Elements,
			Params:   cd.Params,
		}
		if err := r.AddConstraint(c); err != nil {
			return nil, err
		}
	}

	return r, r.Validate()
}

// FromRegistry converts a registry back to its wire form. Elements and
// constraints are sorted by id for deterministic output.
func FromRegistry(r *Registry) Document {
	d := Document{Version: DocumentVersion}

	for _, e := range r.Elements() {
		origin := e.Origin
		d.Elements = append(d.Elements, ElementDoc{
			ID:          e.ID,
			Kind:        e.Kind,
			Strength:    e.Strength.String(),
			Status:      e.Status.String(),
			Geometry:    e.Geometry,
			Origin:      &origin,
			Connections: e.Connections,
		})
	}

	for _, c := range r.Constraints() {
		d.Constraints = append(d.Constraints, ConstraintDoc{
			ID:       c.ID,
			Kind:     c.Kind.String(),
			Strength: c.Strength.String(),
			Elements: c.Elements,
			Params:   c.Params,
			Score:    c.Score,
		})
	}

	return d
}

// MarshalDocument serializes a document to indented JSON.
func MarshalDocument(d Document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// UnmarshalDocument deserializes JSON bytes to a Document.
func UnmarshalDocument(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}
