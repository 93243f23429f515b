package model

import (
	"fmt"

	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ConstraintKind selects which evaluator applies to a constraint. The
// catalogue is closed and versioned: evaluators dispatch on this tag via a
// switch, never via open-ended interfaces.
type ConstraintKind int

const (
	// Geometric family.
	NoClash ConstraintKind = iota
	DistanceEquals
	AlignedOnAxis
	WithinBounds
	ClearanceAtLeast

	// Topological family.
	Connected
	NetworkContinuity
	FlowDirectionConsistent
	EndpointSnapWithin

	// Semantic family.
	LayerConsistent
	SpacingRule
	CodeRequirement
	DimensionWithin
)

// constraintKindNames maps kinds to their wire names.
var constraintKindNames = map[ConstraintKind]string{
	NoClash:                 "no_clash",
	DistanceEquals:          "distance_equals",
	AlignedOnAxis:           "aligned_on_axis",
	WithinBounds:            "within_bounds",
	ClearanceAtLeast:        "clearance_at_least",
	Connected:               "connected",
	NetworkContinuity:       "network_continuity",
	FlowDirectionConsistent: "flow_direction_consistent",
	EndpointSnapWithin:      "endpoint_snap_within",
	LayerConsistent:         "layer_or_kind_consistent",
	SpacingRule:             "spacing_rule_satisfied",
	CodeRequirement:         "code_requirement_met",
	DimensionWithin:         "dimension_within",
}

// String returns the wire name of the kind.
func (k ConstraintKind) String() string {
	if s, ok := constraintKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("constraint(%d)", int(k))
}

// ParseConstraintKind converts a wire name to a ConstraintKind.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	for k, name := range constraintKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid constraint kind: %q", s)
}

// Axis selects a coordinate axis for alignment constraints.
type Axis int

const (
	AxisX Axis = iota // elements share a Y coordinate (horizontal alignment)
	AxisY             // elements share an X coordinate (vertical alignment)
)

// Params carries the kind-specific parameters of a constraint. Only the
// fields relevant to the constraint's kind are consulted; the rest stay zero.
type Params struct {
	// Target is the required distance (distance_equals), minimum clearance
	// (clearance_at_least), or minimum spacing (spacing_rule_satisfied,
	// code_requirement_met).
	Target float64 `json:"target,omitempty" bson:"target,omitempty"`

	// Tolerance is the slack within which the constraint scores 1.0
	// (connected, endpoint_snap_within, distance_equals). Zero means the
	// evaluator default.
	Tolerance float64 `json:"tolerance,omitempty" bson:"tolerance,omitempty"`

	// Min and Max bound element length for dimension_within.
	Min float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max float64 `json:"max,omitempty" bson:"max,omitempty"`

	// Axis selects the alignment axis for aligned_on_axis.
	Axis Axis `json:"axis,omitempty" bson:"axis,omitempty"`

	// Region bounds element placement for within_bounds and
	// code_requirement_met.
	Region geometry.Box `json:"region,omitempty" bson:"region,omitempty"`

	// Root designates the network root element for network_continuity.
	Root int `json:"root,omitempty" bson:"root,omitempty"`

	// Kinds lists the element kinds permitted by layer_or_kind_consistent.
	// Empty means all affected elements must share one kind.
	Kinds []string `json:"kinds,omitempty" bson:"kinds,omitempty"`

	// Direction is the required flow direction reference for
	// flow_direction_consistent. Zero means consecutive-pair consistency.
	Direction r2.Vec `json:"direction,omitempty" bson:"direction,omitempty"`
}

// Constraint is one requirement linking one or more elements. The engine
// mutates Score and Violations; everything else is fixed for a run.
type Constraint struct {
	ID       int
	Kind     ConstraintKind
	Strength Strength

	// Elements is the ordered list of affected element ids.
	Elements []int

	Params Params

	// Score is the last computed satisfaction in [0,1]; 1.0 = satisfied.
	Score float64
	// Violations counts iterations where Score stayed below tolerance.
	Violations int
}
