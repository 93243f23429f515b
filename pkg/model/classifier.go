package model

// Attributes are the strength-relevant properties the upstream extractor
// attaches to each element. They are the only input to classification.
type Attributes struct {
	// Structural marks load-bearing elements (walls, columns).
	Structural bool `json:"structural,omitempty" bson:"structural,omitempty"`
	// Dimensioned marks elements whose placement was explicitly dimensioned
	// in the source drawing.
	Dimensioned bool `json:"dimensioned,omitempty" bson:"dimensioned,omitempty"`
	// PrimaryDistribution marks main runs of a distribution network (trunk
	// ducts, risers, mains).
	PrimaryDistribution bool `json:"primary_distribution,omitempty" bson:"primary_distribution,omitempty"`
	// TerminalFixture marks end-of-network items (diffusers, fixtures,
	// terminals).
	TerminalFixture bool `json:"terminal_fixture,omitempty" bson:"terminal_fixture,omitempty"`
}

// Classify assigns a strength tier from element attributes. It is a pure
// function: identical attributes always yield the identical tier, regardless
// of resolution state.
//
// Precedence, strongest first: structural elements are Required; explicitly
// dimensioned elements are Strong; primary distribution runs are Strong;
// terminal fixtures are Weak; everything else defaults to Medium.
func Classify(a Attributes) Strength {
	switch {
	case a.Structural:
		return Required
	case a.Dimensioned:
		return Strong
	case a.PrimaryDistribution:
		return Strong
	case a.TerminalFixture:
		return Weak
	}
	return Medium
}
