package solver

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kholzweiler/planfreeze/pkg/constraint"
	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

const testTolerance = 0.95

func testRegistry(t *testing.T, elems []model.Element, c model.Constraint) *model.Registry {
	t.Helper()
	reg := model.New()
	for _, e := range elems {
		if err := reg.AddElement(e); err != nil {
			t.Fatalf("AddElement(%d) error: %v", e.ID, err)
		}
	}
	if err := reg.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint error: %v", err)
	}
	return reg
}

func adjustableOf(reg *model.Registry, ids ...int) []*model.Element {
	out := make([]*model.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, reg.Element(id))
	}
	return out
}

// applyAll plays proposals back into the registry and rescoring the
// constraint tells us whether the correction resolved the violation.
func applyAll(t *testing.T, reg *model.Registry, updates []Update) {
	t.Helper()
	for _, u := range updates {
		if err := reg.SetGeometry(u.Element, u.Geometry); err != nil {
			t.Fatalf("SetGeometry(%d) error: %v", u.Element, err)
		}
	}
}

func TestGreedySeparatesClash(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "wall", Strength: model.Required, Status: model.Frozen,
				Geometry: geometry.Segment(r2.Vec{X: 50, Y: 0}, r2.Vec{X: 50, Y: 100}, 1)},
			{ID: 2, Kind: "duct", Strength: model.Medium,
				Geometry: geometry.Segment(r2.Vec{X: 49, Y: 40}, r2.Vec{X: 49, Y: 60}, 1)},
		},
		model.Constraint{ID: 1, Kind: model.NoClash, Strength: model.Required, Elements: []int{1, 2}},
	)
	c := reg.Constraint(1)

	updates := NewGreedy().Propose(c, adjustableOf(reg, 2), reg, testTolerance)
	if len(updates) != 1 || updates[0].Element != 2 {
		t.Fatalf("Propose() = %v, want single update for element 2", updates)
	}
	applyAll(t, reg, updates)
	if got := constraint.Score(c, reg); got < testTolerance {
		t.Errorf("Score() after correction = %v, want >= %v", got, testTolerance)
	}
}

func TestGreedyClosesConnectionGap(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 4, Kind: "fitting", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Point(r2.Vec{X: 50, Y: 50}, 0)},
			{ID: 3, Kind: "duct", Strength: model.Strong,
				Geometry: geometry.Segment(r2.Vec{X: 53, Y: 50}, r2.Vec{X: 90, Y: 50}, 0)},
		},
		model.Constraint{ID: 1, Kind: model.Connected, Strength: model.Strong, Elements: []int{4, 3},
			Params: model.Params{Tolerance: 0.5}},
	)

	updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 3), reg, testTolerance)
	if len(updates) != 1 {
		t.Fatalf("Propose() returned %d updates, want 1", len(updates))
	}
	want := geometry.Segment(r2.Vec{X: 50, Y: 50}, r2.Vec{X: 87, Y: 50}, 0)
	if updates[0].Geometry != want {
		t.Errorf("Propose() geometry = %+v, want %+v", updates[0].Geometry, want)
	}
}

func TestGreedyMatchesDistance(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "column", Strength: model.Required, Status: model.Frozen,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 0)},
			{ID: 2, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 3, Y: 0}, 0)},
		},
		model.Constraint{ID: 1, Kind: model.DistanceEquals, Strength: model.Medium, Elements: []int{1, 2},
			Params: model.Params{Target: 10, Tolerance: 0.5}},
	)

	updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 2), reg, testTolerance)
	if len(updates) != 1 {
		t.Fatalf("Propose() returned %d updates, want 1", len(updates))
	}
	got := geometry.Dist(updates[0].Geometry.Position(), r2.Vec{X: 0, Y: 0})
	if math.Abs(got-10) > 1e-9 {
		t.Errorf("distance after correction = %v, want 10", got)
	}
}

func TestGreedyAlignsOnAxis(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Segment(r2.Vec{X: 0, Y: 20}, r2.Vec{X: 40, Y: 20}, 0)},
			{ID: 2, Kind: "duct", Strength: model.Medium,
				Geometry: geometry.Segment(r2.Vec{X: 50, Y: 26}, r2.Vec{X: 90, Y: 26}, 0)},
		},
		model.Constraint{ID: 1, Kind: model.AlignedOnAxis, Strength: model.Medium, Elements: []int{1, 2},
			Params: model.Params{Axis: model.AxisX, Tolerance: 0.5}},
	)

	updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 2), reg, testTolerance)
	if len(updates) != 1 {
		t.Fatalf("Propose() returned %d updates, want 1", len(updates))
	}
	if got := updates[0].Geometry.Position().Y; got != 20 {
		t.Errorf("aligned Y = %v, want 20", got)
	}
	if got := updates[0].Geometry.Position().X; got != 70 {
		t.Errorf("X after alignment = %v, want 70 (unchanged)", got)
	}
}

func TestGreedyMovesIntoBounds(t *testing.T) {
	region := geometry.NewBox(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 100, Y: 100})
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "fixture", Strength: model.Weak,
				Geometry: geometry.Point(r2.Vec{X: 104, Y: 50}, 2)},
		},
		model.Constraint{ID: 1, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{1},
			Params: model.Params{Region: region}},
	)
	c := reg.Constraint(1)

	updates := NewGreedy().Propose(c, adjustableOf(reg, 1), reg, testTolerance)
	applyAll(t, reg, updates)
	if got := constraint.Score(c, reg); got != 1 {
		t.Errorf("Score() after correction = %v, want 1", got)
	}
	if got := reg.Geometry(1).Position(); got != (r2.Vec{X: 98, Y: 50}) {
		t.Errorf("position = %+v, want (98,50): minimal translation only", got)
	}
}

func TestGreedyReversesFlow(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "pipe", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Segment(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, 0)},
			{ID: 2, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Segment(r2.Vec{X: 20, Y: 0}, r2.Vec{X: 10, Y: 0}, 0)},
		},
		model.Constraint{ID: 1, Kind: model.FlowDirectionConsistent, Strength: model.Medium, Elements: []int{1, 2}},
	)

	updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 2), reg, testTolerance)
	if len(updates) != 1 {
		t.Fatalf("Propose() returned %d updates, want 1", len(updates))
	}
	want := geometry.Segment(r2.Vec{X: 10, Y: 0}, r2.Vec{X: 20, Y: 0}, 0)
	if updates[0].Geometry != want {
		t.Errorf("Propose() geometry = %+v, want reversed segment %+v", updates[0].Geometry, want)
	}
}

func TestGreedyResizesToDimensionBounds(t *testing.T) {
	tests := []struct {
		name       string
		geom       geometry.Geometry
		params     model.Params
		wantLength float64
	}{
		{
			name:       "TooShort",
			geom:       geometry.Segment(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 4, Y: 0}, 0),
			params:     model.Params{Min: 10, Max: 50},
			wantLength: 10,
		},
		{
			name:       "TooLong",
			geom:       geometry.Segment(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 80, Y: 0}, 0),
			params:     model.Params{Min: 10, Max: 50},
			wantLength: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry(t,
				[]model.Element{{ID: 1, Kind: "duct", Strength: model.Medium, Geometry: tt.geom}},
				model.Constraint{ID: 1, Kind: model.DimensionWithin, Strength: model.Medium,
					Elements: []int{1}, Params: tt.params},
			)
			updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 1), reg, testTolerance)
			if len(updates) != 1 {
				t.Fatalf("Propose() returned %d updates, want 1", len(updates))
			}
			if got := updates[0].Geometry.Length(); math.Abs(got-tt.wantLength) > 1e-9 {
				t.Errorf("Length() = %v, want %v", got, tt.wantLength)
			}
			if got := updates[0].Geometry.Position(); got != tt.geom.Position() {
				t.Errorf("Position() = %+v, want midpoint preserved at %+v", got, tt.geom.Position())
			}
		})
	}
}

func TestGreedyLayerMismatchHasNoGeometricFix(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Medium, Geometry: geometry.Point(r2.Vec{}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Medium, Geometry: geometry.Point(r2.Vec{X: 5}, 1)},
		},
		model.Constraint{ID: 1, Kind: model.LayerConsistent, Strength: model.Medium, Elements: []int{1, 2},
			Params: model.Params{Kinds: []string{"duct"}}},
	)

	if updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 1, 2), reg, testTolerance); updates != nil {
		t.Errorf("Propose() = %v, want nil for kind mismatch", updates)
	}
}

func TestGreedyAdjustsWeakestFirst(t *testing.T) {
	// Both elements are adjustable; only the weaker should move.
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Strong,
				Geometry: geometry.Segment(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 2, Kind: "fixture", Strength: model.Weak,
				Geometry: geometry.Point(r2.Vec{X: 9, Y: 0}, 1)},
		},
		model.Constraint{ID: 1, Kind: model.NoClash, Strength: model.Weak, Elements: []int{1, 2}},
	)

	updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 1, 2), reg, testTolerance)
	if len(updates) != 1 {
		t.Fatalf("Propose() returned %d updates, want 1", len(updates))
	}
	if updates[0].Element != 2 {
		t.Errorf("adjusted element = %d, want weak element 2", updates[0].Element)
	}
}

func TestGreedySatisfiedConstraintProposesNothing(t *testing.T) {
	reg := testRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Medium, Geometry: geometry.Point(r2.Vec{}, 1)},
			{ID: 2, Kind: "duct", Strength: model.Medium, Geometry: geometry.Point(r2.Vec{X: 50}, 1)},
		},
		model.Constraint{ID: 1, Kind: model.NoClash, Strength: model.Medium, Elements: []int{1, 2}},
	)

	if updates := NewGreedy().Propose(reg.Constraint(1), adjustableOf(reg, 1, 2), reg, testTolerance); updates != nil {
		t.Errorf("Propose() = %v, want nil for satisfied constraint", updates)
	}
}
