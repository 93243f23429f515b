package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/geometry"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

func buildRegistry(t *testing.T, elems []model.Element, cons []model.Constraint) *model.Registry {
	t.Helper()
	reg := model.New()
	for _, e := range elems {
		if err := reg.AddElement(e); err != nil {
			t.Fatalf("AddElement(%d) error: %v", e.ID, err)
		}
	}
	for _, c := range cons {
		if err := reg.AddConstraint(c); err != nil {
			t.Fatalf("AddConstraint(%d) error: %v", c.ID, err)
		}
	}
	return reg
}

// ductworkElements is a small plan: a load-bearing wall, a duct run meeting a
// fitting, a second duct with a placement gap, a branch pinned at a distance
// from the wall, and a weak terminal fixture.
func ductworkElements() []model.Element {
	return []model.Element{
		{ID: 1, Kind: "wall", Strength: model.Required,
			Geometry: geometry.Segment(r2.Vec{X: 50, Y: 0}, r2.Vec{X: 50, Y: 100}, 1)},
		{ID: 2, Kind: "duct", Strength: model.Strong,
			Geometry: geometry.Segment(r2.Vec{X: 10, Y: 50}, r2.Vec{X: 50, Y: 50}, 0)},
		{ID: 3, Kind: "duct", Strength: model.Strong,
			Geometry: geometry.Segment(r2.Vec{X: 53, Y: 50}, r2.Vec{X: 90, Y: 50}, 0)},
		{ID: 4, Kind: "fitting", Strength: model.Strong,
			Geometry: geometry.Point(r2.Vec{X: 50, Y: 50}, 0)},
		{ID: 5, Kind: "branch", Strength: model.Medium,
			Geometry: geometry.Point(r2.Vec{X: 80, Y: 50}, 0)},
		{ID: 6, Kind: "diffuser", Strength: model.Weak,
			Geometry: geometry.Point(r2.Vec{X: 150, Y: 20}, 1)},
	}
}

func ductworkConstraints() []model.Constraint {
	region := geometry.NewBox(r2.Vec{X: 0, Y: -10}, r2.Vec{X: 200, Y: 110})
	return []model.Constraint{
		{ID: 1, Kind: model.WithinBounds, Strength: model.Required, Elements: []int{1},
			Params: model.Params{Region: region}},
		{ID: 2, Kind: model.Connected, Strength: model.Strong, Elements: []int{4, 2}},
		{ID: 3, Kind: model.Connected, Strength: model.Strong, Elements: []int{4, 3}},
		{ID: 4, Kind: model.DistanceEquals, Strength: model.Medium, Elements: []int{1, 5},
			Params: model.Params{Target: 20}},
		{ID: 5, Kind: model.WithinBounds, Strength: model.Weak, Elements: []int{6},
			Params: model.Params{Region: region}},
	}
}

func TestResolveProgressiveFreezeTimeline(t *testing.T) {
	reg := buildRegistry(t, ductworkElements(), ductworkConstraints())

	report, err := Resolve(context.Background(), reg, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if report.Reason != ReasonConverged {
		t.Fatalf("Reason = %v, want %v", report.Reason, ReasonConverged)
	}
	if report.Iterations != 6 {
		t.Errorf("Iterations = %d, want 6", report.Iterations)
	}

	// Freeze order follows the strength tiers: the required wall first,
	// then the settled strong elements after 2 stable iterations, the
	// adjusted duct one iteration later, the medium branch after 5, and
	// the weak diffuser never.
	frozenAt := map[int]int{1: 1, 2: 2, 4: 2, 3: 3, 5: 6, 6: -1}
	for id, want := range frozenAt {
		if got := report.FrozenAt(id); got != want {
			t.Errorf("FrozenAt(%d) = %d, want %d", id, got, want)
		}
	}

	// Only the gapped duct and the branch moved, both in iteration 1.
	if len(report.History) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(report.History))
	}
	for _, a := range report.History {
		if a.Iteration != 1 {
			t.Errorf("adjustment of element %d at iteration %d, want 1", a.Element, a.Iteration)
		}
	}

	wantDuct := geometry.Segment(r2.Vec{X: 50, Y: 50}, r2.Vec{X: 87, Y: 50}, 0)
	if got := reg.Geometry(3); got != wantDuct {
		t.Errorf("duct geometry = %+v, want %+v", got, wantDuct)
	}
	wantBranch := r2.Vec{X: 70, Y: 50}
	if got := reg.Geometry(5).Position(); got != wantBranch {
		t.Errorf("branch position = %+v, want %+v", got, wantBranch)
	}

	// The weak diffuser was satisfied throughout, so it validated but
	// never froze.
	if got := reg.Element(6).Status; got != model.Validated {
		t.Errorf("diffuser status = %v, want %v", got, model.Validated)
	}
	if len(report.Outstanding) != 0 {
		t.Errorf("Outstanding = %v, want none", report.Outstanding)
	}
	if len(report.UnderConstrained) != 0 {
		t.Errorf("UnderConstrained = %v, want none", report.UnderConstrained)
	}
}

func TestResolveOverConstrained(t *testing.T) {
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "column", Strength: model.Required,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 0)},
			{ID: 2, Kind: "column", Strength: model.Required,
				Geometry: geometry.Point(r2.Vec{X: 100, Y: 0}, 0)},
			{ID: 3, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 50, Y: 0}, 0)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.DistanceEquals, Strength: model.Required, Elements: []int{1, 3}},
			{ID: 2, Kind: model.DistanceEquals, Strength: model.Required, Elements: []int{2, 3}},
		},
	)

	report, err := Resolve(context.Background(), reg, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if report.Reason != ReasonOverConstrained {
		t.Fatalf("Reason = %v, want %v", report.Reason, ReasonOverConstrained)
	}
	if report.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", report.Iterations)
	}
	if report.Conflict == nil {
		t.Fatal("Conflict = nil, want conflict details")
	}
	if diff := cmp.Diff([]int{1, 2}, report.Conflict.Constraints); diff != "" {
		t.Errorf("Conflict.Constraints mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, report.Conflict.Elements); diff != "" {
		t.Errorf("Conflict.Elements mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveUnderConstrainedConverges(t *testing.T) {
	region := geometry.NewBox(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 100, Y: 100})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "fixture", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 10}, 1)},
			{ID: 2, Kind: "fixture", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 20, Y: 20}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{2},
				Params: model.Params{Region: region}},
		},
	)

	report, err := Resolve(context.Background(), reg, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if report.Reason != ReasonConverged {
		t.Errorf("Reason = %v, want %v", report.Reason, ReasonConverged)
	}
	if diff := cmp.Diff([]int{1}, report.UnderConstrained); diff != "" {
		t.Errorf("UnderConstrained mismatch (-want +got):\n%s", diff)
	}
	if len(report.History) != 0 {
		t.Errorf("len(History) = %d, want 0", len(report.History))
	}
}

func TestResolveTimedOutOnOscillation(t *testing.T) {
	// Two medium constraints pull the same element toward different
	// anchors. Without required strength there is no conflict abort, so
	// the run exhausts its iteration budget.
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "riser", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 0)},
			{ID: 2, Kind: "riser", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 100, Y: 0}, 0)},
			{ID: 3, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 50, Y: 0}, 0)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.DistanceEquals, Strength: model.Medium, Elements: []int{1, 3}},
			{ID: 2, Kind: model.DistanceEquals, Strength: model.Medium, Elements: []int{2, 3}},
		},
	)

	report, err := Resolve(context.Background(), reg, Options{MaxIterations: 5})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if report.Reason != ReasonTimedOut {
		t.Errorf("Reason = %v, want %v", report.Reason, ReasonTimedOut)
	}
	if report.Iterations != 5 {
		t.Errorf("Iterations = %d, want 5", report.Iterations)
	}
	if len(report.Outstanding) == 0 {
		t.Error("Outstanding is empty, want at least one violated constraint")
	}
}

func TestResolveCanceledContext(t *testing.T) {
	reg := buildRegistry(t, ductworkElements(), ductworkConstraints())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Resolve(ctx, reg, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if report.Reason != ReasonTimedOut {
		t.Errorf("Reason = %v, want %v", report.Reason, ReasonTimedOut)
	}
	if report.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", report.Iterations)
	}
}

func TestResolveCustomFreezeThreshold(t *testing.T) {
	// With a strong threshold of 3, an element adjusted in iteration 1
	// freezes exactly 3 stable iterations later.
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "fitting", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 0)},
			{ID: 2, Kind: "duct", Strength: model.Strong,
				Geometry: geometry.Segment(r2.Vec{X: 4, Y: 0}, r2.Vec{X: 40, Y: 0}, 0)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.Connected, Strength: model.Strong, Elements: []int{1, 2}},
		},
	)

	opts := Options{
		Thresholds: &Thresholds{Required: 0, Strong: 3, Medium: 5, Weak: NeverFreeze},
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if report.Reason != ReasonConverged {
		t.Fatalf("Reason = %v, want %v", report.Reason, ReasonConverged)
	}
	if got := report.FrozenAt(2); got != 4 {
		t.Errorf("FrozenAt(2) = %d, want 4 (adjusted iteration 1 + threshold 3)", got)
	}
}

func TestResolveCascadeFreeze(t *testing.T) {
	// Star topology: the hub freezes by threshold, each satisfied spoke
	// has 100% frozen neighbors and cascades. The weak spoke is exempt.
	region := geometry.NewBox(r2.Vec{X: -50, Y: -50}, r2.Vec{X: 50, Y: 50})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "manifold", Strength: model.Strong, Connections: []int{2, 3, 4, 5},
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 3, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 10}, 1)},
			{ID: 4, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: -10, Y: 0}, 1)},
			{ID: 5, Kind: "valve", Strength: model.Weak,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: -10}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{1, 2, 3, 4, 5},
				Params: model.Params{Region: region}},
		},
	)

	opts := Options{
		Thresholds:    &Thresholds{Required: 0, Strong: 0, Medium: 50, Weak: NeverFreeze},
		MaxIterations: 3,
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if got := report.FrozenAt(1); got != 1 {
		t.Fatalf("FrozenAt(1) = %d, want 1", got)
	}
	for _, id := range []int{2, 3, 4} {
		if got := report.FrozenAt(id); got != 1 {
			t.Errorf("FrozenAt(%d) = %d, want cascade freeze at 1", id, got)
		}
	}
	if got := report.FrozenAt(5); got != -1 {
		t.Errorf("FrozenAt(5) = %d, want -1 (weak elements never cascade)", got)
	}

	cascades := 0
	for _, ev := range report.FreezeEvents {
		if ev.Cascade {
			cascades++
		}
	}
	if cascades != 3 {
		t.Errorf("cascade freeze count = %d, want 3", cascades)
	}
}

func TestResolveNoCascadeBelowFraction(t *testing.T) {
	// Chain topology: the middle element has only half its neighbors
	// frozen, which is below the cascade fraction.
	region := geometry.NewBox(r2.Vec{X: -50, Y: -50}, r2.Vec{X: 50, Y: 50})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "manifold", Strength: model.Strong, Connections: []int{2},
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Medium, Connections: []int{3},
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 3, Kind: "pipe", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 20, Y: 0}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{1, 2, 3},
				Params: model.Params{Region: region}},
		},
	)

	opts := Options{
		Thresholds:    &Thresholds{Required: 0, Strong: 0, Medium: 50, Weak: NeverFreeze},
		MaxIterations: 3,
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if got := report.FrozenAt(1); got != 1 {
		t.Fatalf("FrozenAt(1) = %d, want 1", got)
	}
	if got := report.FrozenAt(2); got != -1 {
		t.Errorf("FrozenAt(2) = %d, want -1 (half-frozen neighborhood must not cascade)", got)
	}
}

func TestResolveStabilityAccruesWhileViolated(t *testing.T) {
	// A layer mismatch has no geometric fix, so the duct and pipe never
	// move. Their stability counters must still earn one per still
	// iteration; dissatisfaction blocks freezing, not counting.
	region := geometry.NewBox(r2.Vec{X: -50, Y: -50}, r2.Vec{X: 50, Y: 50})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 3, Kind: "fixture", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 5, Y: 5}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.LayerConsistent, Strength: model.Strong, Elements: []int{1, 2}},
			{ID: 2, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{3},
				Params: model.Params{Region: region}},
		},
	)

	opts := Options{
		MaxIterations: 4,
		Thresholds:    &Thresholds{Required: 0, Strong: 10, Medium: 10, Weak: NeverFreeze},
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if len(report.History) != 0 {
		t.Fatalf("len(History) = %d, want 0", len(report.History))
	}
	for _, id := range []int{1, 2} {
		if got := reg.Element(id).Stability; got != 4 {
			t.Errorf("Stability of unchanged element %d = %d after 4 iterations, want 4", id, got)
		}
		if got := report.FrozenAt(id); got != -1 {
			t.Errorf("FrozenAt(%d) = %d, want -1 (violated elements must not freeze)", id, got)
		}
	}
}

func TestResolveNoCascadeAtExactFraction(t *testing.T) {
	// The hub has five connections and four freeze in iteration 1. At
	// exactly the cascade fraction (4/5 = 0.8) the neighborhood does not
	// count as mostly frozen, so the hub stays adjustable.
	region := geometry.NewBox(r2.Vec{X: -50, Y: -50}, r2.Vec{X: 50, Y: 50})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "manifold", Strength: model.Medium, Connections: []int{2, 3, 4, 5, 6},
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 3, Kind: "pipe", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 10}, 1)},
			{ID: 4, Kind: "pipe", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: -10, Y: 0}, 1)},
			{ID: 5, Kind: "pipe", Strength: model.Strong,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: -10}, 1)},
			{ID: 6, Kind: "valve", Strength: model.Weak,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 10}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{1, 2, 3, 4, 5, 6},
				Params: model.Params{Region: region}},
		},
	)

	opts := Options{
		Thresholds:    &Thresholds{Required: 0, Strong: 0, Medium: 50, Weak: NeverFreeze},
		MaxIterations: 3,
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	for _, id := range []int{2, 3, 4, 5} {
		if got := report.FrozenAt(id); got != 1 {
			t.Fatalf("FrozenAt(%d) = %d, want 1", id, got)
		}
	}
	if got := report.FrozenAt(1); got != -1 {
		t.Errorf("FrozenAt(1) = %d, want -1 (fraction must strictly exceed the cascade threshold)", got)
	}
}

func TestResolveWarnsFrozenViolationEachIteration(t *testing.T) {
	// A violated constraint whose elements are all frozen is warned about
	// in every iteration the condition holds, not once at the end.
	region := geometry.NewBox(r2.Vec{X: -50, Y: -50}, r2.Vec{X: 50, Y: 50})
	reg := buildRegistry(t,
		[]model.Element{
			{ID: 1, Kind: "duct", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Point(r2.Vec{X: 0, Y: 0}, 1)},
			{ID: 2, Kind: "pipe", Strength: model.Strong, Status: model.Frozen,
				Geometry: geometry.Point(r2.Vec{X: 10, Y: 0}, 1)},
			{ID: 3, Kind: "fixture", Strength: model.Medium,
				Geometry: geometry.Point(r2.Vec{X: 5, Y: 5}, 1)},
		},
		[]model.Constraint{
			{ID: 1, Kind: model.LayerConsistent, Strength: model.Strong, Elements: []int{1, 2}},
			{ID: 2, Kind: model.WithinBounds, Strength: model.Medium, Elements: []int{3},
				Params: model.Params{Region: region}},
		},
	)

	var buf bytes.Buffer
	opts := Options{
		MaxIterations: 3,
		Thresholds:    &Thresholds{Required: 0, Strong: 10, Medium: 10, Weak: NeverFreeze},
		Logger:        log.New(&buf),
	}
	report, err := Resolve(context.Background(), reg, opts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if diff := cmp.Diff([]int{1}, report.FrozenViolations); diff != "" {
		t.Errorf("FrozenViolations mismatch (-want +got):\n%s", diff)
	}
	if got := strings.Count(buf.String(), "constraint violated by frozen elements"); got != 3 {
		t.Errorf("frozen-violation warnings = %d over 3 iterations, want 3", got)
	}
}

func TestResolveFrozenElementsNeverMove(t *testing.T) {
	reg := buildRegistry(t, ductworkElements(), ductworkConstraints())

	report, err := Resolve(context.Background(), reg, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// No adjustment may postdate the element's freeze.
	for _, a := range report.History {
		if frozen := report.FrozenAt(a.Element); frozen != -1 && a.Iteration > frozen {
			t.Errorf("element %d adjusted in iteration %d after freezing in %d",
				a.Element, a.Iteration, frozen)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	// The same plan inserted in different orders must produce identical
	// histories, freeze timelines, and final geometry.
	elems := ductworkElements()
	cons := ductworkConstraints()

	reversedElems := make([]model.Element, len(elems))
	for i, e := range elems {
		reversedElems[len(elems)-1-i] = e
	}
	reversedCons := make([]model.Constraint, len(cons))
	for i, c := range cons {
		reversedCons[len(cons)-1-i] = c
	}

	regA := buildRegistry(t, elems, cons)
	regB := buildRegistry(t, reversedElems, reversedCons)

	reportA, err := Resolve(context.Background(), regA, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	reportB, err := Resolve(context.Background(), regB, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if diff := cmp.Diff(reportA.History, reportB.History); diff != "" {
		t.Errorf("History mismatch (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(reportA.FreezeEvents, reportB.FreezeEvents); diff != "" {
		t.Errorf("FreezeEvents mismatch (-a +b):\n%s", diff)
	}
	if reportA.Iterations != reportB.Iterations {
		t.Errorf("Iterations: %d vs %d", reportA.Iterations, reportB.Iterations)
	}
	for _, e := range regA.Elements() {
		if ga, gb := regA.Geometry(e.ID), regB.Geometry(e.ID); ga != gb {
			t.Errorf("element %d geometry: %+v vs %+v", e.ID, ga, gb)
		}
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"Defaults", Options{}, false},
		{"ExplicitValid", Options{Tolerance: 0.9, MaxIterations: 10, CascadeFraction: 0.5}, false},
		{"ToleranceTooHigh", Options{Tolerance: 1.5}, true},
		{"ToleranceNegative", Options{Tolerance: -0.1}, true},
		{"CascadeTooHigh", Options{CascadeFraction: 2}, true},
		{"NegativeIterations", Options{MaxIterations: -1}, true},
		{"NegativeParallelism", Options{Parallelism: -2}, true},
		{"BadThreshold", Options{Thresholds: &Thresholds{Required: -2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidOptions) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidOptions)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}

	if opts.Tolerance != DefaultTolerance {
		t.Errorf("Tolerance = %v, want %v", opts.Tolerance, DefaultTolerance)
	}
	if opts.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %v, want %v", opts.MaxIterations, DefaultMaxIterations)
	}
	if opts.CascadeFraction != DefaultCascadeFraction {
		t.Errorf("CascadeFraction = %v, want %v", opts.CascadeFraction, DefaultCascadeFraction)
	}
	if got := opts.Thresholds.For(model.Weak); got != NeverFreeze {
		t.Errorf("weak threshold = %d, want %d", got, NeverFreeze)
	}
	if opts.Solver == nil {
		t.Error("Solver = nil, want default greedy solver")
	}
	if opts.Logger == nil {
		t.Error("Logger = nil, want discard logger")
	}
}
