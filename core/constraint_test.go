package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/mission-planner/model"
)

type stubContext struct{}

func (stubContext) Domain() model.Domain { return model.DomainAircraft }

func fixed(vs ...Violation) Evaluator {
	return func(*model.MissionPlan, DomainContext) ([]Violation, error) {
		return vs, nil
	}
}

func TestSetEvaluate_EmptyReportWhenSatisfied(t *testing.T) {
	set, err := NewSet(
		Constraint{ID: "a", Kind: Hard, Evaluate: fixed()},
		Constraint{ID: "b", Kind: Soft, Evaluate: fixed(Violation{Magnitude: 0, Entity: "x"})},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	rep, err := set.Evaluate(&model.MissionPlan{}, stubContext{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rep.Empty() || !rep.Feasible() {
		t.Fatalf("expected empty feasible report, got %s", rep)
	}
	if rep.Evaluated != 2 {
		t.Fatalf("Evaluated = %d, want 2", rep.Evaluated)
	}
}

func TestSetEvaluate_HardAndSoft(t *testing.T) {
	set, err := NewSet(
		Constraint{ID: "energy", Kind: Hard, Evaluate: fixed(Violation{Magnitude: 12, Entity: "waypoint:7"})},
		Constraint{ID: "latency", Kind: Soft, Weight: 10, Evaluate: fixed(Violation{Magnitude: 2, Entity: "obs-1"})},
		Constraint{ID: "altitude", Kind: Hard, Evaluate: fixed(Violation{Magnitude: -5, Entity: "waypoint:2"})},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	rep, err := set.Evaluate(&model.MissionPlan{}, stubContext{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.Feasible() {
		t.Fatalf("expected infeasible report")
	}
	if got := len(rep.Hard()); got != 2 {
		t.Fatalf("hard violations = %d, want 2", got)
	}
	if got := rep.Penalty(); got != 20 {
		t.Fatalf("penalty = %v, want 20", got)
	}
	if got := rep.Magnitude("altitude"); got != 5 {
		t.Fatalf("altitude magnitude = %v, want 5", got)
	}
	// Sorted by constraint id regardless of registration order.
	if rep.Violations[0].ConstraintID != "altitude" || rep.Violations[2].ConstraintID != "latency" {
		t.Fatalf("unexpected ordering: %+v", rep.Violations)
	}
}

func TestSetEvaluate_OrderIndependent(t *testing.T) {
	a := Constraint{ID: "a", Kind: Hard, Evaluate: fixed(Violation{Magnitude: 1, Entity: "e1"})}
	b := Constraint{ID: "b", Kind: Soft, Evaluate: fixed(Violation{Magnitude: 3, Entity: "e2"})}

	s1, _ := NewSet(a, b)
	s2, _ := NewSet(b, a)
	r1, _ := s1.Evaluate(&model.MissionPlan{}, stubContext{})
	r2, _ := s2.Evaluate(&model.MissionPlan{}, stubContext{})
	if r1.String() != r2.String() {
		t.Fatalf("reports differ:\n%s\n%s", r1, r2)
	}
}

func TestSetEvaluate_EvaluatorFailureIsFatal(t *testing.T) {
	boom := errors.New("boom")
	set, _ := NewSet(Constraint{ID: "broken", Evaluate: func(*model.MissionPlan, DomainContext) ([]Violation, error) {
		return nil, boom
	}})
	_, err := set.Evaluate(&model.MissionPlan{}, stubContext{})
	if !errors.Is(err, ErrEvaluator) || !errors.Is(err, boom) {
		t.Fatalf("expected evaluator error wrapping boom, got %v", err)
	}

	panicking, _ := NewSet(Constraint{ID: "panics", Evaluate: func(*model.MissionPlan, DomainContext) ([]Violation, error) {
		panic("index out of range")
	}})
	_, err = panicking.Evaluate(&model.MissionPlan{}, stubContext{})
	var ee *EvaluatorError
	if !errors.As(err, &ee) || ee.ID != "panics" {
		t.Fatalf("expected EvaluatorError for panics, got %v", err)
	}
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	_, err := NewSet(
		Constraint{ID: "a", Evaluate: fixed()},
		Constraint{ID: "a", Evaluate: fixed()},
	)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func constObjective(id string, sense Sense, weight, v float64) Objective {
	return Objective{ID: id, Sense: sense, Weight: weight, Compute: func(*model.MissionPlan, DomainContext) (float64, error) {
		return v, nil
	}}
}

func TestObjectiveSetWeighted(t *testing.T) {
	set := ObjectiveSet{Mode: Weighted, Objectives: []Objective{
		constObjective("time", Minimize, 2, 100),
		constObjective("value", Maximize, 1, 30),
	}}
	if err := set.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	sc, err := set.Score(&model.MissionPlan{}, stubContext{}, 5)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := 2*100.0 - 30 + 5; sc.Value != want {
		t.Fatalf("Value = %v, want %v", sc.Value, want)
	}
	if sc.Raw["value"] != 30 {
		t.Fatalf("raw value = %v", sc.Raw["value"])
	}
}

func TestObjectiveZeroWeightIsIgnored(t *testing.T) {
	set := ObjectiveSet{Mode: Weighted, Objectives: []Objective{
		constObjective("time", Minimize, 1, 100),
		constObjective("distance", Minimize, 0, 5000),
	}}
	sc, err := set.Score(&model.MissionPlan{}, stubContext{}, 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if sc.Value != 100 {
		t.Fatalf("value = %v, want 100", sc.Value)
	}
	if sc.Raw["distance"] != 5000 || len(sc.Levels) != 3 {
		t.Fatalf("zero-weight objective not reported: %+v", sc)
	}
}

func TestObjectiveSetLexicographic(t *testing.T) {
	mk := func(penalty, first, second float64) Score {
		set := ObjectiveSet{Mode: Lexicographic, Objectives: []Objective{
			constObjective("science", Maximize, 0, first),
			constObjective("downlinks", Maximize, 0, second),
		}}
		sc, err := set.Score(&model.MissionPlan{}, stubContext{}, penalty)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		return sc
	}
	better := mk(0, 10, 1)
	worse := mk(0, 9, 100)
	if !better.Less(worse) {
		t.Fatalf("first objective should dominate: %+v vs %+v", better.Levels, worse.Levels)
	}
	penalised := mk(1, 100, 100)
	if !better.Less(penalised) {
		t.Fatalf("soft penalty should dominate objectives")
	}
}

func TestObjectiveNonFiniteIsEvaluatorError(t *testing.T) {
	set := ObjectiveSet{Objectives: []Objective{constObjective("bad", Minimize, 1, math.NaN())}}
	if _, err := set.Score(&model.MissionPlan{}, stubContext{}, 0); !errors.Is(err, ErrEvaluator) {
		t.Fatalf("expected evaluator error, got %v", err)
	}
}

func TestConfigErrorNamesField(t *testing.T) {
	err := InvalidConfig("aircraft.battery_capacity_wh", "must be positive")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "aircraft.battery_capacity_wh" {
		t.Fatalf("expected ConfigError naming field, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig")
	}
	if _, err := ParseMode("pareto"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid mode error, got %v", err)
	}
}
