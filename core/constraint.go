package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/mission-planner/model"
)

// Kind separates constraints that decide feasibility from those that only
// cost objective value.
type Kind int

const (
	Hard Kind = iota
	Soft
)

func (k Kind) String() string {
	if k == Soft {
		return "soft"
	}
	return "hard"
}

// DomainContext carries the read-only physics state an evaluator needs
// (wind field, propagator, subject catalogue, ...). Implementations live in
// the domain packages.
type DomainContext interface {
	Domain() model.Domain
}

// Violation is one measured breach of a constraint. Magnitude is zero when
// satisfied; any non-zero value (positive or negative) is a violation.
type Violation struct {
	ConstraintID string  `json:"constraint_id"`
	Kind         Kind    `json:"kind"`
	Magnitude    float64 `json:"magnitude"`
	Entity       string  `json:"entity"`
	Detail       string  `json:"detail,omitempty"`
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s[%s] %s magnitude=%.6g", v.ConstraintID, v.Kind, v.Entity, v.Magnitude)
	if v.Detail != "" {
		s += " (" + v.Detail + ")"
	}
	return s
}

// Evaluator measures a candidate plan against one constraint. It must be pure
// and deterministic for a given plan and context. Returned violations with a
// zero magnitude are discarded.
type Evaluator func(plan *model.MissionPlan, dctx DomainContext) ([]Violation, error)

// Constraint is a named predicate over candidate plans.
type Constraint struct {
	ID          string
	Kind        Kind
	Description string
	// Weight scales soft violation magnitudes into objective penalty. Hard
	// constraints ignore it.
	Weight   float64
	Evaluate Evaluator
}

// Set is an unordered collection of constraints. Evaluation order does not
// affect the resulting report.
type Set struct {
	constraints []Constraint
	ids         map[string]struct{}
}

// NewSet builds a Set, rejecting duplicate or empty IDs and missing
// evaluators.
func NewSet(cs ...Constraint) (*Set, error) {
	s := &Set{ids: make(map[string]struct{}, len(cs))}
	for _, c := range cs {
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a constraint to the set.
func (s *Set) Add(c Constraint) error {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if c.ID == "" {
		return fmt.Errorf("constraint has empty id")
	}
	if c.Evaluate == nil {
		return fmt.Errorf("constraint %q has no evaluator", c.ID)
	}
	if _, dup := s.ids[c.ID]; dup {
		return fmt.Errorf("constraint %q already defined", c.ID)
	}
	if c.Kind == Soft && c.Weight == 0 {
		c.Weight = 1
	}
	s.ids[c.ID] = struct{}{}
	s.constraints = append(s.constraints, c)
	return nil
}

// Len returns the number of constraints.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.constraints)
}

// Constraints returns a copy of the constraints in insertion order.
func (s *Set) Constraints() []Constraint {
	if s == nil {
		return nil
	}
	return append([]Constraint(nil), s.constraints...)
}

// Weight returns the soft weight registered for id, or 0.
func (s *Set) Weight(id string) float64 {
	for _, c := range s.Constraints() {
		if c.ID == id {
			return c.Weight
		}
	}
	return 0
}

// Evaluate runs every evaluator against the plan and folds the results into a
// Report. An evaluator error or panic aborts with an *EvaluatorError.
func (s *Set) Evaluate(plan *model.MissionPlan, dctx DomainContext) (*Report, error) {
	report := &Report{weights: make(map[string]float64)}
	if s == nil {
		return report, nil
	}
	for _, c := range s.constraints {
		vs, err := runEvaluator(c, plan, dctx)
		if err != nil {
			return nil, &EvaluatorError{ID: c.ID, Err: err}
		}
		report.Evaluated++
		report.weights[c.ID] = c.Weight
		for _, v := range vs {
			if v.Magnitude == 0 {
				continue
			}
			if math.IsNaN(v.Magnitude) {
				return nil, &EvaluatorError{ID: c.ID, Err: fmt.Errorf("NaN magnitude for %s", v.Entity)}
			}
			v.ConstraintID = c.ID
			v.Kind = c.Kind
			report.Violations = append(report.Violations, v)
		}
	}
	sort.SliceStable(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.ConstraintID != b.ConstraintID {
			return a.ConstraintID < b.ConstraintID
		}
		return a.Entity < b.Entity
	})
	return report, nil
}

func runEvaluator(c Constraint, plan *model.MissionPlan, dctx DomainContext) (vs []Violation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Evaluate(plan, dctx)
}
