package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/mission-planner/model"
)

// Sense is the optimisation direction of an objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// sign maps a sense onto the minimisation convention.
func (s Sense) sign() float64 {
	if s == Maximize {
		return -1
	}
	return 1
}

// Objective is a scalar function over candidate plans.
type Objective struct {
	ID    string
	Sense Sense
	// Weight scales the objective in a weighted sum. Zero keeps it in the
	// score's raw values and levels without counting it in Value.
	Weight  float64
	Compute func(plan *model.MissionPlan, dctx DomainContext) (float64, error)
}

// Mode selects how several objectives combine into one score.
type Mode string

const (
	// Weighted sums sign-normalised objectives times their weights.
	Weighted Mode = "weighted"
	// Lexicographic compares objectives in declaration order.
	Lexicographic Mode = "lexicographic"
)

// ParseMode accepts "", "weighted" or "lexicographic".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Weighted:
		return Weighted, nil
	case Lexicographic:
		return Lexicographic, nil
	default:
		return "", InvalidConfig("objective.mode", "unknown mode %q", s)
	}
}

// ObjectiveSet is the combined optimisation target of a planning problem.
type ObjectiveSet struct {
	Mode       Mode
	Objectives []Objective
}

// Validate checks the set is usable.
func (o ObjectiveSet) Validate() error {
	if len(o.Objectives) == 0 {
		return InvalidConfig("objective", "at least one objective is required")
	}
	seen := make(map[string]struct{}, len(o.Objectives))
	for i, obj := range o.Objectives {
		field := fmt.Sprintf("objective[%d]", i)
		if obj.ID == "" {
			return InvalidConfig(field, "empty id")
		}
		if _, dup := seen[obj.ID]; dup {
			return InvalidConfig(field, "duplicate objective %q", obj.ID)
		}
		seen[obj.ID] = struct{}{}
		if obj.Compute == nil {
			return InvalidConfig(field, "objective %q has no compute function", obj.ID)
		}
		if o.Mode == Weighted && (obj.Weight < 0 || math.IsNaN(obj.Weight)) {
			return InvalidConfig(field+".weight", "must be non-negative, got %v", obj.Weight)
		}
	}
	return nil
}

// Score is the combined objective value of one plan, oriented so that lower is
// better.
type Score struct {
	Mode Mode `json:"mode"`
	// Value is the weighted total, or the first level for lexicographic
	// scores.
	Value float64 `json:"value"`
	// Levels holds the soft-constraint penalty followed by each
	// sign-normalised objective.
	Levels []float64 `json:"levels"`
	// Raw holds each objective's value in its own sense, keyed by id.
	Raw map[string]float64 `json:"raw"`
}

// Less reports whether s is strictly better than other.
func (s Score) Less(other Score) bool {
	if s.Mode == Lexicographic {
		for i := 0; i < len(s.Levels) && i < len(other.Levels); i++ {
			if s.Levels[i] != other.Levels[i] {
				return s.Levels[i] < other.Levels[i]
			}
		}
		return len(s.Levels) < len(other.Levels)
	}
	return s.Value < other.Value
}

// Score evaluates every objective and combines them with the soft-constraint
// penalty.
func (o ObjectiveSet) Score(plan *model.MissionPlan, dctx DomainContext, penalty float64) (Score, error) {
	mode := o.Mode
	if mode == "" {
		mode = Weighted
	}
	sc := Score{
		Mode:   mode,
		Levels: []float64{penalty},
		Raw:    make(map[string]float64, len(o.Objectives)),
	}
	total := penalty
	for _, obj := range o.Objectives {
		v, err := computeObjective(obj, plan, dctx)
		if err != nil {
			return Score{}, &EvaluatorError{ID: obj.ID, Err: err}
		}
		sc.Raw[obj.ID] = v
		norm := obj.Sense.sign() * v
		sc.Levels = append(sc.Levels, norm)
		total += obj.Weight * norm
	}
	if mode == Lexicographic {
		sc.Value = sc.Levels[0]
	} else {
		sc.Value = total
	}
	return sc, nil
}

func computeObjective(obj Objective, plan *model.MissionPlan, dctx DomainContext) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	v, err = obj.Compute(plan, dctx)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("non-finite objective value %v", v)
	}
	return v, err
}
