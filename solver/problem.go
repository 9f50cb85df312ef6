// Package solver defines the problem/assignment contract between the mission
// planner and a combinatorial solver, and ships a built-in heuristic solver
// for routing and scheduling models.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAssignment marks solver output that does not fit the problem it
// was given: missing variables, values out of bounds, broken permutations.
var ErrInvalidAssignment = errors.New("invalid solver assignment")

// Kind selects the model family of a problem.
type Kind string

const (
	KindRouting    Kind = "routing"
	KindScheduling Kind = "scheduling"
)

// Status is the solver's verdict.
type Status string

const (
	StatusSolved     Status = "solved"
	StatusInfeasible Status = "infeasible"
	StatusUnknown    Status = "unknown"
	StatusTimeout    Status = "timeout"
)

// Expression types understood by the built-in solver.
const (
	// ExprForbiddenArc bans travel from node Params["from"] to Params["to"].
	ExprForbiddenArc = "forbidden_arc"
	// ExprMaxCumulative caps the summed arc energy of a route at
	// Params["limit"].
	ExprMaxCumulative = "max_cumulative"
	// ExprAllDifferent requires the scoped variables to take distinct values.
	ExprAllDifferent = "all_different"
	// ExprNoOverlap forbids selected intervals from overlapping.
	ExprNoOverlap = "no_overlap"
	// ExprMinGap requires Params["seconds"] between consecutive selected
	// intervals on different subjects.
	ExprMinGap = "min_gap"
	// ExprMaxCountInWindow allows at most Params["count"] interval starts in
	// any sliding window of Params["window_s"] seconds.
	ExprMaxCountInWindow = "max_count_in_window"
	// ExprMinLevel keeps a linearized energy level above Params["floor"],
	// starting from Params["initial"], capped at Params["capacity"] and
	// recovering at Params["recharge_w"] between intervals.
	ExprMinLevel = "min_level"
)

// Variable declares one decision variable.
type Variable struct {
	Name    string  `json:"name"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Integer bool    `json:"integer,omitempty"`
}

// Expression is one constraint handed to the solver. Kind is "hard" or
// "soft"; soft expressions may be relaxed.
type Expression struct {
	ID     string             `json:"id"`
	Kind   string             `json:"kind"`
	Type   string             `json:"type"`
	Scope  []string           `json:"scope,omitempty"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Term is a linear objective term.
type Term struct {
	Variable string  `json:"variable"`
	Coef     float64 `json:"coef"`
}

// Objective is a linear objective over the variables. Sense is "minimize" or
// "maximize".
type Objective struct {
	Sense string `json:"sense"`
	Terms []Term `json:"terms,omitempty"`
}

// RoutingModel is a single-vehicle ordering over Nodes. Cost and Energy are
// square matrices indexed by node. Variables order_0..order_{n-1} hold the
// node index visited at each position; order_0 is the depot.
type RoutingModel struct {
	Nodes  []string    `json:"nodes"`
	Depot  int         `json:"depot"`
	Cyclic bool        `json:"cyclic"`
	Cost   [][]float64 `json:"cost"`
	Energy [][]float64 `json:"energy,omitempty"`
}

// Opportunity is an interval that may be scheduled inside [WindowStart,
// WindowEnd]. Times are seconds from the horizon start.
type Opportunity struct {
	ID          string  `json:"id"`
	Subject     string  `json:"subject"`
	Type        string  `json:"type"`
	WindowStart float64 `json:"window_start"`
	WindowEnd   float64 `json:"window_end"`
	Duration    float64 `json:"duration"`
	Priority    float64 `json:"priority"`
	DrawWh      float64 `json:"draw_wh"`
}

// Opportunity types.
const (
	OpportunityObservation = "observation"
	OpportunityDownlink    = "downlink"
)

// SchedulingModel selects and times opportunities. Each opportunity has a
// binary x_<id> and a start s_<id>.
type SchedulingModel struct {
	HorizonS      float64       `json:"horizon_s"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Problem is the complete description handed to a solver.
type Problem struct {
	Name        string           `json:"name"`
	Kind        Kind             `json:"kind"`
	Variables   []Variable       `json:"variables"`
	Constraints []Expression     `json:"constraints"`
	Objective   Objective        `json:"objective"`
	Routing     *RoutingModel    `json:"routing,omitempty"`
	Scheduling  *SchedulingModel `json:"scheduling,omitempty"`
}

// Result is a solver's answer. BestEffort marks an assignment returned with a
// non-solved status for diagnostics.
type Result struct {
	Status     Status             `json:"status"`
	Assignment map[string]float64 `json:"assignment,omitempty"`
	BestEffort bool               `json:"best_effort,omitempty"`
	Objective  float64            `json:"objective"`
	Message    string             `json:"message,omitempty"`
}

// Solver solves problems. The context deadline, if any, is the budget.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// OrderVar names the routing variable for position k.
func OrderVar(k int) string { return fmt.Sprintf("order_%d", k) }

// SelectVar names the selection variable of an opportunity.
func SelectVar(id string) string { return "x_" + id }

// StartVar names the start variable of an opportunity.
func StartVar(id string) string { return "s_" + id }

// Validate checks the problem is well formed.
func (p *Problem) Validate() error {
	if p == nil {
		return errors.New("nil problem")
	}
	seen := make(map[string]struct{}, len(p.Variables))
	for _, v := range p.Variables {
		if v.Name == "" {
			return errors.New("variable with empty name")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("variable %q declared twice", v.Name)
		}
		if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || v.Lower > v.Upper {
			return fmt.Errorf("variable %q has bounds [%v, %v]", v.Name, v.Lower, v.Upper)
		}
		seen[v.Name] = struct{}{}
	}
	for _, e := range p.Constraints {
		for _, name := range e.Scope {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("constraint %q references undeclared variable %q", e.ID, name)
			}
		}
	}
	switch p.Kind {
	case KindRouting:
		if p.Routing == nil {
			return errors.New("routing problem without routing model")
		}
		n := len(p.Routing.Nodes)
		if n == 0 {
			return errors.New("routing model has no nodes")
		}
		if p.Routing.Depot < 0 || p.Routing.Depot >= n {
			return fmt.Errorf("depot %d out of range", p.Routing.Depot)
		}
		if err := squareMatrix("cost", p.Routing.Cost, n); err != nil {
			return err
		}
		if p.Routing.Energy != nil {
			if err := squareMatrix("energy", p.Routing.Energy, n); err != nil {
				return err
			}
		}
	case KindScheduling:
		if p.Scheduling == nil {
			return errors.New("scheduling problem without scheduling model")
		}
		for _, o := range p.Scheduling.Opportunities {
			if o.Duration <= 0 || o.WindowEnd-o.WindowStart < o.Duration {
				return fmt.Errorf("opportunity %q does not fit its window", o.ID)
			}
		}
	default:
		return fmt.Errorf("unknown problem kind %q", p.Kind)
	}
	return nil
}

func squareMatrix(name string, m [][]float64, n int) error {
	if len(m) != n {
		return fmt.Errorf("%s matrix has %d rows, want %d", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%s matrix row %d has %d columns, want %d", name, i, len(row), n)
		}
	}
	return nil
}

// CheckAssignment verifies that a result assigns every declared variable a
// value inside its bounds, integral where required.
func (p *Problem) CheckAssignment(r *Result) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidAssignment)
	}
	for _, v := range p.Variables {
		x, ok := r.Assignment[v.Name]
		if !ok {
			return fmt.Errorf("%w: %s missing", ErrInvalidAssignment, v.Name)
		}
		if math.IsNaN(x) || x < v.Lower-1e-9 || x > v.Upper+1e-9 {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidAssignment, v.Name, x, v.Lower, v.Upper)
		}
		if v.Integer && math.Abs(x-math.Round(x)) > 1e-9 {
			return fmt.Errorf("%w: %s=%v is not integral", ErrInvalidAssignment, v.Name, x)
		}
	}
	return nil
}

// Expressions returns the constraints of the given type.
func (p *Problem) Expressions(typ string) []Expression {
	var out []Expression
	for _, e := range p.Constraints {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
