package core

import (
	"fmt"
	"math"
	"strings"
)

// Report is the outcome of evaluating a constraint Set against one plan. An
// empty Violations slice means every constraint is satisfied.
type Report struct {
	Evaluated  int         `json:"evaluated"`
	Violations []Violation `json:"violations"`

	weights map[string]float64
}

// Feasible reports whether no hard constraint is violated.
func (r *Report) Feasible() bool {
	return len(r.Hard()) == 0
}

// Empty reports whether nothing at all was violated.
func (r *Report) Empty() bool {
	return r == nil || len(r.Violations) == 0
}

// Hard returns the hard violations.
func (r *Report) Hard() []Violation { return r.filter(Hard) }

// Soft returns the soft violations.
func (r *Report) Soft() []Violation { return r.filter(Soft) }

func (r *Report) filter(k Kind) []Violation {
	if r == nil {
		return nil
	}
	var out []Violation
	for _, v := range r.Violations {
		if v.Kind == k {
			out = append(out, v)
		}
	}
	return out
}

// Penalty is the weighted sum of soft violation magnitudes.
func (r *Report) Penalty() float64 {
	var total float64
	for _, v := range r.Soft() {
		w := 1.0
		if r.weights != nil {
			if rw, ok := r.weights[v.ConstraintID]; ok && rw != 0 {
				w = rw
			}
		}
		total += w * math.Abs(v.Magnitude)
	}
	return total
}

// ByConstraint returns the violations of a single constraint.
func (r *Report) ByConstraint(id string) []Violation {
	if r == nil {
		return nil
	}
	var out []Violation
	for _, v := range r.Violations {
		if v.ConstraintID == id {
			out = append(out, v)
		}
	}
	return out
}

// Magnitude returns Σ|magnitude| for the given constraint.
func (r *Report) Magnitude(id string) float64 {
	var total float64
	for _, v := range r.ByConstraint(id) {
		total += math.Abs(v.Magnitude)
	}
	return total
}

func (r *Report) String() string {
	if r.Empty() {
		return "no violations"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d violation(s):", len(r.Violations))
	for _, v := range r.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}
