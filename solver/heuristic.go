package solver

import (
	"context"
	"fmt"
)

// Heuristic is the built-in solver. Routing problems get a nearest-neighbour
// construction refined by 2-opt; scheduling problems get priority-ordered
// greedy placement. It stops improving when the context is done and returns
// the best assignment found so far.
type Heuristic struct {
	// MaxPasses bounds the 2-opt improvement passes; zero runs until a pass
	// finds no gain.
	MaxPasses int
}

// NewHeuristic returns a Heuristic with default settings.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Solve implements Solver.
func (h *Heuristic) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("solve %q: %w", p.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return &Result{Status: StatusTimeout, Message: err.Error()}, nil
	}
	switch p.Kind {
	case KindRouting:
		return h.solveRouting(ctx, p), nil
	default:
		return h.solveScheduling(ctx, p), nil
	}
}

func objectiveValue(obj Objective, assignment map[string]float64) float64 {
	var v float64
	for _, t := range obj.Terms {
		v += t.Coef * assignment[t.Variable]
	}
	return v
}
