package solver

import (
	"context"
	"math"
)

type arc struct{ from, to int }

// tourScore orders tours by forbidden arcs used, then energy over budget,
// then cost.
type tourScore struct {
	forbidden int
	excessWh  float64
	cost      float64
}

func (a tourScore) better(b tourScore) bool {
	if a.forbidden != b.forbidden {
		return a.forbidden < b.forbidden
	}
	if math.Abs(a.excessWh-b.excessWh) > 1e-9 {
		return a.excessWh < b.excessWh
	}
	return a.cost < b.cost-1e-9
}

func (a tourScore) feasible() bool { return a.forbidden == 0 && a.excessWh <= 0 }

type routeModel struct {
	m         *RoutingModel
	forbidden map[arc]bool
	limitWh   float64
}

func newRouteModel(p *Problem) routeModel {
	rm := routeModel{m: p.Routing, forbidden: make(map[arc]bool), limitWh: math.Inf(1)}
	for _, e := range p.Expressions(ExprForbiddenArc) {
		rm.forbidden[arc{int(e.Params["from"]), int(e.Params["to"])}] = true
	}
	for _, e := range p.Expressions(ExprMaxCumulative) {
		if limit, ok := e.Params["limit"]; ok && limit < rm.limitWh {
			rm.limitWh = limit
		}
	}
	return rm
}

func (rm routeModel) score(tour []int) tourScore {
	var (
		s      tourScore
		energy float64
	)
	step := func(i, j int) {
		s.cost += rm.m.Cost[i][j]
		if rm.m.Energy != nil {
			energy += rm.m.Energy[i][j]
		}
		if rm.forbidden[arc{i, j}] {
			s.forbidden++
		}
	}
	for k := 0; k+1 < len(tour); k++ {
		step(tour[k], tour[k+1])
	}
	if rm.m.Cyclic && len(tour) > 1 {
		step(tour[len(tour)-1], tour[0])
	}
	if energy > rm.limitWh {
		s.excessWh = energy - rm.limitWh
	}
	return s
}

// nearestNeighbour builds a tour from the depot, always moving to the
// cheapest allowed unvisited node. Forbidden arcs are taken only when nothing
// else remains. Ties go to the lexically smaller node name.
func (rm routeModel) nearestNeighbour() []int {
	n := len(rm.m.Nodes)
	visited := make([]bool, n)
	tour := make([]int, 0, n)
	cur := rm.m.Depot
	visited[cur] = true
	tour = append(tour, cur)

	for len(tour) < n {
		best, bestForbidden, bestCost := -1, true, math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			forb := rm.forbidden[arc{cur, j}]
			c := rm.m.Cost[cur][j]
			if best < 0 ||
				(!forb && bestForbidden) ||
				(forb == bestForbidden && (c < bestCost || (c == bestCost && rm.m.Nodes[j] < rm.m.Nodes[best]))) {
				best, bestForbidden, bestCost = j, forb, c
			}
		}
		visited[best] = true
		tour = append(tour, best)
		cur = best
	}
	return tour
}

func reverse(tour []int, i, k int) {
	for ; i < k; i, k = i+1, k-1 {
		tour[i], tour[k] = tour[k], tour[i]
	}
}

func (h *Heuristic) solveRouting(ctx context.Context, p *Problem) *Result {
	rm := newRouteModel(p)
	tour := rm.nearestNeighbour()
	best := rm.score(tour)

	timedOut := false
	passes := 0
improve:
	for {
		improved := false
		// Position 0 is the depot and never moves.
		for i := 1; i < len(tour)-1; i++ {
			if ctx.Err() != nil {
				timedOut = true
				break improve
			}
			for k := i + 1; k < len(tour); k++ {
				reverse(tour, i, k)
				if s := rm.score(tour); s.better(best) {
					best = s
					improved = true
				} else {
					reverse(tour, i, k)
				}
			}
		}
		passes++
		if !improved || (h.MaxPasses > 0 && passes >= h.MaxPasses) {
			break
		}
	}

	assignment := make(map[string]float64, len(tour))
	for k, node := range tour {
		assignment[OrderVar(k)] = float64(node)
	}
	res := &Result{Assignment: assignment, Objective: best.cost}
	switch {
	case best.feasible():
		res.Status = StatusSolved
		if timedOut {
			res.Message = "deadline reached during improvement"
		}
	case timedOut:
		res.Status = StatusTimeout
		res.BestEffort = true
		res.Message = "deadline reached before a feasible ordering was found"
	default:
		res.Status = StatusInfeasible
		res.BestEffort = true
		res.Message = "no ordering avoids every forbidden arc within the energy budget"
	}
	return res
}
