package solver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func lineRouting(xs []float64, cyclic bool) *Problem {
	n := len(xs)
	nodes := make([]string, n)
	cost := make([][]float64, n)
	energy := make([][]float64, n)
	vars := make([]Variable, n)
	for i := range xs {
		nodes[i] = string(rune('a' + i))
		cost[i] = make([]float64, n)
		energy[i] = make([]float64, n)
		for j := range xs {
			cost[i][j] = math.Abs(xs[i] - xs[j])
			energy[i][j] = cost[i][j] / 100
		}
		vars[i] = Variable{Name: OrderVar(i), Lower: 0, Upper: float64(n - 1), Integer: true}
	}
	vars[0].Upper = 0
	return &Problem{
		Name:      "line",
		Kind:      KindRouting,
		Variables: vars,
		Objective: Objective{Sense: "minimize"},
		Routing:   &RoutingModel{Nodes: nodes, Cyclic: cyclic, Cost: cost, Energy: energy},
	}
}

func tourOf(t *testing.T, r *Result, n int) []int {
	t.Helper()
	out := make([]int, n)
	for k := range out {
		v, ok := r.Assignment[OrderVar(k)]
		if !ok {
			t.Fatalf("assignment missing %s", OrderVar(k))
		}
		out[k] = int(v)
	}
	return out
}

func TestRoutingNearestNeighbourOnLine(t *testing.T) {
	p := lineRouting([]float64{0, 30, 10, 20}, false)
	res, err := NewHeuristic().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if res.Status != StatusSolved {
		t.Fatalf("status %s, want solved", res.Status)
	}
	got := tourOf(t, res, 4)
	want := []int{0, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tour = %v, want %v", got, want)
		}
	}
	if res.Objective != 30 {
		t.Fatalf("objective %v, want 30", res.Objective)
	}
	if err := p.CheckAssignment(res); err != nil {
		t.Fatalf("CheckAssignment: %v", err)
	}
}

func TestRoutingAvoidsForbiddenArc(t *testing.T) {
	p := lineRouting([]float64{0, 10, 20, 30}, true)
	p.Constraints = append(p.Constraints, Expression{
		ID: "geofence", Kind: "hard", Type: ExprForbiddenArc,
		Params: map[string]float64{"from": 0, "to": 1},
	})
	res, err := NewHeuristic().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if res.Status != StatusSolved {
		t.Fatalf("status %s: %s", res.Status, res.Message)
	}
	tour := tourOf(t, res, 4)
	if tour[1] == 1 {
		t.Fatalf("tour %v uses forbidden arc 0->1", tour)
	}
}

func TestRoutingEnergyBudgetInfeasible(t *testing.T) {
	p := lineRouting([]float64{0, 1000, 2000, 3000}, true)
	// The cheapest cycle needs 60 Wh.
	p.Constraints = append(p.Constraints, Expression{
		ID: "energy", Kind: "hard", Type: ExprMaxCumulative,
		Params: map[string]float64{"limit": 50},
	})
	res, err := NewHeuristic().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if res.Status != StatusInfeasible || !res.BestEffort {
		t.Fatalf("result = %+v, want best-effort infeasible", res)
	}
	if err := p.CheckAssignment(res); err != nil {
		t.Fatalf("best-effort assignment malformed: %v", err)
	}
}

func TestRoutingDeterministicTieBreak(t *testing.T) {
	p := lineRouting([]float64{0, 10, -10}, false)
	first, _ := NewHeuristic().Solve(context.Background(), p)
	for i := 0; i < 5; i++ {
		again, _ := NewHeuristic().Solve(context.Background(), p)
		if first.Assignment[OrderVar(1)] != again.Assignment[OrderVar(1)] {
			t.Fatalf("tie broken differently across runs")
		}
	}
	if first.Assignment[OrderVar(1)] != 1 {
		t.Fatalf("tie should go to lexically smaller node, got %v", first.Assignment[OrderVar(1)])
	}
}

func TestSolveExpiredContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	res, err := NewHeuristic().Solve(ctx, lineRouting([]float64{0, 1}, false))
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("status %s, want timeout", res.Status)
	}
}

func schedulingProblem(opps []Opportunity, exprs ...Expression) *Problem {
	var vars []Variable
	var terms []Term
	for _, o := range opps {
		vars = append(vars,
			Variable{Name: SelectVar(o.ID), Lower: 0, Upper: 1, Integer: true},
			Variable{Name: StartVar(o.ID), Lower: o.WindowStart, Upper: o.WindowEnd - o.Duration},
		)
		terms = append(terms, Term{Variable: SelectVar(o.ID), Coef: o.Priority})
	}
	return &Problem{
		Name:        "schedule",
		Kind:        KindScheduling,
		Variables:   vars,
		Constraints: append([]Expression{{ID: "no_overlap", Kind: "hard", Type: ExprNoOverlap}}, exprs...),
		Objective:   Objective{Sense: "maximize", Terms: terms},
		Scheduling:  &SchedulingModel{HorizonS: 86400, Opportunities: opps},
	}
}

func TestSchedulingPriorityAndNoOverlap(t *testing.T) {
	opps := []Opportunity{
		{ID: "low", Subject: "t1", Type: OpportunityObservation, WindowStart: 0, WindowEnd: 40, Duration: 30, Priority: 1},
		{ID: "high", Subject: "t2", Type: OpportunityObservation, WindowStart: 10, WindowEnd: 60, Duration: 30, Priority: 5},
	}
	p := schedulingProblem(opps)
	res, err := NewHeuristic().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if res.Assignment[SelectVar("high")] != 1 || res.Assignment[StartVar("high")] != 10 {
		t.Fatalf("high priority not placed first: %v", res.Assignment)
	}
	if res.Assignment[SelectVar("low")] != 0 {
		t.Fatalf("overlapping low priority placed: %v", res.Assignment)
	}
	if res.Objective != 5 {
		t.Fatalf("objective %v, want 5", res.Objective)
	}
	if err := p.CheckAssignment(res); err != nil {
		t.Fatalf("CheckAssignment: %v", err)
	}
}

func TestSchedulingShiftsForMinGap(t *testing.T) {
	opps := []Opportunity{
		{ID: "a", Subject: "t1", Type: OpportunityObservation, WindowStart: 0, WindowEnd: 100, Duration: 30, Priority: 2},
		{ID: "b", Subject: "t2", Type: OpportunityObservation, WindowStart: 0, WindowEnd: 200, Duration: 30, Priority: 1},
	}
	p := schedulingProblem(opps, Expression{ID: "slew", Kind: "hard", Type: ExprMinGap, Params: map[string]float64{"seconds": 50}})
	res, _ := NewHeuristic().Solve(context.Background(), p)
	if got := res.Assignment[StartVar("b")]; res.Assignment[SelectVar("b")] != 1 || got != 80 {
		t.Fatalf("b start %v, want 80 after a plus gap", got)
	}
}

func TestSchedulingDutyCycleAndLevel(t *testing.T) {
	var opps []Opportunity
	for i := 0; i < 4; i++ {
		start := float64(i * 100)
		opps = append(opps, Opportunity{ID: string(rune('a' + i)), Subject: "t", Type: OpportunityObservation,
			WindowStart: start, WindowEnd: start + 50, Duration: 30, Priority: 1, DrawWh: 10})
	}
	duty := Expression{ID: "duty", Kind: "hard", Type: ExprMaxCountInWindow, Params: map[string]float64{"count": 2, "window_s": 1000}}
	res, _ := NewHeuristic().Solve(context.Background(), schedulingProblem(opps, duty))
	if res.Objective != 2 {
		t.Fatalf("duty-limited objective %v, want 2", res.Objective)
	}

	level := Expression{ID: "power", Kind: "hard", Type: ExprMinLevel, Params: map[string]float64{"initial": 50, "capacity": 100, "floor": 20, "recharge_w": 0}}
	res, _ = NewHeuristic().Solve(context.Background(), schedulingProblem(opps, level))
	if res.Objective != 3 {
		t.Fatalf("level-limited objective %v, want 3", res.Objective)
	}
}

func TestSchedulingRetriesLaterInWindow(t *testing.T) {
	tests := []struct {
		name      string
		expr      Expression
		wantStart float64
	}{
		// b waits 100 s for 10 Wh of recharge at 360 W.
		{"level", Expression{ID: "power", Kind: "hard", Type: ExprMinLevel,
			Params: map[string]float64{"initial": 30, "capacity": 100, "floor": 20, "recharge_w": 360}}, 110},
		// b waits for a to leave the duty window.
		{"duty", Expression{ID: "duty", Kind: "hard", Type: ExprMaxCountInWindow,
			Params: map[string]float64{"count": 1, "window_s": 500}}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opps := []Opportunity{
				{ID: "a", Subject: "t1", Type: OpportunityObservation, WindowStart: 0, WindowEnd: 100, Duration: 10, Priority: 2, DrawWh: 10},
				{ID: "b", Subject: "t2", Type: OpportunityObservation, WindowStart: 0, WindowEnd: 600, Duration: 10, Priority: 1, DrawWh: 10},
			}
			p := schedulingProblem(opps, tt.expr)
			res, err := NewHeuristic().Solve(context.Background(), p)
			if err != nil {
				t.Fatalf("Solve error: %v", err)
			}
			if res.Assignment[SelectVar("b")] != 1 || res.Assignment[StartVar("b")] != tt.wantStart {
				t.Fatalf("b selected=%v start=%v, want start %v", res.Assignment[SelectVar("b")], res.Assignment[StartVar("b")], tt.wantStart)
			}
			if err := p.CheckAssignment(res); err != nil {
				t.Fatalf("CheckAssignment: %v", err)
			}
		})
	}
}

func TestSchedulingPlacesDownlinkAfterObservation(t *testing.T) {
	opps := []Opportunity{
		{ID: "obs", Subject: "t", Type: OpportunityObservation, WindowStart: 100, WindowEnd: 200, Duration: 30, Priority: 1},
		{ID: "early", Subject: "gs", Type: OpportunityDownlink, WindowStart: 0, WindowEnd: 90, Duration: 60},
		{ID: "late", Subject: "gs", Type: OpportunityDownlink, WindowStart: 300, WindowEnd: 400, Duration: 60},
		{ID: "later", Subject: "gs", Type: OpportunityDownlink, WindowStart: 500, WindowEnd: 600, Duration: 60},
	}
	res, _ := NewHeuristic().Solve(context.Background(), schedulingProblem(opps))
	if res.Assignment[SelectVar("early")] != 0 || res.Assignment[SelectVar("later")] != 0 {
		t.Fatalf("unneeded downlinks placed: %v", res.Assignment)
	}
	if res.Assignment[SelectVar("late")] != 1 || res.Assignment[StartVar("late")] != 300 {
		t.Fatalf("late downlink not placed at window start: %v", res.Assignment)
	}
}

func TestValidateAndCheckAssignment(t *testing.T) {
	p := lineRouting([]float64{0, 1}, false)
	p.Routing.Cost = p.Routing.Cost[:1]
	if err := p.Validate(); err == nil {
		t.Fatalf("expected ragged cost matrix to be rejected")
	}

	p = lineRouting([]float64{0, 1}, false)
	bad := &Result{Assignment: map[string]float64{OrderVar(0): 0, OrderVar(1): 1.5}}
	if err := p.CheckAssignment(bad); !errors.Is(err, ErrInvalidAssignment) {
		t.Fatalf("err = %v, want ErrInvalidAssignment", err)
	}
	missing := &Result{Assignment: map[string]float64{OrderVar(0): 0}}
	if err := p.CheckAssignment(missing); !errors.Is(err, ErrInvalidAssignment) {
		t.Fatalf("err = %v, want ErrInvalidAssignment", err)
	}
}
