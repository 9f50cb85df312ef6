package planner

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/mission-planner/aircraft"
	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
)

// AircraftPlanner orders a fixed waypoint set. Waypoint 0 is the depot and
// always flown first; order_k holds the waypoint index visited at position k.
type AircraftPlanner struct {
	sc    *scenario.Scenario
	route model.Route
	dctx  *aircraft.Context

	// arc matrices indexed by waypoint
	timeS    [][]float64
	energyWh [][]float64
	distM    [][]float64
	// steep marks arcs whose altitude change exceeds the vertical rate limits
	steep [][]bool
}

// NewAircraftPlanner prepares a planner for an aircraft scenario.
func NewAircraftPlanner(sc *scenario.Scenario) (*AircraftPlanner, error) {
	if sc == nil || sc.Aircraft == nil {
		return nil, core.InvalidConfig("aircraft", "scenario has no aircraft section")
	}
	return &AircraftPlanner{sc: sc}, nil
}

func (*AircraftPlanner) Domain() model.Domain { return model.DomainAircraft }

// Context returns the physics context; nil before DefineVariables.
func (a *AircraftPlanner) Context() core.DomainContext { return a.dctx }

// DefineVariables simulates every ordered waypoint pair and declares one
// ordering variable per route position.
func (a *AircraftPlanner) DefineVariables(ctx context.Context) ([]solver.Variable, error) {
	cfg := a.sc.Aircraft
	a.route = cfg.Route()
	a.dctx = &aircraft.Context{
		Params: cfg.Params(),
		Wind:   cfg.WindField(),
		Zones:  cfg.Zones(),
	}

	wps := a.route.Waypoints
	n := len(wps)
	a.timeS, a.energyWh, a.distM = square(n), square(n), square(n)
	a.steep = make([][]bool, n)
	for i := range wps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.steep[i] = make([]bool, n)
		for j := range wps {
			if i == j {
				continue
			}
			tr := aircraft.Simulate(model.Route{Waypoints: []model.Waypoint{wps[i], wps[j]}}, a.dctx.Wind, a.dctx.Params)
			a.timeS[i][j] = tr.TotalTimeS
			a.energyWh[i][j] = tr.TotalEnergyWh
			a.distM[i][j] = tr.TotalDistanceM
			a.steep[i][j] = a.dctx.Params.VerticalRateExcess(tr.Legs[0]) > 0
		}
	}

	vars := make([]solver.Variable, n)
	for k := range vars {
		vars[k] = solver.Variable{Name: solver.OrderVar(k), Lower: 0, Upper: float64(n - 1), Integer: true}
	}
	vars[0].Upper = 0
	return vars, nil
}

// BuildConstraints returns the aircraft evaluators and their solver-side
// form: a permutation over positions, one forbidden arc per leg that crosses
// a no-fly zone or climbs or descends too steeply, and the battery as a cap
// on summed arc energy.
func (a *AircraftPlanner) BuildConstraints(context.Context) ([]core.Constraint, []solver.Expression, error) {
	wps := a.route.Waypoints
	scope := make([]string, len(wps))
	for k := range scope {
		scope[k] = solver.OrderVar(k)
	}
	exprs := []solver.Expression{{
		ID: "visit_once", Kind: core.Hard.String(), Type: solver.ExprAllDifferent, Scope: scope,
	}}
	for i := range wps {
		for j := range wps {
			if i == j {
				continue
			}
			reason := ""
			switch {
			case len(aircraft.LegIntrusions(wps[i].Horizontal(), wps[j].Horizontal(), a.dctx.Zones)) > 0:
				reason = aircraft.ConstraintGeofence
			case a.steep[i][j]:
				reason = aircraft.ConstraintClimbRate
			default:
				continue
			}
			exprs = append(exprs, solver.Expression{
				ID:     fmt.Sprintf("%s:%s->%s", reason, wps[i].ID, wps[j].ID),
				Kind:   core.Hard.String(),
				Type:   solver.ExprForbiddenArc,
				Params: map[string]float64{"from": float64(i), "to": float64(j)},
			})
		}
	}
	exprs = append(exprs, solver.Expression{
		ID:     aircraft.ConstraintEnergy,
		Kind:   core.Hard.String(),
		Type:   solver.ExprMaxCumulative,
		Scope:  scope,
		Params: map[string]float64{"limit": a.dctx.Params.BatteryWh},
	})
	return aircraft.Constraints(a.sc.Objective.ReserveWeight), exprs, nil
}

// SetObjective builds the configured objectives. The solver sees a single
// minimised cost per arc; the arc cost matrix is attached by Describe.
func (a *AircraftPlanner) SetObjective(context.Context) (core.ObjectiveSet, solver.Objective, error) {
	mode, err := core.ParseMode(a.sc.Objective.Mode)
	if err != nil {
		return core.ObjectiveSet{}, solver.Objective{}, err
	}
	w := a.sc.Objective.Weights
	set := core.ObjectiveSet{
		Mode:       mode,
		Objectives: aircraft.Objectives(w[aircraft.ObjectiveTime], w[aircraft.ObjectiveEnergy], w[aircraft.ObjectiveDistance]),
	}
	return set, solver.Objective{Sense: "minimize"}, nil
}

// Describe attaches the routing model.
func (a *AircraftPlanner) Describe(p *solver.Problem) error {
	wps := a.route.Waypoints
	n := len(wps)
	w := a.sc.Objective.Weights
	nodes := make([]string, n)
	cost := square(n)
	for i := range wps {
		nodes[i] = wps[i].ID
		for j := range wps {
			cost[i][j] = w[aircraft.ObjectiveTime]*a.timeS[i][j] +
				w[aircraft.ObjectiveEnergy]*a.energyWh[i][j] +
				w[aircraft.ObjectiveDistance]*a.distM[i][j]
		}
	}
	p.Kind = solver.KindRouting
	p.Routing = &solver.RoutingModel{
		Nodes:  nodes,
		Depot:  0,
		Cyclic: a.route.Cyclic,
		Cost:   cost,
		Energy: a.energyWh,
	}
	return nil
}

// Decode reads the visiting order and simulates the resulting route.
func (a *AircraftPlanner) Decode(res *solver.Result) (*model.MissionPlan, error) {
	wps := a.route.Waypoints
	n := len(wps)
	seen := make([]bool, n)
	ordered := make([]model.Waypoint, n)
	for k := 0; k < n; k++ {
		v, ok := res.Assignment[solver.OrderVar(k)]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing", solver.ErrInvalidAssignment, solver.OrderVar(k))
		}
		idx := int(math.Round(v))
		if idx < 0 || idx >= n || seen[idx] {
			return nil, fmt.Errorf("%w: %s=%v is not a permutation entry", solver.ErrInvalidAssignment, solver.OrderVar(k), v)
		}
		seen[idx] = true
		ordered[k] = wps[idx]
	}
	if ordered[0].ID != wps[0].ID {
		return nil, fmt.Errorf("%w: route does not start at %s", solver.ErrInvalidAssignment, wps[0].ID)
	}
	route := model.Route{Waypoints: ordered, Cyclic: a.route.Cyclic}
	return &model.MissionPlan{
		Domain:   model.DomainAircraft,
		Aircraft: a.dctx.Plan(route),
	}, nil
}

// Metrics summarises the simulated route.
func (a *AircraftPlanner) Metrics(plan *model.MissionPlan) map[string]float64 {
	if plan == nil || plan.Aircraft == nil {
		return nil
	}
	ap := plan.Aircraft
	return map[string]float64{
		"total_time_s":        ap.TotalTimeS,
		"total_energy_wh":     ap.TotalEnergyWh,
		"total_distance_m":    ap.TotalDistanceM,
		"energy_remaining_wh": a.dctx.Params.BatteryWh - ap.TotalEnergyWh,
		"waypoints":           float64(len(ap.Route.Waypoints)),
	}
}

func square(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
