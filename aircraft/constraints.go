package aircraft

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

// Constraint and objective identifiers.
const (
	ConstraintGeofence      = "geofence"
	ConstraintAltitude      = "altitude"
	ConstraintClimbRate     = "climb_rate"
	ConstraintTurnRate      = "turn_rate"
	ConstraintEnergy        = "energy"
	ConstraintWindAuthority = "wind_authority"
	ConstraintReserve       = "energy_reserve"

	ObjectiveTime     = "minimize_time"
	ObjectiveEnergy   = "minimize_energy"
	ObjectiveDistance = "minimize_distance"
)

var errNotAircraft = errors.New("plan has no aircraft payload")

// Context is the read-only physics state aircraft evaluators run against.
type Context struct {
	Params Params
	Wind   WindField
	Zones  []model.NoFlyZone
}

func (*Context) Domain() model.Domain { return model.DomainAircraft }

// Trajectory re-integrates the plan's route. Evaluators never trust the
// timestamps stored on the plan.
func (c *Context) Trajectory(plan *model.MissionPlan) (Trajectory, error) {
	if plan == nil || plan.Aircraft == nil {
		return Trajectory{}, errNotAircraft
	}
	return Simulate(plan.Aircraft.Route, c.Wind, c.Params), nil
}

func contextOf(dctx core.DomainContext) (*Context, error) {
	c, ok := dctx.(*Context)
	if !ok || c == nil {
		return nil, fmt.Errorf("aircraft evaluator given %T context", dctx)
	}
	return c, nil
}

// withTrajectory adapts a trajectory-based check into a core.Evaluator.
func withTrajectory(fn func(c *Context, plan *model.AircraftPlan, tr Trajectory) []core.Violation) core.Evaluator {
	return func(plan *model.MissionPlan, dctx core.DomainContext) ([]core.Violation, error) {
		c, err := contextOf(dctx)
		if err != nil {
			return nil, err
		}
		tr, err := c.Trajectory(plan)
		if err != nil {
			return nil, err
		}
		return fn(c, plan.Aircraft, tr), nil
	}
}

// Constraints returns the aircraft constraint set. reserveWeight is the
// penalty weight of the soft reserve constraint.
func Constraints(reserveWeight float64) []core.Constraint {
	return []core.Constraint{
		{
			ID:          ConstraintGeofence,
			Kind:        core.Hard,
			Description: "no leg may enter or touch a no-fly zone",
			Evaluate:    withTrajectory(evalGeofence),
		},
		{
			ID:          ConstraintAltitude,
			Kind:        core.Hard,
			Description: "waypoint altitude within bounds",
			Evaluate:    withTrajectory(evalAltitude),
		},
		{
			ID:          ConstraintClimbRate,
			Kind:        core.Hard,
			Description: "altitude change per leg within climb and descent rate limits",
			Evaluate:    withTrajectory(evalClimbRate),
		},
		{
			ID:          ConstraintTurnRate,
			Kind:        core.Hard,
			Description: "heading change achievable within turn-rate and bank limits",
			Evaluate:    withTrajectory(evalTurnRate),
		},
		{
			ID:          ConstraintEnergy,
			Kind:        core.Hard,
			Description: "cumulative energy within battery capacity at every waypoint",
			Evaluate:    withTrajectory(evalEnergy),
		},
		{
			ID:          ConstraintWindAuthority,
			Kind:        core.Hard,
			Description: "every leg track can be held against the wind",
			Evaluate:    withTrajectory(evalWindAuthority),
		},
		{
			ID:          ConstraintReserve,
			Kind:        core.Soft,
			Weight:      reserveWeight,
			Description: "keep the configured battery reserve at the end of the route",
			Evaluate:    withTrajectory(evalReserve),
		},
	}
}

func evalGeofence(c *Context, plan *model.AircraftPlan, tr Trajectory) []core.Violation {
	visits := plan.Route.Visits()
	var out []core.Violation
	for i := range tr.Legs {
		a, b := visits[i], visits[i+1]
		for _, in := range LegIntrusions(a.Horizontal(), b.Horizontal(), c.Zones) {
			out = append(out, core.Violation{
				Magnitude: in.InsideM,
				Entity:    fmt.Sprintf("leg:%s->%s zone:%s", a.ID, b.ID, in.ZoneID),
				Detail:    fmt.Sprintf("%.1f m inside", in.InsideM),
			})
		}
	}
	return out
}

func evalAltitude(c *Context, plan *model.AircraftPlan, _ Trajectory) []core.Violation {
	var out []core.Violation
	for _, w := range plan.Route.Waypoints {
		var excess float64
		switch {
		case w.Altitude > c.Params.MaxAltitude:
			excess = w.Altitude - c.Params.MaxAltitude
		case w.Altitude < c.Params.MinAltitude:
			excess = w.Altitude - c.Params.MinAltitude
		}
		if excess != 0 {
			out = append(out, core.Violation{
				Magnitude: excess,
				Entity:    "waypoint:" + w.ID,
				Detail:    fmt.Sprintf("altitude %.1f m outside [%.1f, %.1f]", w.Altitude, c.Params.MinAltitude, c.Params.MaxAltitude),
			})
		}
	}
	return out
}

func evalClimbRate(c *Context, _ *model.AircraftPlan, tr Trajectory) []core.Violation {
	var out []core.Violation
	for _, leg := range tr.Legs {
		excess := c.Params.VerticalRateExcess(leg)
		if excess == 0 {
			continue
		}
		limit, verb := c.Params.MaxClimbRate, "climb"
		if leg.ClimbM < 0 {
			limit, verb = c.Params.MaxDescentRate, "descent"
		}
		out = append(out, core.Violation{
			Magnitude: excess,
			Entity:    fmt.Sprintf("leg:%s->%s", leg.FromID, leg.ToID),
			Detail:    fmt.Sprintf("%s %.2f m/s, limit %.2f", verb, math.Abs(leg.VerticalRate()), limit),
		})
	}
	return out
}

func evalTurnRate(c *Context, _ *model.AircraftPlan, tr Trajectory) []core.Violation {
	limit := c.Params.TurnRateLimit()
	var out []core.Violation
	for _, turn := range tr.Turns {
		if turn.Rate <= limit {
			continue
		}
		out = append(out, core.Violation{
			Magnitude: turn.Rate - limit,
			Entity:    "waypoint:" + turn.WaypointID,
			Detail:    fmt.Sprintf("%.3f rad/s demanded, limit %.3f", turn.Rate, limit),
		})
	}
	return out
}

func evalEnergy(c *Context, _ *model.AircraftPlan, tr Trajectory) []core.Violation {
	var out []core.Violation
	for i, a := range tr.Arrivals {
		if a.RemainingEnergyWh >= 0 {
			continue
		}
		out = append(out, core.Violation{
			Magnitude: -a.RemainingEnergyWh,
			Entity:    fmt.Sprintf("waypoint:%s#%d", a.WaypointID, i),
			Detail:    fmt.Sprintf("%.2f Wh used of %.2f Wh", a.CumulativeEnergyWh, c.Params.BatteryWh),
		})
	}
	return out
}

func evalWindAuthority(_ *Context, _ *model.AircraftPlan, tr Trajectory) []core.Violation {
	var out []core.Violation
	for _, leg := range tr.Legs {
		if !leg.Unflyable {
			continue
		}
		out = append(out, core.Violation{
			Magnitude: leg.Shortfall,
			Entity:    fmt.Sprintf("leg:%s->%s", leg.FromID, leg.ToID),
			Detail:    "wind exceeds control authority",
		})
	}
	return out
}

func evalReserve(c *Context, _ *model.AircraftPlan, tr Trajectory) []core.Violation {
	usable := c.Params.BatteryWh * (1 - c.Params.ReservePct)
	if tr.TotalEnergyWh <= usable {
		return nil
	}
	return []core.Violation{{
		Magnitude: tr.TotalEnergyWh - usable,
		Entity:    "route",
		Detail:    fmt.Sprintf("reserve %.0f%% not kept", c.Params.ReservePct*100),
	}}
}

// Objectives returns the aircraft objectives with the given weights. A zero
// weight omits the objective.
func Objectives(timeW, energyW, distanceW float64) []core.Objective {
	var out []core.Objective
	add := func(id string, w float64, f func(Trajectory) float64) {
		if w == 0 {
			return
		}
		out = append(out, core.Objective{
			ID:     id,
			Sense:  core.Minimize,
			Weight: w,
			Compute: func(plan *model.MissionPlan, dctx core.DomainContext) (float64, error) {
				c, err := contextOf(dctx)
				if err != nil {
					return 0, err
				}
				tr, err := c.Trajectory(plan)
				if err != nil {
					return 0, err
				}
				return f(tr), nil
			},
		})
	}
	add(ObjectiveTime, timeW, func(tr Trajectory) float64 { return tr.TotalTimeS })
	add(ObjectiveEnergy, energyW, func(tr Trajectory) float64 { return tr.TotalEnergyWh })
	add(ObjectiveDistance, distanceW, func(tr Trajectory) float64 { return tr.TotalDistanceM })
	return out
}

// Plan builds an AircraftPlan for route by simulating it.
func (c *Context) Plan(route model.Route) *model.AircraftPlan {
	tr := Simulate(route, c.Wind, c.Params)
	legs := make([]float64, len(tr.Legs))
	for i, l := range tr.Legs {
		legs[i] = l.DistanceM
	}
	return &model.AircraftPlan{
		Route:          route,
		Arrivals:       tr.Arrivals,
		Path:           tr.Path,
		TotalTimeS:     tr.TotalTimeS,
		TotalEnergyWh:  tr.TotalEnergyWh,
		TotalDistanceM: tr.TotalDistanceM,
		LegDistancesM:  legs,
	}
}
