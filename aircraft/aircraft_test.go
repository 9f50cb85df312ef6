package aircraft

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

func wp(id string, x, y, alt float64) model.Waypoint {
	return model.Waypoint{ID: id, X: x, Y: y, Altitude: alt}
}

func straightRoute() model.Route {
	return model.Route{Waypoints: []model.Waypoint{wp("a", 0, 0, 100), wp("b", 1000, 0, 100)}}
}

func near(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

func TestSimulateWindTriangle(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name     string
		wind     model.Vec2
		wantTime float64
	}{
		{"calm", model.Vec2{}, 50},
		{"headwind", model.Vec2{X: -5}, 1000.0 / 15},
		{"tailwind", model.Vec2{X: 5}, 1000.0 / 25},
		{"crosswind", model.Vec2{Y: 12}, 1000.0 / 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Simulate(straightRoute(), UniformWind{V: tt.wind}, p)
			near(t, "time", tr.TotalTimeS, tt.wantTime, 1e-9)
			near(t, "energy", tr.TotalEnergyWh, p.BasePower*tt.wantTime/3600, 1e-9)
			if tr.Legs[0].Unflyable {
				t.Fatalf("leg unexpectedly unflyable")
			}
		})
	}
}

func TestSimulateUnflyableLeg(t *testing.T) {
	p := DefaultParams()
	tr := Simulate(straightRoute(), UniformWind{V: model.Vec2{X: -25}}, p)
	if !tr.Legs[0].Unflyable {
		t.Fatalf("expected 25 m/s headwind to exceed a 20 m/s airspeed")
	}
	near(t, "shortfall", tr.Legs[0].Shortfall, 6, 1e-9)
	near(t, "time", tr.TotalTimeS, 1000/p.MinGroundSpeed, 1e-6)

	c := &Context{Params: p, Wind: UniformWind{V: model.Vec2{X: -25}}}
	plan := &model.MissionPlan{Domain: model.DomainAircraft, Aircraft: c.Plan(straightRoute())}
	vs, err := withTrajectory(evalWindAuthority)(plan, c)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(vs) != 1 || vs[0].Entity != "leg:a->b" {
		t.Fatalf("unexpected wind violations %+v", vs)
	}
}

func TestRouteDistanceIsSumOfLegs(t *testing.T) {
	route := model.Route{Cyclic: true, Waypoints: []model.Waypoint{
		wp("0", 0, 0, 100), wp("1", 1500, 300, 120), wp("2", 2500, 1800, 200), wp("3", 400, 2200, 80),
	}}
	tr := Simulate(route, SpatialWind{Base: model.Vec2{X: 3, Y: 2}, Amplitude: 0.1}, DefaultParams())
	var sum float64
	for _, l := range tr.Legs {
		sum += l.DistanceM
	}
	if sum != tr.TotalDistanceM {
		t.Fatalf("sum of legs %v != total %v", sum, tr.TotalDistanceM)
	}
	if len(tr.Legs) != 4 || len(tr.Arrivals) != 5 {
		t.Fatalf("cyclic route: legs=%d arrivals=%d", len(tr.Legs), len(tr.Arrivals))
	}
	last := tr.Arrivals[len(tr.Arrivals)-1]
	if last.WaypointID != "0" || last.TimeS != tr.TotalTimeS {
		t.Fatalf("closing arrival = %+v", last)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	route := model.Route{Waypoints: []model.Waypoint{
		wp("0", 0, 0, 100), wp("1", 3000, 800, 150), wp("2", 5200, -400, 100),
	}}
	wind := SpatialWind{Base: model.Vec2{X: 3, Y: 2}, Amplitude: 0.5}
	a := Simulate(route, wind, DefaultParams())
	b := Simulate(route, wind, DefaultParams())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different trajectories")
	}
}

func TestTurnEnergyAndRate(t *testing.T) {
	p := DefaultParams()
	route := model.Route{Waypoints: []model.Waypoint{wp("a", 0, 0, 100), wp("b", 1000, 0, 100), wp("c", 1000, 1000, 100)}}
	tr := Simulate(route, nil, p)
	if len(tr.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(tr.Turns))
	}
	turn := tr.Turns[0]
	near(t, "change", turn.Change, math.Pi/2, 1e-12)
	near(t, "window", turn.Window, 20, 1e-12)
	near(t, "rate", turn.Rate, math.Pi/40, 1e-12)
	wantEnergy := p.BasePower*100/3600 + p.ManeuverPower*math.Pi/2/3600
	near(t, "energy", tr.TotalEnergyWh, wantEnergy, 1e-9)
}

func evaluate(t *testing.T, c *Context, route model.Route) *core.Report {
	t.Helper()
	set, err := core.NewSet(Constraints(1)...)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	plan := &model.MissionPlan{ID: "test", Domain: model.DomainAircraft, Aircraft: c.Plan(route)}
	rep, err := set.Evaluate(plan, c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return rep
}

func TestTurnRateViolation(t *testing.T) {
	c := &Context{Params: DefaultParams()}
	route := model.Route{Waypoints: []model.Waypoint{wp("a", 0, 0, 100), wp("b", 100, 0, 100), wp("c", 0, 0, 100)}}
	rep := evaluate(t, c, route)
	vs := rep.ByConstraint(ConstraintTurnRate)
	if len(vs) != 1 || vs[0].Entity != "waypoint:b" {
		t.Fatalf("expected hairpin at b to violate turn rate, got %s", rep)
	}
	near(t, "excess", vs[0].Magnitude, math.Pi/2.5-c.Params.TurnRateLimit(), 1e-9)
}

func TestAltitudeSignedExcess(t *testing.T) {
	c := &Context{Params: DefaultParams()}
	route := model.Route{Waypoints: []model.Waypoint{wp("low", 0, 0, 20), wp("ok", 1000, 0, 100), wp("high", 2000, 0, 650)}}
	rep := evaluate(t, c, route)
	vs := rep.ByConstraint(ConstraintAltitude)
	if len(vs) != 2 {
		t.Fatalf("altitude violations = %d, want 2: %s", len(vs), rep)
	}
	got := map[string]float64{}
	for _, v := range vs {
		got[v.Entity] = v.Magnitude
	}
	if got["waypoint:low"] != -30 || got["waypoint:high"] != 150 {
		t.Fatalf("unexpected magnitudes %+v", got)
	}
}

func TestClimbRateLimits(t *testing.T) {
	c := &Context{Params: DefaultParams()}
	// a->b climbs 100 m in 50 s; b->c drops 100 m in 10 s.
	route := model.Route{Waypoints: []model.Waypoint{wp("a", 0, 0, 100), wp("b", 1000, 0, 200), wp("c", 1200, 0, 100)}}
	tr := Simulate(route, nil, c.Params)
	near(t, "climb", tr.Legs[0].VerticalRate(), 2, 1e-9)
	near(t, "descent", tr.Legs[1].VerticalRate(), -10, 1e-9)
	if got := c.Params.VerticalRateExcess(tr.Legs[0]); got != 0 {
		t.Fatalf("2 m/s climb excess = %v, want 0", got)
	}

	rep := evaluate(t, c, route)
	vs := rep.ByConstraint(ConstraintClimbRate)
	if len(vs) != 1 || vs[0].Entity != "leg:b->c" {
		t.Fatalf("expected only b->c to violate the descent limit, got %s", rep)
	}
	near(t, "excess", vs[0].Magnitude, 5, 1e-9)
	if rep.Feasible() {
		t.Fatalf("report should be infeasible")
	}

	c.Params.MaxDescentRate = 12
	if vs := evaluate(t, c, route).ByConstraint(ConstraintClimbRate); len(vs) != 0 {
		t.Fatalf("12 m/s descent limit still violated: %v", vs)
	}
}

func TestGeofenceFlagsOffendingLegAndZone(t *testing.T) {
	c := &Context{Params: DefaultParams(), Zones: []model.NoFlyZone{
		RectZone("nfz-1", model.Vec2{X: 400, Y: -100}, model.Vec2{X: 600, Y: 100}),
		RectZone("nfz-2", model.Vec2{X: 400, Y: 500}, model.Vec2{X: 600, Y: 700}),
	}}
	rep := evaluate(t, c, straightRoute())
	vs := rep.ByConstraint(ConstraintGeofence)
	if len(vs) != 1 {
		t.Fatalf("geofence violations = %d, want 1: %s", len(vs), rep)
	}
	if vs[0].Entity != "leg:a->b zone:nfz-1" {
		t.Fatalf("entity = %q", vs[0].Entity)
	}
	near(t, "inside", vs[0].Magnitude, 200, 1e-6)
	if rep.Feasible() {
		t.Fatalf("report should be infeasible")
	}
}

func TestEnergyViolationOnLongMission(t *testing.T) {
	p := DefaultParams()
	p.BatteryWh = 50
	var wps []model.Waypoint
	for i := 0; i < 16; i++ {
		wps = append(wps, wp(string(rune('A'+i)), float64(i)*4000, float64(i%3)*1000, 100+float64(i)*10))
	}
	c := &Context{Params: p, Wind: UniformWind{V: model.Vec2{X: 3, Y: 2}}}
	route := model.Route{Waypoints: wps, Cyclic: true}
	tr := Simulate(route, c.Wind, p)
	if tr.TotalEnergyWh <= 80 {
		t.Fatalf("mission should need more than 80 Wh, needs %.1f", tr.TotalEnergyWh)
	}
	rep := evaluate(t, c, route)
	if len(rep.ByConstraint(ConstraintEnergy)) == 0 || rep.Feasible() {
		t.Fatalf("expected hard energy violation, got %s", rep)
	}
	// Margin decreases monotonically.
	for i := 1; i < len(tr.Arrivals); i++ {
		if tr.Arrivals[i].RemainingEnergyWh > tr.Arrivals[i-1].RemainingEnergyWh {
			t.Fatalf("remaining energy increased at arrival %d", i)
		}
	}
}

func TestFeasibleRouteHasEmptyReport(t *testing.T) {
	c := &Context{Params: DefaultParams(), Wind: UniformWind{V: model.Vec2{X: 3, Y: 2}}}
	route := model.Route{Cyclic: true, Waypoints: []model.Waypoint{
		wp("0", 0, 0, 100), wp("1", 1200, 200, 120), wp("2", 2000, 1400, 150), wp("3", 600, 1800, 100),
	}}
	rep := evaluate(t, c, route)
	if !rep.Empty() {
		t.Fatalf("expected empty report, got %s", rep)
	}
}

func TestGaussianSampleUsesCallerRNG(t *testing.T) {
	g := Gaussian{Mean: model.Vec2{X: 3, Y: 3}, Std: model.Vec2{X: 2, Y: 2}}
	a := g.Sample(rand.New(rand.NewPCG(1, 2)))
	b := g.Sample(rand.New(rand.NewPCG(1, 2)))
	if a != b {
		t.Fatalf("same seed gave %v and %v", a, b)
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.MinAltitude = 600
	err := p.Validate()
	var ce *core.ConfigError
	if !errors.As(err, &ce) || ce.Field != "aircraft.altitude_bounds" {
		t.Fatalf("expected altitude_bounds config error, got %v", err)
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}
