package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/planner"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

// Expectation is the anticipated outcome of an edge case.
type Expectation string

const (
	// ExpectFeasible: the run completes with no hard violations.
	ExpectFeasible Expectation = "feasible"
	// ExpectInfeasible: the run completes and the plan is reported
	// infeasible.
	ExpectInfeasible Expectation = "infeasible"
	// ExpectCompletes: the run completes either way.
	ExpectCompletes Expectation = "completes"
	// ExpectNoObservations: the run completes with an empty observation
	// schedule.
	ExpectNoObservations Expectation = "no_observations"
	// ExpectConfigError: the scenario is rejected before planning.
	ExpectConfigError Expectation = "config_error"
	// ExpectNonConvergence: propagation fails to converge.
	ExpectNonConvergence Expectation = "non_convergence"
)

// Edge case groups.
const (
	GroupWind     = "wind"
	GroupBattery  = "battery"
	GroupGeofence = "obstacle_density"
	GroupOrbit    = "orbit"
	GroupFailure  = "failure_mode"
)

// EdgeCase is one entry of the edge-case table.
type EdgeCase struct {
	Name     string
	Group    string
	Scenario *scenario.Scenario
	Expect   Expectation
	Options  []planner.SpacecraftOption
}

// EdgeCaseResult is the judged outcome of one edge case.
type EdgeCaseResult struct {
	Name   string      `json:"name"`
	Group  string      `json:"group"`
	Expect Expectation `json:"expect"`
	Passed bool        `json:"passed"`
	Reason string      `json:"reason"`
	Run    RunResult   `json:"run"`
}

// EdgeCaseReport collects every edge case result in table order.
type EdgeCaseReport struct {
	Results []EdgeCaseResult `json:"results"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
}

// Judge compares a run against its expectation and explains the verdict.
func Judge(expect Expectation, res RunResult) (bool, string) {
	switch expect {
	case ExpectConfigError:
		if res.IsConfigError() {
			return true, "rejected: " + res.Error
		}
		return false, "expected a configuration error, " + describeRun(res)
	case ExpectNonConvergence:
		if errors.Is(res.Err, core.ErrNonConvergence) {
			return true, "non-convergence reported: " + res.Error
		}
		return false, "expected non-convergence, " + describeRun(res)
	}
	if res.Err != nil {
		return false, "run failed: " + res.Error
	}
	switch expect {
	case ExpectFeasible:
		if res.Feasible {
			return true, describeRun(res)
		}
		return false, "expected a feasible plan, " + describeRun(res)
	case ExpectInfeasible:
		hard := res.Report != nil && len(res.Report.Hard()) > 0
		if !res.Feasible && (hard || res.Status != solver.StatusSolved) {
			return true, describeRun(res)
		}
		return false, "expected an infeasible plan, " + describeRun(res)
	case ExpectCompletes:
		return true, describeRun(res)
	case ExpectNoObservations:
		if n := res.Metrics["observations"]; n == 0 {
			return true, describeRun(res)
		}
		return false, fmt.Sprintf("expected no observations, got %v", res.Metrics["observations"])
	}
	return false, fmt.Sprintf("unknown expectation %q", expect)
}

func describeRun(res RunResult) string {
	if res.Err != nil {
		return "got error: " + res.Error
	}
	hard := 0
	if res.Report != nil {
		hard = len(res.Report.Hard())
	}
	return fmt.Sprintf("status %s, feasible %t, %d hard violations", res.Status, res.Feasible, hard)
}

// RunEdgeCases plans every case and judges it. Cases run concurrently;
// results keep table order.
func RunEdgeCases(ctx context.Context, r *Runner, cases []EdgeCase, workers int) (*EdgeCaseReport, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanEdgeCases, observability.AttrTrials.Int(len(cases)))
	defer span.End()
	results := make([]EdgeCaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cases {
		g.Go(func() error {
			res := r.RunScenario(gctx, c.Name, c.Scenario, c.Options...)
			if res.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			ok, reason := Judge(c.Expect, res)
			results[i] = EdgeCaseResult{
				Name: c.Name, Group: c.Group, Expect: c.Expect,
				Passed: ok, Reason: reason, Run: res,
			}
			r.metrics.ObserveTrial("edge_cases", ok)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.FailSpan(span, err)
		return nil, err
	}

	rep := &EdgeCaseReport{Results: results}
	for _, res := range results {
		if res.Passed {
			rep.Passed++
		} else {
			rep.Failed++
			r.log.Warn(ctx, "edge case failed",
				logging.String("case", res.Name),
				logging.String("group", res.Group),
				logging.String("reason", res.Reason),
			)
		}
	}
	if len(results) > 0 {
		ratio := float64(rep.Passed) / float64(len(results))
		r.metrics.SetSuccessRatio("edge_cases", ratio)
		span.SetAttributes(observability.AttrSuccessRate.Float64(ratio))
	}
	return rep, nil
}

// EdgeCases returns the standard table: wind strengths and directions,
// battery capacities, obstacle densities, orbit regimes and failure modes.
func EdgeCases() []EdgeCase {
	var cases []EdgeCase
	cases = append(cases, windCases()...)
	cases = append(cases, batteryCases()...)
	cases = append(cases, geofenceCases()...)
	cases = append(cases, orbitCases()...)
	cases = append(cases, failureCases()...)
	return cases
}

func aircraftScenario(name string, wps []model.Waypoint, wind scenario.WindConfig, batteryWh float64, zones []scenario.ZoneConfig) *scenario.Scenario {
	sc := &scenario.Scenario{
		Name: name,
		Aircraft: &scenario.AircraftConfig{
			Waypoints:         wps,
			NoFlyZones:        zones,
			Wind:              wind,
			BatteryCapacityWh: batteryWh,
		},
	}
	sc.ApplyDefaults()
	return sc
}

// A 3-waypoint out-and-back line along x: every ordering flies both east
// and west, so a wind the aircraft cannot penetrate on either heading
// makes the route unflyable.
func windCases() []EdgeCase {
	line := func() []model.Waypoint {
		return []model.Waypoint{
			{ID: "WP0", X: 0, Y: 0, Altitude: 100},
			{ID: "WP1", X: 5000, Y: 0, Altitude: 100},
			{ID: "WP2", X: 10000, Y: 0, Altitude: 100},
		}
	}
	table := []struct {
		name   string
		wind   scenario.WindConfig
		expect Expectation
	}{
		{"calm", scenario.WindConfig{X: 0.5, Y: 0.5}, ExpectFeasible},
		{"moderate", scenario.WindConfig{X: 5, Y: 5}, ExpectFeasible},
		{"strong", scenario.WindConfig{X: 15, Y: 10}, ExpectFeasible},
		{"storm", scenario.WindConfig{X: 25, Y: 20}, ExpectInfeasible},
		{"crosswind", scenario.WindConfig{X: 0, Y: 20}, ExpectInfeasible},
		{"headwind", scenario.WindConfig{X: -20, Y: 0}, ExpectInfeasible},
		{"tailwind", scenario.WindConfig{X: 20, Y: 0}, ExpectInfeasible},
	}
	out := make([]EdgeCase, 0, len(table))
	for _, tc := range table {
		out = append(out, EdgeCase{
			Name:     "wind_" + tc.name,
			Group:    GroupWind,
			Scenario: aircraftScenario("wind_"+tc.name, line(), tc.wind, 0, nil),
			Expect:   tc.expect,
		})
	}
	return out
}

func batteryCases() []EdgeCase {
	survey := func() []model.Waypoint {
		wps := make([]model.Waypoint, 15)
		for i := range wps {
			wps[i] = model.Waypoint{
				ID:       fmt.Sprintf("WP%d", i),
				X:        float64(i) * 2000,
				Y:        float64(i%3) * 1000,
				Altitude: 100 + float64(i)*10,
			}
		}
		return wps
	}
	table := []struct {
		name   string
		wh     float64
		expect Expectation
	}{
		{"minimal", 50, ExpectInfeasible},
		{"low", 100, ExpectCompletes},
		{"normal", 500, ExpectFeasible},
		{"extended", 1000, ExpectFeasible},
	}
	out := make([]EdgeCase, 0, len(table))
	for _, tc := range table {
		out = append(out, EdgeCase{
			Name:     "battery_" + tc.name,
			Group:    GroupBattery,
			Scenario: aircraftScenario("battery_"+tc.name, survey(), scenario.WindConfig{X: 5, Y: 3}, tc.wh, nil),
			Expect:   tc.expect,
		})
	}
	return out
}

func square(id string, x, y, size float64) scenario.ZoneConfig {
	return scenario.ZoneConfig{
		ID:  id,
		Min: &model.Vec2{X: x, Y: y},
		Max: &model.Vec2{X: x + size, Y: y + size},
	}
}

// A single diagonal leg flown both ways. Every non-empty field puts at least
// one zone on the diagonal and planning does not route around zones.
func geofenceCases() []EdgeCase {
	diagonal := func() []model.Waypoint {
		return []model.Waypoint{
			{ID: "start", X: 0, Y: 0, Altitude: 100},
			{ID: "end", X: 10000, Y: 10000, Altitude: 100},
		}
	}
	var dense, maze []scenario.ZoneConfig
	for i := 1; i < 10; i++ {
		for j := 1; j < 10; j++ {
			if (i+j)%3 == 0 {
				dense = append(dense, square(fmt.Sprintf("NFZ-%d-%d", i, j), float64(i)*1000, float64(j)*1000, 800))
			}
		}
	}
	for i := 2; i < 20; i++ {
		for j := 2; j < 20; j++ {
			if (i*j)%5 == 0 {
				maze = append(maze, square(fmt.Sprintf("NFZ-%d-%d", i, j), float64(i)*500, float64(j)*500, 400))
			}
		}
	}
	table := []struct {
		name   string
		zones  []scenario.ZoneConfig
		expect Expectation
	}{
		{"no_obstacles", nil, ExpectFeasible},
		{"sparse", []scenario.ZoneConfig{square("NFZ1", 2000, 2000, 1000), square("NFZ2", 7000, 7000, 1000)}, ExpectInfeasible},
		{"dense", dense, ExpectInfeasible},
		{"maze", maze, ExpectInfeasible},
	}
	out := make([]EdgeCase, 0, len(table))
	for _, tc := range table {
		out = append(out, EdgeCase{
			Name:     "geofence_" + tc.name,
			Group:    GroupGeofence,
			Scenario: aircraftScenario("geofence_"+tc.name, diagonal(), scenario.WindConfig{X: 3, Y: 2}, 0, tc.zones),
			Expect:   tc.expect,
		})
	}
	return out
}

func spacecraftScenario(name string, orbit scenario.OrbitConfig, days float64, targets, stations []scenario.SubjectConfig) *scenario.Scenario {
	if orbit.Epoch.IsZero() {
		orbit.Epoch = scenario.ReferenceEpoch
	}
	sc := &scenario.Scenario{
		Name: name,
		Spacecraft: &scenario.SpacecraftConfig{
			Orbit:          orbit,
			Targets:        targets,
			GroundStations: stations,
			HorizonDays:    days,
		},
	}
	sc.ApplyDefaults()
	return sc
}

func orbitCases() []EdgeCase {
	subjects := func() ([]scenario.SubjectConfig, []scenario.SubjectConfig) {
		return []scenario.SubjectConfig{
				{ID: "equator", LatitudeDeg: 0, LongitudeDeg: 0, Priority: 5},
				{ID: "north", LatitudeDeg: 70, LongitudeDeg: 0, Priority: 5},
				{ID: "south", LatitudeDeg: -70, LongitudeDeg: 0, Priority: 5},
			}, []scenario.SubjectConfig{
				{ID: "gs-midwest", LatitudeDeg: 40, LongitudeDeg: -100},
			}
	}
	r := spacecraft.EarthRadiusKm
	table := []struct {
		name  string
		orbit scenario.OrbitConfig
	}{
		{"low_leo", scenario.OrbitConfig{SemiMajorAxisKm: r + 200, InclinationDeg: 51.6}},
		{"high_leo", scenario.OrbitConfig{SemiMajorAxisKm: r + 600, InclinationDeg: 51.6}},
		{"polar", scenario.OrbitConfig{SemiMajorAxisKm: r + 400, InclinationDeg: 90}},
		{"sun_sync", scenario.OrbitConfig{SemiMajorAxisKm: r + 400, InclinationDeg: 97.8}},
		{"eccentric", scenario.OrbitConfig{SemiMajorAxisKm: 10000, Eccentricity: 0.3, InclinationDeg: 51.6}},
	}
	out := make([]EdgeCase, 0, len(table))
	for _, tc := range table {
		targets, stations := subjects()
		out = append(out, EdgeCase{
			Name:     "orbit_" + tc.name,
			Group:    GroupOrbit,
			Scenario: spacecraftScenario("orbit_"+tc.name, tc.orbit, 3, targets, stations),
			Expect:   ExpectFeasible,
		})
	}
	return out
}

func failureCases() []EdgeCase {
	far := make([]model.Waypoint, 10)
	for i := range far {
		far[i] = model.Waypoint{ID: fmt.Sprintf("WP%d", i), X: float64(i) * 50000, Altitude: 100}
	}

	// Near-equatorial orbit, polar targets: the ground station is visible
	// but no target ever rises above the mask.
	noVis := spacecraftScenario("no_visibility",
		scenario.OrbitConfig{AltitudeKm: 400, InclinationDeg: 0.1}, 1,
		[]scenario.SubjectConfig{
			{ID: "north-pole", LatitudeDeg: 89, LongitudeDeg: 0, Priority: 5},
			{ID: "south-pole", LatitudeDeg: -89, LongitudeDeg: 0, Priority: 5},
		},
		[]scenario.SubjectConfig{{ID: "gs-gulf-of-guinea", LatitudeDeg: 0, LongitudeDeg: 0}},
	)

	invalid := aircraftScenario("invalid_config", []model.Waypoint{
		{ID: "WP0", X: 0, Y: 0, Altitude: 100},
		{ID: "WP1", X: 1000, Y: 0, Altitude: 100},
	}, scenario.WindConfig{}, -100, nil)

	// One Newton step at a tolerance no step can meet: every sample off
	// periapsis fails.
	stiff := spacecraft.Propagator{Mu: spacecraft.MuEarth, J2: spacecraft.J2, Tolerance: 1e-15, MaxIterations: 1}
	diverge := spacecraftScenario("kepler_non_convergence",
		scenario.OrbitConfig{SemiMajorAxisKm: 10000, Eccentricity: 0.3, InclinationDeg: 51.6}, 1,
		[]scenario.SubjectConfig{{ID: "equator", Priority: 5}}, nil)

	return []EdgeCase{
		{
			Name:     "insufficient_battery",
			Group:    GroupFailure,
			Scenario: aircraftScenario("insufficient_battery", far, scenario.WindConfig{}, 10, nil),
			Expect:   ExpectInfeasible,
		},
		{Name: "no_visibility", Group: GroupFailure, Scenario: noVis, Expect: ExpectNoObservations},
		{Name: "invalid_config", Group: GroupFailure, Scenario: invalid, Expect: ExpectConfigError},
		{
			Name:     "kepler_non_convergence",
			Group:    GroupFailure,
			Scenario: diverge,
			Expect:   ExpectNonConvergence,
			Options:  []planner.SpacecraftOption{planner.WithPropagator(stiff)},
		},
	}
}
