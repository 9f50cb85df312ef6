package scenario

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

const surveyYAML = `
name: survey
aircraft:
  waypoints:
    - {x: 0, y: 0, altitude: 100}
    - {x: 1000, y: 0, altitude: 100}
    - {x: 1000, y: 1000, altitude: 120}
  no_fly_zones:
    - id: tower
      vertices: [{x: 400, y: -50}, {x: 600, y: -50}, {x: 600, y: 50}, {x: 400, y: 50}]
  wind: {x: 3, y: 2}
  battery_capacity_wh: 200
  altitude_bounds: [50, 400]
objective:
  mode: lexicographic
  weights:
    minimize_distance: 1
solver:
  budget_s: 5
`

func TestReferenceScenariosAreValid(t *testing.T) {
	air := ReferenceAircraft()
	if err := air.Validate(); err != nil {
		t.Fatalf("reference aircraft: %v", err)
	}
	if air.Domain() != model.DomainAircraft {
		t.Fatalf("domain = %s", air.Domain())
	}
	route := air.Aircraft.Route()
	if len(route.Waypoints) != 7 || !route.Cyclic {
		t.Fatalf("route = %d waypoints cyclic=%v", len(route.Waypoints), route.Cyclic)
	}
	if zones := air.Aircraft.Zones(); len(zones) != 2 || len(zones[0].Vertices) != 4 {
		t.Fatalf("zones = %+v", zones)
	}
	if p := air.Aircraft.Params(); p.BatteryWh != 500 || p.MaxTurnRate != 0.5 || p.ReservePct != 0.1 {
		t.Fatalf("params = %+v", p)
	}
	if w := air.Aircraft.WindField().At(model.Vec2{X: 123, Y: 456}); w.X != 3 || w.Y != 2 {
		t.Fatalf("wind = %+v", w)
	}
	if air.Budget().Seconds() != 30 {
		t.Fatalf("budget = %v, want default 30s", air.Budget())
	}

	sc := ReferenceSpacecraft()
	if err := sc.Validate(); err != nil {
		t.Fatalf("reference spacecraft: %v", err)
	}
	orbit := sc.Spacecraft.OrbitState()
	if math.Abs(orbit.SemiMajorAxisKm-(spacecraft.EarthRadiusKm+550)) > 1e-9 {
		t.Fatalf("semi-major axis = %v", orbit.SemiMajorAxisKm)
	}
	if math.Abs(orbit.InclinationRad*180/math.Pi-97.4) > 1e-9 {
		t.Fatalf("inclination = %v rad", orbit.InclinationRad)
	}
	cat, err := sc.Spacecraft.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(cat.Targets()) != 5 || len(cat.Stations()) != 3 {
		t.Fatalf("catalog has %d targets, %d stations", len(cat.Targets()), len(cat.Stations()))
	}
	for _, s := range cat.Targets() {
		if s.MinElevationDeg != 10 {
			t.Fatalf("target %s min elevation = %v, want 10", s.ID, s.MinElevationDeg)
		}
	}
	for _, s := range cat.Stations() {
		if s.MinElevationDeg != 5 {
			t.Fatalf("station %s min elevation = %v, want 5", s.ID, s.MinElevationDeg)
		}
	}
	start, end := sc.Spacecraft.Horizon()
	if !start.Equal(ReferenceEpoch) || end.Sub(start).Hours() != 7*24 {
		t.Fatalf("horizon = %v..%v", start, end)
	}
	if p := sc.Spacecraft.PowerParams(); p.BatteryWh != 100 || p.SolarW != 30 || p.FloorPct != 0.2 || p.InitialSOC != 1 {
		t.Fatalf("power = %+v", p)
	}
}

func TestParseYAML(t *testing.T) {
	sc, err := Parse([]byte(surveyYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Name != "survey" || sc.Objective.Mode != "lexicographic" || sc.Solver.BudgetS != 5 {
		t.Fatalf("scenario = %+v", sc)
	}
	a := sc.Aircraft
	if len(a.Waypoints) != 3 || a.Waypoints[2].ID != "WP2" || a.Waypoints[2].Altitude != 120 {
		t.Fatalf("waypoints = %+v", a.Waypoints)
	}
	if a.Airspeed != 20 || a.TurnWindowS != 20 {
		t.Fatalf("defaults not applied: %+v", a)
	}
	if len(sc.Objective.Weights) != 1 {
		t.Fatalf("explicit weights replaced: %v", sc.Objective.Weights)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	bad := strings.Replace(surveyYAML, "battery_capacity_wh", "battery_wh_typo", 1)
	if _, err := Parse([]byte(bad), FormatYAML); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	if _, err := Parse([]byte(`{"name": "x", "aircraft": {"waypoints": [], "extra": 1}}`), FormatJSON); err == nil {
		t.Fatalf("expected unknown json key to be rejected")
	}
	if _, err := Parse([]byte("  \n"), FormatYAML); err == nil {
		t.Fatalf("expected empty payload error")
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()

	data, err := Marshal(ReferenceSpacecraft(), FormatJSON)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	jsonPath := filepath.Join(dir, "leo.json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile json: %v", err)
	}
	if sc.Domain() != model.DomainSpacecraft || len(sc.Spacecraft.Targets) != 5 {
		t.Fatalf("loaded = %+v", sc)
	}
	if !sc.Spacecraft.Orbit.Epoch.Equal(ReferenceEpoch) {
		t.Fatalf("epoch = %v", sc.Spacecraft.Orbit.Epoch)
	}

	yamlPath := filepath.Join(dir, "survey.yml")
	if err := os.WriteFile(yamlPath, []byte(strings.Replace(surveyYAML, "name: survey\n", "", 1)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err = LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile yaml: %v", err)
	}
	if sc.Name != "survey" {
		t.Fatalf("name = %q, want derived from file name", sc.Name)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestValidateNamesOffendingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Scenario)
		field  string
	}{
		{"no domain", func(s *Scenario) { s.Aircraft = nil }, "scenario"},
		{"both domains", func(s *Scenario) { s.Spacecraft = ReferenceSpacecraft().Spacecraft }, "scenario"},
		{"empty waypoints", func(s *Scenario) { s.Aircraft.Waypoints = nil }, "aircraft.waypoints"},
		{"negative battery", func(s *Scenario) { s.Aircraft.BatteryCapacityWh = -5 }, "aircraft.battery_capacity_wh"},
		{"inverted altitude", func(s *Scenario) { s.Aircraft.AltitudeBounds = []float64{300, 100} }, "aircraft.altitude_bounds"},
		{"flat zone", func(s *Scenario) {
			s.Aircraft.NoFlyZones = []ZoneConfig{{ID: "line", Vertices: []model.Vec2{{X: 0}, {X: 1}, {X: 2}}}}
		}, "aircraft.no_fly_zones[0].vertices"},
		{"negative descent rate", func(s *Scenario) { s.Aircraft.MaxDescentRate = -2 }, "aircraft.max_descent_rate"},
		{"duplicate waypoint", func(s *Scenario) { s.Aircraft.Waypoints[1].ID = "WP0" }, "aircraft.waypoints[1].id"},
		{"unknown objective", func(s *Scenario) { s.Objective.Weights = map[string]float64{"maximize_fun": 1} }, "objective.weights.maximize_fun"},
		{"bad mode", func(s *Scenario) { s.Objective.Mode = "pareto" }, "objective.mode"},
		{"zero budget", func(s *Scenario) { s.Solver.BudgetS = -1 }, "solver.budget_s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := ReferenceAircraft()
			tc.mutate(sc)
			assertField(t, sc.Validate(), tc.field)
		})
	}

	orbitCases := []struct {
		name   string
		mutate func(*SpacecraftConfig)
		field  string
	}{
		{"hyperbolic", func(c *SpacecraftConfig) { c.Orbit.Eccentricity = 1.2 }, "spacecraft.orbit.eccentricity"},
		{"below surface", func(c *SpacecraftConfig) {
			c.Orbit.AltitudeKm = 0
			c.Orbit.SemiMajorAxisKm = 6771
			c.Orbit.Eccentricity = 0.3
		}, "spacecraft.orbit"},
		{"no targets", func(c *SpacecraftConfig) { c.Targets = nil }, "spacecraft.targets"},
		{"bad latitude", func(c *SpacecraftConfig) { c.Targets[0].LatitudeDeg = 95 }, "spacecraft.targets[0].lat"},
		{"duplicate subject", func(c *SpacecraftConfig) { c.GroundStations[0].ID = "london" }, "spacecraft.ground_stations[0].id"},
		{"station mask at zenith", func(c *SpacecraftConfig) { c.StationMinElevationDeg = 90 }, "spacecraft.station_min_elevation_deg"},
		{"floor above one", func(c *SpacecraftConfig) { c.SOCFloorPct = 1.5 }, "spacecraft.soc_floor_pct"},
		{"negative horizon", func(c *SpacecraftConfig) { c.HorizonDays = -1 }, "spacecraft.horizon_days"},
		{"short tle", func(c *SpacecraftConfig) { c.TLE = &TLEConfig{Line1: "1 x", Line2: "2 y"} }, "spacecraft.tle"},
	}
	for _, tc := range orbitCases {
		t.Run(tc.name, func(t *testing.T) {
			sc := ReferenceSpacecraft()
			tc.mutate(sc.Spacecraft)
			assertField(t, sc.Validate(), tc.field)
		})
	}
}

func assertField(t *testing.T, err error, field string) {
	t.Helper()
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	var cfgErr *core.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %T, want *core.ConfigError", err)
	}
	if cfgErr.Field != field {
		t.Fatalf("field = %q, want %q", cfgErr.Field, field)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := ReferenceAircraft()
	cp := orig.Clone()
	cp.Aircraft.Waypoints[0].X = 999
	cp.Aircraft.Wind.X = 40
	*cp.Aircraft.ReservePct = 0.5
	cp.Aircraft.NoFlyZones[0].Min.X = -1
	cp.Objective.Weights["minimize_energy"] = 42

	if orig.Aircraft.Waypoints[0].X != 0 || orig.Aircraft.Wind.X != 3 {
		t.Fatalf("clone shares aircraft state")
	}
	if *orig.Aircraft.ReservePct != 0.1 || orig.Aircraft.NoFlyZones[0].Min.X != 1500 {
		t.Fatalf("clone shares pointer fields")
	}
	if orig.Objective.Weights["minimize_energy"] != 1 {
		t.Fatalf("clone shares weights")
	}

	sc := ReferenceSpacecraft()
	scCopy := sc.Clone()
	scCopy.Spacecraft.Targets[0].Priority = 0
	if sc.Spacecraft.Targets[0].Priority != 10 {
		t.Fatalf("clone shares targets")
	}
}
