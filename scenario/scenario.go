// Package scenario holds mission scenario configuration: the on-disk YAML or
// JSON shape, defaults, validation, and conversion into the physics
// parameters the domain packages consume.
package scenario

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/signalsfoundry/mission-planner/aircraft"
	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/kb"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

// Scenario is one planning problem. Exactly one of Aircraft or Spacecraft is
// set.
type Scenario struct {
	Name       string            `yaml:"name" json:"name"`
	Aircraft   *AircraftConfig   `yaml:"aircraft,omitempty" json:"aircraft,omitempty"`
	Spacecraft *SpacecraftConfig `yaml:"spacecraft,omitempty" json:"spacecraft,omitempty"`
	Objective  ObjectiveConfig   `yaml:"objective" json:"objective"`
	Solver     SolverConfig      `yaml:"solver" json:"solver"`
}

// AircraftConfig describes a waypoint-routing mission.
type AircraftConfig struct {
	Waypoints []model.Waypoint `yaml:"waypoints" json:"waypoints"`
	// ReturnToStart closes the route back at the first waypoint. Defaults
	// to true.
	ReturnToStart *bool        `yaml:"return_to_start,omitempty" json:"return_to_start,omitempty"`
	NoFlyZones    []ZoneConfig `yaml:"no_fly_zones" json:"no_fly_zones"`
	Wind          WindConfig   `yaml:"wind" json:"wind"`

	Airspeed          float64   `yaml:"airspeed" json:"airspeed"`
	BasePowerW        float64   `yaml:"base_power_w" json:"base_power_w"`
	ManeuverPower     float64   `yaml:"maneuver_power" json:"maneuver_power"`
	TurnRateMax       float64   `yaml:"turn_rate_max" json:"turn_rate_max"` // rad/s
	MaxBankDeg        float64   `yaml:"max_bank_deg" json:"max_bank_deg"`
	AltitudeBounds    []float64 `yaml:"altitude_bounds" json:"altitude_bounds"`
	MaxClimbRate      float64   `yaml:"max_climb_rate" json:"max_climb_rate"`     // m/s
	MaxDescentRate    float64   `yaml:"max_descent_rate" json:"max_descent_rate"` // m/s
	BatteryCapacityWh float64   `yaml:"battery_capacity_wh" json:"battery_capacity_wh"`
	ReservePct        *float64  `yaml:"reserve_pct,omitempty" json:"reserve_pct,omitempty"`
	TurnWindowS       float64   `yaml:"turn_window_s" json:"turn_window_s"`
	WindSampleStepM   float64   `yaml:"wind_sample_step_m" json:"wind_sample_step_m"`
	MinGroundSpeed    float64   `yaml:"min_ground_speed" json:"min_ground_speed"`
}

// ZoneConfig is a no-fly polygon, given either as vertices or as an
// axis-aligned rectangle.
type ZoneConfig struct {
	ID       string       `yaml:"id" json:"id"`
	Vertices []model.Vec2 `yaml:"vertices,omitempty" json:"vertices,omitempty"`
	Min      *model.Vec2  `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *model.Vec2  `yaml:"max,omitempty" json:"max,omitempty"`
}

// WindConfig is the base wind vector (m/s) plus an optional spatial
// variation.
type WindConfig struct {
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
	Amplitude float64 `yaml:"amplitude,omitempty" json:"amplitude,omitempty"`
	ScaleM    float64 `yaml:"scale_m,omitempty" json:"scale_m,omitempty"`
}

// SpacecraftConfig describes an observation and downlink scheduling mission.
type SpacecraftConfig struct {
	Orbit OrbitConfig `yaml:"orbit" json:"orbit"`
	// TLE, when set, drives positions through SGP4 instead of the Kepler
	// propagator.
	TLE            *TLEConfig      `yaml:"tle,omitempty" json:"tle,omitempty"`
	Targets        []SubjectConfig `yaml:"targets" json:"targets"`
	GroundStations []SubjectConfig `yaml:"ground_stations" json:"ground_stations"`

	HorizonStart    time.Time `yaml:"horizon_start,omitempty" json:"horizon_start,omitempty"`
	HorizonDays     float64   `yaml:"horizon_days" json:"horizon_days"`
	MinElevationDeg float64   `yaml:"min_elevation_deg" json:"min_elevation_deg"`
	// StationMinElevationDeg is the mask for ground stations without their
	// own; MinElevationDeg covers targets.
	StationMinElevationDeg float64 `yaml:"station_min_elevation_deg" json:"station_min_elevation_deg"`
	SlewRateMax            float64 `yaml:"slew_rate_max" json:"slew_rate_max"` // deg/s
	DutyCycleMax           int     `yaml:"duty_cycle_max" json:"duty_cycle_max"`
	MaxStorageH            float64 `yaml:"max_storage_h" json:"max_storage_h"`
	ObservationS           float64 `yaml:"observation_s" json:"observation_s"`
	DownlinkS              float64 `yaml:"downlink_s" json:"downlink_s"`

	BatteryWh    float64  `yaml:"battery_wh" json:"battery_wh"`
	SolarW       float64  `yaml:"solar_w" json:"solar_w"`
	IdleW        float64  `yaml:"idle_w" json:"idle_w"`
	ObservationW float64  `yaml:"observation_w" json:"observation_w"`
	DownlinkW    float64  `yaml:"downlink_w" json:"downlink_w"`
	InitialSOC   *float64 `yaml:"initial_soc,omitempty" json:"initial_soc,omitempty"`
	SOCFloorPct  float64  `yaml:"soc_floor_pct" json:"soc_floor_pct"`

	SampleStepS      float64 `yaml:"sample_step_s" json:"sample_step_s"`
	RefineToleranceS float64 `yaml:"refine_tolerance_s" json:"refine_tolerance_s"`
}

// OrbitConfig gives classical elements in degrees. SemiMajorAxisKm wins over
// AltitudeKm when both are set.
type OrbitConfig struct {
	AltitudeKm      float64   `yaml:"altitude_km" json:"altitude_km"`
	SemiMajorAxisKm float64   `yaml:"semi_major_axis_km" json:"semi_major_axis_km"`
	Eccentricity    float64   `yaml:"eccentricity" json:"eccentricity"`
	InclinationDeg  float64   `yaml:"inclination_deg" json:"inclination_deg"`
	RAANDeg         float64   `yaml:"raan_deg" json:"raan_deg"`
	ArgPeriapsisDeg float64   `yaml:"arg_periapsis_deg" json:"arg_periapsis_deg"`
	TrueAnomalyDeg  float64   `yaml:"true_anomaly_deg" json:"true_anomaly_deg"`
	Epoch           time.Time `yaml:"epoch" json:"epoch"`
}

// TLEConfig is a two-line element set.
type TLEConfig struct {
	Line1 string `yaml:"line1" json:"line1"`
	Line2 string `yaml:"line2" json:"line2"`
}

// SubjectConfig is a ground target or station.
type SubjectConfig struct {
	ID              string  `yaml:"id" json:"id"`
	Name            string  `yaml:"name,omitempty" json:"name,omitempty"`
	LatitudeDeg     float64 `yaml:"lat" json:"lat"`
	LongitudeDeg    float64 `yaml:"lon" json:"lon"`
	AltitudeKm      float64 `yaml:"altitude_km,omitempty" json:"altitude_km,omitempty"`
	Priority        float64 `yaml:"priority,omitempty" json:"priority,omitempty"`
	MinElevationDeg float64 `yaml:"min_elevation_deg,omitempty" json:"min_elevation_deg,omitempty"`
}

// ObjectiveConfig selects the objectives and their combination.
type ObjectiveConfig struct {
	Mode    string             `yaml:"mode" json:"mode"`
	Weights map[string]float64 `yaml:"weights" json:"weights"`
	// ReserveWeight and LatencyWeight scale the soft constraints.
	ReserveWeight float64 `yaml:"reserve_weight" json:"reserve_weight"`
	LatencyWeight float64 `yaml:"latency_weight" json:"latency_weight"`
}

// SolverConfig controls the solver call.
type SolverConfig struct {
	BudgetS   float64 `yaml:"budget_s" json:"budget_s"`
	Address   string  `yaml:"address,omitempty" json:"address,omitempty"`
	MaxPasses int     `yaml:"max_passes,omitempty" json:"max_passes,omitempty"`
}

// Defaults.
const (
	DefaultBudget                 = 30 * time.Second
	DefaultHorizonDays            = 7
	DefaultMinElevationDeg        = 10
	DefaultStationMinElevationDeg = 5
	DefaultSlewRateDegPerS        = 1
	DefaultDutyCycleMax           = 5
	DefaultMaxStorageH            = 24
	DefaultObservationS           = 30
	DefaultDownlinkS              = 60
	DefaultReserveWeight          = 1
	DefaultLatencyWeight          = 10
)

// Domain reports which vehicle class the scenario plans for.
func (s *Scenario) Domain() model.Domain {
	if s.Spacecraft != nil {
		return model.DomainSpacecraft
	}
	return model.DomainAircraft
}

// Budget is the solver wall-clock budget.
func (s *Scenario) Budget() time.Duration {
	return time.Duration(s.Solver.BudgetS * float64(time.Second))
}

// ApplyDefaults fills every zero-valued setting.
func (s *Scenario) ApplyDefaults() {
	if s.Solver.BudgetS == 0 {
		s.Solver.BudgetS = DefaultBudget.Seconds()
	}
	if s.Objective.Mode == "" {
		s.Objective.Mode = string(core.Weighted)
	}
	if s.Objective.ReserveWeight == 0 {
		s.Objective.ReserveWeight = DefaultReserveWeight
	}
	if s.Objective.LatencyWeight == 0 {
		s.Objective.LatencyWeight = DefaultLatencyWeight
	}
	if s.Aircraft != nil {
		s.Aircraft.applyDefaults()
		if s.Objective.Weights == nil {
			s.Objective.Weights = map[string]float64{
				aircraft.ObjectiveEnergy: 1,
				aircraft.ObjectiveTime:   0.01,
			}
		}
	}
	if s.Spacecraft != nil {
		s.Spacecraft.applyDefaults()
		if s.Objective.Weights == nil {
			s.Objective.Weights = map[string]float64{
				spacecraft.ObjectiveScience:   1,
				spacecraft.ObjectiveDownlinks: 0.5,
			}
		}
	}
}

func (a *AircraftConfig) applyDefaults() {
	d := aircraft.DefaultParams()
	if a.ReturnToStart == nil {
		yes := true
		a.ReturnToStart = &yes
	}
	if a.Airspeed == 0 {
		a.Airspeed = d.Airspeed
	}
	if a.BasePowerW == 0 {
		a.BasePowerW = d.BasePower
	}
	if a.ManeuverPower == 0 {
		a.ManeuverPower = d.ManeuverPower
	}
	if a.TurnRateMax == 0 {
		a.TurnRateMax = d.MaxTurnRate
	}
	if a.MaxBankDeg == 0 {
		a.MaxBankDeg = d.MaxBankAngle * 180 / math.Pi
	}
	if len(a.AltitudeBounds) == 0 {
		a.AltitudeBounds = []float64{d.MinAltitude, d.MaxAltitude}
	}
	if a.MaxClimbRate == 0 {
		a.MaxClimbRate = d.MaxClimbRate
	}
	if a.MaxDescentRate == 0 {
		a.MaxDescentRate = d.MaxDescentRate
	}
	if a.BatteryCapacityWh == 0 {
		a.BatteryCapacityWh = d.BatteryWh
	}
	if a.ReservePct == nil {
		r := d.ReservePct
		a.ReservePct = &r
	}
	if a.TurnWindowS == 0 {
		a.TurnWindowS = d.TurnWindow
	}
	if a.WindSampleStepM == 0 {
		a.WindSampleStepM = d.WindSampleStep
	}
	if a.MinGroundSpeed == 0 {
		a.MinGroundSpeed = d.MinGroundSpeed
	}
	for i := range a.Waypoints {
		if a.Waypoints[i].ID == "" {
			a.Waypoints[i].ID = fmt.Sprintf("WP%d", i)
		}
	}
	for i := range a.NoFlyZones {
		if a.NoFlyZones[i].ID == "" {
			a.NoFlyZones[i].ID = fmt.Sprintf("NFZ%d", i+1)
		}
	}
}

func (c *SpacecraftConfig) applyDefaults() {
	p := spacecraft.DefaultPowerParams()
	f := spacecraft.DefaultWindowFinder()
	if c.HorizonDays == 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.HorizonStart.IsZero() {
		c.HorizonStart = c.Orbit.Epoch
	}
	if c.MinElevationDeg == 0 {
		c.MinElevationDeg = DefaultMinElevationDeg
	}
	if c.StationMinElevationDeg == 0 {
		c.StationMinElevationDeg = DefaultStationMinElevationDeg
	}
	if c.SlewRateMax == 0 {
		c.SlewRateMax = DefaultSlewRateDegPerS
	}
	if c.DutyCycleMax == 0 {
		c.DutyCycleMax = DefaultDutyCycleMax
	}
	if c.MaxStorageH == 0 {
		c.MaxStorageH = DefaultMaxStorageH
	}
	if c.ObservationS == 0 {
		c.ObservationS = DefaultObservationS
	}
	if c.DownlinkS == 0 {
		c.DownlinkS = DefaultDownlinkS
	}
	if c.BatteryWh == 0 {
		c.BatteryWh = p.BatteryWh
	}
	if c.SolarW == 0 {
		c.SolarW = p.SolarW
	}
	if c.IdleW == 0 {
		c.IdleW = p.IdleW
	}
	if c.ObservationW == 0 {
		c.ObservationW = p.ObservationW
	}
	if c.DownlinkW == 0 {
		c.DownlinkW = p.DownlinkW
	}
	if c.InitialSOC == nil {
		soc := p.InitialSOC
		c.InitialSOC = &soc
	}
	if c.SOCFloorPct == 0 {
		c.SOCFloorPct = p.FloorPct
	}
	if c.SampleStepS == 0 {
		c.SampleStepS = f.Step.Seconds()
	}
	if c.RefineToleranceS == 0 {
		c.RefineToleranceS = f.Tolerance.Seconds()
	}
	for i := range c.Targets {
		c.Targets[i].applyDefaults(fmt.Sprintf("target-%d", i+1), c.MinElevationDeg, 1)
	}
	for i := range c.GroundStations {
		c.GroundStations[i].applyDefaults(fmt.Sprintf("station-%d", i+1), c.StationMinElevationDeg, 0)
	}
}

func (s *SubjectConfig) applyDefaults(id string, minEl, priority float64) {
	if s.ID == "" {
		s.ID = id
	}
	if s.MinElevationDeg == 0 {
		s.MinElevationDeg = minEl
	}
	if s.Priority == 0 {
		s.Priority = priority
	}
}

// Validate rejects a scenario before any solving. Errors wrap
// core.ErrInvalidConfig and name the offending field.
func (s *Scenario) Validate() error {
	switch {
	case s.Aircraft == nil && s.Spacecraft == nil:
		return core.InvalidConfig("scenario", "one of aircraft or spacecraft is required")
	case s.Aircraft != nil && s.Spacecraft != nil:
		return core.InvalidConfig("scenario", "aircraft and spacecraft are mutually exclusive")
	case !(s.Solver.BudgetS > 0):
		return core.InvalidConfig("solver.budget_s", "must be positive, got %v", s.Solver.BudgetS)
	case s.Solver.MaxPasses < 0:
		return core.InvalidConfig("solver.max_passes", "must be non-negative")
	}
	if _, err := core.ParseMode(s.Objective.Mode); err != nil {
		return err
	}
	for id, w := range s.Objective.Weights {
		if w < 0 || math.IsNaN(w) {
			return core.InvalidConfig("objective.weights."+id, "must be non-negative, got %v", w)
		}
	}
	if s.Objective.ReserveWeight < 0 {
		return core.InvalidConfig("objective.reserve_weight", "must be non-negative")
	}
	if s.Objective.LatencyWeight < 0 {
		return core.InvalidConfig("objective.latency_weight", "must be non-negative")
	}
	if s.Aircraft != nil {
		return s.Aircraft.validate(s.Objective.Weights)
	}
	return s.Spacecraft.validate(s.Objective.Weights)
}

func (a *AircraftConfig) validate(weights map[string]float64) error {
	if len(a.Waypoints) < 2 {
		return core.InvalidConfig("aircraft.waypoints", "at least two waypoints are required, got %d", len(a.Waypoints))
	}
	seen := make(map[string]struct{}, len(a.Waypoints))
	for i, w := range a.Waypoints {
		field := fmt.Sprintf("aircraft.waypoints[%d]", i)
		if math.IsNaN(w.X) || math.IsNaN(w.Y) || math.IsNaN(w.Altitude) || math.IsInf(w.X, 0) || math.IsInf(w.Y, 0) {
			return core.InvalidConfig(field, "coordinates must be finite")
		}
		if _, dup := seen[w.ID]; dup {
			return core.InvalidConfig(field+".id", "duplicate waypoint %q", w.ID)
		}
		seen[w.ID] = struct{}{}
	}
	if len(a.AltitudeBounds) != 2 {
		return core.InvalidConfig("aircraft.altitude_bounds", "must be [min, max]")
	}
	for i, z := range a.NoFlyZones {
		hasRect := z.Min != nil || z.Max != nil
		if hasRect && len(z.Vertices) > 0 {
			return core.InvalidConfig(fmt.Sprintf("aircraft.no_fly_zones[%d]", i), "give vertices or min/max, not both")
		}
		if hasRect && (z.Min == nil || z.Max == nil || z.Min.X >= z.Max.X || z.Min.Y >= z.Max.Y) {
			return core.InvalidConfig(fmt.Sprintf("aircraft.no_fly_zones[%d]", i), "rectangle needs min below max on both axes")
		}
	}
	if err := aircraft.ValidateZones(a.Zones()); err != nil {
		return err
	}
	if err := a.Params().Validate(); err != nil {
		return err
	}
	if math.IsNaN(a.Wind.X) || math.IsNaN(a.Wind.Y) || math.IsNaN(a.Wind.Amplitude) {
		return core.InvalidConfig("aircraft.wind", "components must be numbers")
	}
	for id := range weights {
		switch id {
		case aircraft.ObjectiveTime, aircraft.ObjectiveEnergy, aircraft.ObjectiveDistance:
		default:
			return core.InvalidConfig("objective.weights."+id, "unknown aircraft objective")
		}
	}
	return nil
}

func (c *SpacecraftConfig) validate(weights map[string]float64) error {
	if c.TLE != nil {
		if _, err := spacecraft.NewSGP4Ephemeris(c.TLE.Line1, c.TLE.Line2); err != nil {
			return core.InvalidConfig("spacecraft.tle", "%v", err)
		}
	} else if err := spacecraft.ValidateOrbit(c.OrbitState()); err != nil {
		return err
	}
	switch {
	case c.HorizonStart.IsZero():
		return core.InvalidConfig("spacecraft.horizon_start", "must be set when the orbit has no epoch")
	case !(c.HorizonDays > 0):
		return core.InvalidConfig("spacecraft.horizon_days", "must be positive, got %v", c.HorizonDays)
	case c.MinElevationDeg < 0 || c.MinElevationDeg >= 90:
		return core.InvalidConfig("spacecraft.min_elevation_deg", "must be in [0, 90), got %v", c.MinElevationDeg)
	case c.StationMinElevationDeg < 0 || c.StationMinElevationDeg >= 90:
		return core.InvalidConfig("spacecraft.station_min_elevation_deg", "must be in [0, 90), got %v", c.StationMinElevationDeg)
	case !(c.SlewRateMax > 0):
		return core.InvalidConfig("spacecraft.slew_rate_max", "must be positive, got %v", c.SlewRateMax)
	case c.DutyCycleMax < 0:
		return core.InvalidConfig("spacecraft.duty_cycle_max", "must be non-negative, got %d", c.DutyCycleMax)
	case !(c.MaxStorageH > 0):
		return core.InvalidConfig("spacecraft.max_storage_h", "must be positive, got %v", c.MaxStorageH)
	case !(c.ObservationS > 0):
		return core.InvalidConfig("spacecraft.observation_s", "must be positive, got %v", c.ObservationS)
	case !(c.DownlinkS > 0):
		return core.InvalidConfig("spacecraft.downlink_s", "must be positive, got %v", c.DownlinkS)
	case len(c.Targets) == 0:
		return core.InvalidConfig("spacecraft.targets", "at least one target is required")
	}
	if err := c.PowerParams().Validate(); err != nil {
		return err
	}
	if err := c.WindowFinder().Validate(); err != nil {
		return err
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	for id := range weights {
		switch id {
		case spacecraft.ObjectiveScience, spacecraft.ObjectiveDownlinks:
		default:
			return core.InvalidConfig("objective.weights."+id, "unknown spacecraft objective")
		}
	}
	return nil
}

// Route returns the waypoints as a route in configured order.
func (a *AircraftConfig) Route() model.Route {
	return model.Route{
		Waypoints: append([]model.Waypoint(nil), a.Waypoints...),
		Cyclic:    a.ReturnToStart == nil || *a.ReturnToStart,
	}
}

// Zones converts the no-fly zone configuration.
func (a *AircraftConfig) Zones() []model.NoFlyZone {
	zones := make([]model.NoFlyZone, 0, len(a.NoFlyZones))
	for _, z := range a.NoFlyZones {
		if z.Min != nil && z.Max != nil {
			zones = append(zones, aircraft.RectZone(z.ID, *z.Min, *z.Max))
			continue
		}
		zones = append(zones, model.NoFlyZone{ID: z.ID, Vertices: append([]model.Vec2(nil), z.Vertices...)})
	}
	return zones
}

// WindField builds the configured wind model.
func (a *AircraftConfig) WindField() aircraft.WindField {
	base := model.Vec2{X: a.Wind.X, Y: a.Wind.Y}
	if a.Wind.Amplitude == 0 {
		return aircraft.UniformWind{V: base}
	}
	return aircraft.SpatialWind{Base: base, Amplitude: a.Wind.Amplitude, Scale: a.Wind.ScaleM}
}

// Params converts the vehicle settings.
func (a *AircraftConfig) Params() aircraft.Params {
	p := aircraft.Params{
		Airspeed:       a.Airspeed,
		BasePower:      a.BasePowerW,
		ManeuverPower:  a.ManeuverPower,
		MaxTurnRate:    a.TurnRateMax,
		MaxBankAngle:   a.MaxBankDeg * math.Pi / 180,
		MaxClimbRate:   a.MaxClimbRate,
		MaxDescentRate: a.MaxDescentRate,
		BatteryWh:      a.BatteryCapacityWh,
		TurnWindow:     a.TurnWindowS,
		WindSampleStep: a.WindSampleStepM,
		MinGroundSpeed: a.MinGroundSpeed,
	}
	if len(a.AltitudeBounds) == 2 {
		p.MinAltitude, p.MaxAltitude = a.AltitudeBounds[0], a.AltitudeBounds[1]
	}
	if a.ReservePct != nil {
		p.ReservePct = *a.ReservePct
	}
	return p
}

// OrbitState converts the orbit configuration to radians and kilometres.
func (c *SpacecraftConfig) OrbitState() model.OrbitState {
	o := c.Orbit
	a := o.SemiMajorAxisKm
	if a == 0 {
		a = spacecraft.EarthRadiusKm + o.AltitudeKm
	}
	const deg = math.Pi / 180
	return model.OrbitState{
		SemiMajorAxisKm: a,
		Eccentricity:    o.Eccentricity,
		InclinationRad:  o.InclinationDeg * deg,
		RAANRad:         o.RAANDeg * deg,
		ArgPeriapsisRad: o.ArgPeriapsisDeg * deg,
		TrueAnomalyRad:  o.TrueAnomalyDeg * deg,
		Epoch:           o.Epoch,
	}
}

// Horizon returns the planning interval.
func (c *SpacecraftConfig) Horizon() (start, end time.Time) {
	start = c.HorizonStart
	return start, start.Add(time.Duration(c.HorizonDays * 24 * float64(time.Hour)))
}

// PowerParams converts the power budget.
func (c *SpacecraftConfig) PowerParams() spacecraft.PowerParams {
	p := spacecraft.PowerParams{
		BatteryWh:    c.BatteryWh,
		SolarW:       c.SolarW,
		IdleW:        c.IdleW,
		ObservationW: c.ObservationW,
		DownlinkW:    c.DownlinkW,
		FloorPct:     c.SOCFloorPct,
	}
	if c.InitialSOC != nil {
		p.InitialSOC = *c.InitialSOC
	}
	return p
}

// WindowFinder converts the sampling settings.
func (c *SpacecraftConfig) WindowFinder() spacecraft.WindowFinder {
	f := spacecraft.DefaultWindowFinder()
	f.Step = seconds(c.SampleStepS)
	f.Tolerance = seconds(c.RefineToleranceS)
	return f
}

// Catalog loads targets and stations into a fresh catalogue.
func (c *SpacecraftConfig) Catalog() (*kb.Catalog, error) {
	cat := kb.NewCatalog()
	add := func(field string, kind model.SubjectKind, subjects []SubjectConfig) error {
		for i, s := range subjects {
			f := fmt.Sprintf("%s[%d]", field, i)
			switch {
			case s.LatitudeDeg < -90 || s.LatitudeDeg > 90:
				return core.InvalidConfig(f+".lat", "must be in [-90, 90], got %v", s.LatitudeDeg)
			case s.LongitudeDeg < -180 || s.LongitudeDeg > 180:
				return core.InvalidConfig(f+".lon", "must be in [-180, 180], got %v", s.LongitudeDeg)
			case s.MinElevationDeg < 0 || s.MinElevationDeg >= 90:
				return core.InvalidConfig(f+".min_elevation_deg", "must be in [0, 90), got %v", s.MinElevationDeg)
			case s.Priority < 0:
				return core.InvalidConfig(f+".priority", "must be non-negative, got %v", s.Priority)
			}
			err := cat.Add(model.GroundSubject{
				ID:              s.ID,
				Name:            s.Name,
				Kind:            kind,
				LatitudeDeg:     s.LatitudeDeg,
				LongitudeDeg:    s.LongitudeDeg,
				AltitudeKm:      s.AltitudeKm,
				Priority:        s.Priority,
				MinElevationDeg: s.MinElevationDeg,
			})
			if err != nil {
				return core.InvalidConfig(f+".id", "%v", err)
			}
		}
		return nil
	}
	if err := add("spacecraft.targets", model.SubjectTarget, c.Targets); err != nil {
		return nil, err
	}
	if err := add("spacecraft.ground_stations", model.SubjectStation, c.GroundStations); err != nil {
		return nil, err
	}
	return cat, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Clone returns a deep copy, so perturbed trials never share state.
func (s *Scenario) Clone() *Scenario {
	out := *s
	out.Objective.Weights = maps.Clone(s.Objective.Weights)
	if s.Aircraft != nil {
		a := *s.Aircraft
		a.Waypoints = slices.Clone(s.Aircraft.Waypoints)
		a.AltitudeBounds = slices.Clone(s.Aircraft.AltitudeBounds)
		a.ReturnToStart = clonePtr(s.Aircraft.ReturnToStart)
		a.ReservePct = clonePtr(s.Aircraft.ReservePct)
		a.NoFlyZones = make([]ZoneConfig, len(s.Aircraft.NoFlyZones))
		for i, z := range s.Aircraft.NoFlyZones {
			a.NoFlyZones[i] = ZoneConfig{
				ID:       z.ID,
				Vertices: slices.Clone(z.Vertices),
				Min:      clonePtr(z.Min),
				Max:      clonePtr(z.Max),
			}
		}
		out.Aircraft = &a
	}
	if s.Spacecraft != nil {
		c := *s.Spacecraft
		c.Targets = slices.Clone(s.Spacecraft.Targets)
		c.GroundStations = slices.Clone(s.Spacecraft.GroundStations)
		c.InitialSOC = clonePtr(s.Spacecraft.InitialSOC)
		c.TLE = clonePtr(s.Spacecraft.TLE)
		out.Spacecraft = &c
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
