// Package aircraft models a fixed-wing or UAV platform as a point mass flying
// straight legs between waypoints at constant airspeed through a spatial wind
// field, and exposes the resulting constraints and objectives.
package aircraft

import (
	"math"

	"github.com/signalsfoundry/mission-planner/core"
)

const gravity = 9.80665 // m/s²

// Params are the vehicle and mission limits used by the physics model.
type Params struct {
	Airspeed      float64 // m/s, constant cruise airspeed
	BasePower     float64 // W
	ManeuverPower float64 // W per rad/s of turn rate (k in P = P_base + k|ω|)
	MaxTurnRate   float64 // rad/s
	MaxBankAngle  float64 // rad
	MinAltitude   float64 // m
	MaxAltitude   float64 // m
	// MaxClimbRate and MaxDescentRate bound the mean vertical speed over a
	// leg, both as positive m/s.
	MaxClimbRate   float64
	MaxDescentRate float64
	BatteryWh      float64
	// ReservePct is the fraction of capacity the soft reserve constraint
	// tries to keep unused at the end of the route.
	ReservePct float64
	// TurnWindow caps the time allotted to a heading change at a waypoint.
	TurnWindow float64 // s
	// WindSampleStep is the along-track spacing of wind samples.
	WindSampleStep float64 // m
	// MinGroundSpeed is the slowest along-track speed considered flyable.
	MinGroundSpeed float64 // m/s
}

// DefaultParams returns the reference aircraft: 25 m/s maximum speed cruising
// at 80%, 100 W baseline draw, 500 Wh battery.
func DefaultParams() Params {
	return Params{
		Airspeed:       20,
		BasePower:      100,
		ManeuverPower:  50,
		MaxTurnRate:    0.5,
		MaxBankAngle:   45 * math.Pi / 180,
		MinAltitude:    50,
		MaxAltitude:    500,
		MaxClimbRate:   3,
		MaxDescentRate: 5,
		BatteryWh:      500,
		ReservePct:     0.1,
		TurnWindow:     20,
		WindSampleStep: 100,
		MinGroundSpeed: 1,
	}
}

// TurnRateLimit is the tighter of the configured turn-rate limit and the rate
// a coordinated turn at MaxBankAngle allows at cruise airspeed.
func (p Params) TurnRateLimit() float64 {
	limit := p.MaxTurnRate
	if p.MaxBankAngle > 0 && p.Airspeed > 0 {
		bank := gravity * math.Tan(p.MaxBankAngle) / p.Airspeed
		if bank < limit {
			limit = bank
		}
	}
	return limit
}

// VerticalRateExcess is how far a leg's mean vertical speed exceeds the climb
// or descent limit, in m/s. Zero when within limits.
func (p Params) VerticalRateExcess(l LegState) float64 {
	rate := l.VerticalRate()
	switch {
	case rate > p.MaxClimbRate:
		return rate - p.MaxClimbRate
	case rate < -p.MaxDescentRate:
		return -rate - p.MaxDescentRate
	}
	return 0
}

// Validate rejects parameter sets the model cannot integrate.
func (p Params) Validate() error {
	switch {
	case !(p.Airspeed > 0):
		return core.InvalidConfig("aircraft.airspeed", "must be positive, got %v", p.Airspeed)
	case p.BasePower < 0:
		return core.InvalidConfig("aircraft.base_power_w", "must be non-negative, got %v", p.BasePower)
	case p.ManeuverPower < 0:
		return core.InvalidConfig("aircraft.maneuver_power", "must be non-negative, got %v", p.ManeuverPower)
	case !(p.MaxTurnRate > 0):
		return core.InvalidConfig("aircraft.turn_rate_max", "must be positive, got %v", p.MaxTurnRate)
	case !(p.MaxBankAngle > 0) || p.MaxBankAngle >= math.Pi/2:
		return core.InvalidConfig("aircraft.max_bank_deg", "must be in (0, 90) degrees")
	case p.MinAltitude >= p.MaxAltitude:
		return core.InvalidConfig("aircraft.altitude_bounds", "min %v must be below max %v", p.MinAltitude, p.MaxAltitude)
	case !(p.MaxClimbRate > 0):
		return core.InvalidConfig("aircraft.max_climb_rate", "must be positive, got %v", p.MaxClimbRate)
	case !(p.MaxDescentRate > 0):
		return core.InvalidConfig("aircraft.max_descent_rate", "must be positive, got %v", p.MaxDescentRate)
	case !(p.BatteryWh > 0):
		return core.InvalidConfig("aircraft.battery_capacity_wh", "must be positive, got %v", p.BatteryWh)
	case p.ReservePct < 0 || p.ReservePct >= 1:
		return core.InvalidConfig("aircraft.reserve_pct", "must be in [0, 1), got %v", p.ReservePct)
	case !(p.TurnWindow > 0):
		return core.InvalidConfig("aircraft.turn_window_s", "must be positive, got %v", p.TurnWindow)
	case !(p.WindSampleStep > 0):
		return core.InvalidConfig("aircraft.wind_sample_step_m", "must be positive, got %v", p.WindSampleStep)
	case !(p.MinGroundSpeed > 0):
		return core.InvalidConfig("aircraft.min_ground_speed", "must be positive, got %v", p.MinGroundSpeed)
	}
	return nil
}
