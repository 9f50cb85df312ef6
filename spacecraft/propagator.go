// Package spacecraft models a LEO spacecraft: two-body orbit propagation with
// J2 secular drift, Earth-fixed and topocentric geometry, ground visibility
// windows, eclipse-aware power, and the scheduling constraints built on them.
package spacecraft

import (
	"math"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

const (
	// MuEarth is the Earth's gravitational parameter, km³/s².
	MuEarth = 398600.4418
	// EarthRadiusKm is the WGS-84 equatorial radius.
	EarthRadiusKm = 6378.137
	// J2 is the Earth's second zonal harmonic.
	J2 = 1.08263e-3
	// EarthRotationRate is the sidereal rotation rate, rad/s.
	EarthRotationRate = 7.2921159e-5

	twoPi = 2 * math.Pi
)

// Propagator advances classical elements under two-body motion plus J2
// secular precession of the node and argument of periapsis.
type Propagator struct {
	Mu float64
	J2 float64
	// Tolerance is the Newton-step convergence threshold for Kepler's
	// equation, radians.
	Tolerance     float64
	MaxIterations int
}

// DefaultPropagator uses Earth constants, a 1e-8 rad tolerance and at most 50
// Newton iterations.
func DefaultPropagator() Propagator {
	return Propagator{Mu: MuEarth, J2: J2, Tolerance: 1e-8, MaxIterations: 50}
}

// ValidateOrbit rejects element sets the propagator cannot handle.
func ValidateOrbit(s model.OrbitState) error {
	switch {
	case !(s.SemiMajorAxisKm > 0) || math.IsInf(s.SemiMajorAxisKm, 0):
		return core.InvalidConfig("spacecraft.orbit.semi_major_axis_km", "must be positive and finite, got %v", s.SemiMajorAxisKm)
	case !(s.Eccentricity >= 0) || s.Eccentricity >= 1:
		return core.InvalidConfig("spacecraft.orbit.eccentricity", "must be in [0, 1), got %v", s.Eccentricity)
	case s.InclinationRad < 0 || s.InclinationRad > math.Pi:
		return core.InvalidConfig("spacecraft.orbit.inclination_deg", "must be in [0, 180] degrees")
	case s.SemiMajorAxisKm*(1-s.Eccentricity) <= EarthRadiusKm:
		return core.InvalidConfig("spacecraft.orbit", "periapsis radius %.1f km is below the Earth's surface", s.SemiMajorAxisKm*(1-s.Eccentricity))
	case s.Epoch.IsZero():
		return core.InvalidConfig("spacecraft.orbit.epoch", "must be set")
	}
	return nil
}

// MeanMotion returns n = sqrt(μ/a³) in rad/s.
func (p Propagator) MeanMotion(s model.OrbitState) float64 {
	return math.Sqrt(p.Mu / (s.SemiMajorAxisKm * s.SemiMajorAxisKm * s.SemiMajorAxisKm))
}

// Period returns the Keplerian orbital period.
func (p Propagator) Period(s model.OrbitState) time.Duration {
	return time.Duration(twoPi / p.MeanMotion(s) * float64(time.Second))
}

// SecularRates returns the J2 drift of RAAN and argument of periapsis, rad/s.
func (p Propagator) SecularRates(s model.OrbitState) (raanDot, argpDot float64) {
	if p.J2 == 0 {
		return 0, 0
	}
	n := p.MeanMotion(s)
	semiLatus := s.SemiMajorAxisKm * (1 - s.Eccentricity*s.Eccentricity)
	k := n * p.J2 * (EarthRadiusKm / semiLatus) * (EarthRadiusKm / semiLatus)
	cosI := math.Cos(s.InclinationRad)
	raanDot = -1.5 * k * cosI
	argpDot = 0.75 * k * (5*cosI*cosI - 1)
	return raanDot, argpDot
}

// Propagate advances s by dt seconds (negative dt propagates backwards). It is
// a pure function of its inputs.
func (p Propagator) Propagate(s model.OrbitState, dt float64) (model.OrbitState, error) {
	e := s.Eccentricity
	E0 := TrueToEccentric(s.TrueAnomalyRad, e)
	M0 := E0 - e*math.Sin(E0)
	M := normalizeAngle(M0 + p.MeanMotion(s)*dt)

	E, err := p.SolveKepler(M, e)
	if err != nil {
		return model.OrbitState{}, err
	}

	raanDot, argpDot := p.SecularRates(s)
	out := s
	out.TrueAnomalyRad = normalizeAngle(EccentricToTrue(E, e))
	out.RAANRad = normalizeAngle(s.RAANRad + raanDot*dt)
	out.ArgPeriapsisRad = normalizeAngle(s.ArgPeriapsisRad + argpDot*dt)
	out.Epoch = s.Epoch.Add(time.Duration(dt * float64(time.Second)))
	return out, nil
}

// PropagateTo advances s to the absolute time t.
func (p Propagator) PropagateTo(s model.OrbitState, t time.Time) (model.OrbitState, error) {
	return p.Propagate(s, t.Sub(s.Epoch).Seconds())
}

// SolveKepler solves M = E - e·sin E for E by Newton iteration. It returns a
// *core.ConvergenceError when the step does not drop below the tolerance
// within MaxIterations.
func (p Propagator) SolveKepler(M, e float64) (float64, error) {
	tol := p.Tolerance
	if tol <= 0 {
		tol = 1e-8
	}
	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	E := M
	if e >= 0.8 {
		E = math.Pi
	}
	var step float64
	for i := 1; i <= maxIter; i++ {
		f := E - e*math.Sin(E) - M
		fp := 1 - e*math.Cos(E)
		step = f / fp
		E -= step
		if math.Abs(step) < tol {
			return E, nil
		}
	}
	return 0, &core.ConvergenceError{Op: "kepler", Iterations: maxIter, Residual: math.Abs(step)}
}

// TrueToEccentric converts true anomaly to eccentric anomaly.
func TrueToEccentric(nu, e float64) float64 {
	return math.Atan2(math.Sqrt(1-e*e)*math.Sin(nu), e+math.Cos(nu))
}

// EccentricToTrue converts eccentric anomaly to true anomaly.
func EccentricToTrue(E, e float64) float64 {
	return math.Atan2(math.Sqrt(1-e*e)*math.Sin(E), math.Cos(E)-e)
}

// StateVectors returns the inertial position (km) and velocity (km/s).
func (p Propagator) StateVectors(s model.OrbitState) (r, v model.Vec3) {
	e := s.Eccentricity
	nu := s.TrueAnomalyRad
	semiLatus := s.SemiMajorAxisKm * (1 - e*e)
	radius := semiLatus / (1 + e*math.Cos(nu))

	rPF := model.Vec3{X: radius * math.Cos(nu), Y: radius * math.Sin(nu)}
	vs := math.Sqrt(p.Mu / semiLatus)
	vPF := model.Vec3{X: -vs * math.Sin(nu), Y: vs * (e + math.Cos(nu))}
	return perifocalToInertial(rPF, s), perifocalToInertial(vPF, s)
}

func perifocalToInertial(v model.Vec3, s model.OrbitState) model.Vec3 {
	cO, sO := math.Cos(s.RAANRad), math.Sin(s.RAANRad)
	cw, sw := math.Cos(s.ArgPeriapsisRad), math.Sin(s.ArgPeriapsisRad)
	ci, si := math.Cos(s.InclinationRad), math.Sin(s.InclinationRad)

	q11 := cO*cw - sO*sw*ci
	q12 := -cO*sw - sO*cw*ci
	q21 := sO*cw + cO*sw*ci
	q22 := -sO*sw + cO*cw*ci
	q31 := sw * si
	q32 := cw * si
	return model.Vec3{
		X: q11*v.X + q12*v.Y,
		Y: q21*v.X + q22*v.Y,
		Z: q31*v.X + q32*v.Y,
	}
}

// CircularOrbit builds a circular orbit at the given altitude.
func CircularOrbit(altitudeKm, inclinationDeg, raanDeg float64, epoch time.Time) model.OrbitState {
	return model.OrbitState{
		SemiMajorAxisKm: EarthRadiusKm + altitudeKm,
		InclinationRad:  inclinationDeg * math.Pi / 180,
		RAANRad:         raanDeg * math.Pi / 180,
		Epoch:           epoch,
	}
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
