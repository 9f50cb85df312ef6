package spacecraft

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/mission-planner/model"
)

// Ephemeris yields the spacecraft's inertial position (km) at a time.
type Ephemeris interface {
	PositionECI(t time.Time) (model.Vec3, error)
}

// KeplerEphemeris propagates a fixed element set with a Propagator.
type KeplerEphemeris struct {
	Propagator Propagator
	State      model.OrbitState
}

func (k KeplerEphemeris) PositionECI(t time.Time) (model.Vec3, error) {
	s, err := k.Propagator.PropagateTo(k.State, t)
	if err != nil {
		return model.Vec3{}, err
	}
	r, _ := k.Propagator.StateVectors(s)
	return r, nil
}

// SGP4Ephemeris propagates a two-line element set with SGP4.
type SGP4Ephemeris struct {
	sat    satellite.Satellite
	period time.Duration
}

// NewSGP4Ephemeris parses TLE lines using WGS-72 gravity constants.
func NewSGP4Ephemeris(line1, line2 string) (*SGP4Ephemeris, error) {
	if len(line1) < 69 || len(line2) < 69 {
		return nil, fmt.Errorf("tle lines must be 69 characters, got %d and %d", len(line1), len(line2))
	}
	// Mean motion, revolutions per day, occupies columns 53-63 of line 2.
	revs, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
	if err != nil || !(revs > 0) {
		return nil, fmt.Errorf("tle line 2: bad mean motion %q", line2[52:63])
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Ephemeris{
		sat:    sat,
		period: time.Duration(float64(24*time.Hour) / revs),
	}, nil
}

// Period is the orbital period implied by the TLE mean motion.
func (m *SGP4Ephemeris) Period() time.Duration { return m.period }

// PositionECI propagates the TLE to t. go-satellite works in kilometres in
// the TEME frame, which is treated as inertial here.
func (m *SGP4Ephemeris) PositionECI(t time.Time) (model.Vec3, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	r := model.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsNaN(r.Z) || r.Norm() < EarthRadiusKm {
		return model.Vec3{}, fmt.Errorf("sgp4 propagation to %s failed", t.Format(time.RFC3339))
	}
	return r, nil
}

// PositionECEF is the Earth-fixed position of eph at t.
func PositionECEF(eph Ephemeris, t time.Time) (model.Vec3, error) {
	r, err := eph.PositionECI(t)
	if err != nil {
		return model.Vec3{}, err
	}
	return ECIToECEF(r, t), nil
}
