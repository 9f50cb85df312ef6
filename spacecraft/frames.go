package spacecraft

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

const deg = math.Pi / 180

// JulianDate returns the Julian date of t, keeping sub-second precision that
// satellite.JDay drops.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	return jd + float64(t.Nanosecond())/1e9/86400
}

// GMST returns the Greenwich mean sidereal angle at t, radians.
func GMST(t time.Time) float64 {
	return satellite.ThetaG_JD(JulianDate(t))
}

// ECIToECEF rotates an inertial vector into the Earth-fixed frame at t.
func ECIToECEF(r model.Vec3, t time.Time) model.Vec3 {
	out := satellite.ECIToECEF(satellite.Vector3{X: r.X, Y: r.Y, Z: r.Z}, GMST(t))
	return model.Vec3{X: out.X, Y: out.Y, Z: out.Z}
}

// GroundECEF returns the Earth-fixed position of a geodetic point on a
// spherical Earth, km.
func GroundECEF(latDeg, lonDeg, altKm float64) model.Vec3 {
	lat, lon := latDeg*deg, lonDeg*deg
	r := EarthRadiusKm + altKm
	return model.Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// SubjectECEF is GroundECEF for a ground subject.
func SubjectECEF(s model.GroundSubject) model.Vec3 {
	return GroundECEF(s.LatitudeDeg, s.LongitudeDeg, s.AltitudeKm)
}

// Look is the topocentric view of the spacecraft from a ground point.
type Look struct {
	ElevationDeg float64
	AzimuthDeg   float64 // clockwise from north, [0, 360)
	RangeKm      float64
}

// LookAngles converts the spacecraft's Earth-fixed position into topocentric
// elevation, azimuth and range as seen from ground.
func LookAngles(sat, ground model.Vec3) Look {
	rho := sat.Sub(ground)
	lon := math.Atan2(ground.Y, ground.X)
	lat := math.Atan2(ground.Z, math.Hypot(ground.X, ground.Y))

	east := model.Vec3{X: -math.Sin(lon), Y: math.Cos(lon)}
	north := model.Vec3{
		X: -math.Sin(lat) * math.Cos(lon),
		Y: -math.Sin(lat) * math.Sin(lon),
		Z: math.Cos(lat),
	}
	az := math.Atan2(rho.Dot(east), rho.Dot(north)) / deg
	if az < 0 {
		az += 360
	}
	return Look{
		ElevationDeg: core.ElevationDegrees(ground, sat),
		AzimuthDeg:   az,
		RangeKm:      rho.Norm(),
	}
}
