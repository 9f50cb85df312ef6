package spacecraft

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/timectrl"
)

// sunRayKm is how far towards the Sun the shadow test looks. Any segment this
// long that clears the Earth leaves the spacecraft sunlit.
const sunRayKm = 1e5

// SunDirection returns the inertial unit vector towards the Sun using the
// low-precision solar coordinates of the Astronomical Almanac (about 0.01°).
func SunDirection(t time.Time) model.Vec3 {
	n := JulianDate(t) - 2451545.0
	L := math.Mod(280.460+0.9856474*n, 360)
	g := math.Mod(357.528+0.9856003*n, 360) * deg
	lambda := (L + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg
	eps := (23.439 - 0.0000004*n) * deg
	return model.Vec3{
		X: math.Cos(lambda),
		Y: math.Cos(eps) * math.Sin(lambda),
		Z: math.Sin(eps) * math.Sin(lambda),
	}
}

// Sunlit reports whether an inertial position is outside the Earth's
// cylindrical shadow at t.
func Sunlit(r model.Vec3, t time.Time) bool {
	return core.SegmentClearsSphere(r, r.Add(SunDirection(t).Scale(sunRayKm)), EarthRadiusKm)
}

// SunlightProfile is a sampled sunlit/eclipse timeline.
type SunlightProfile struct {
	Start  time.Time
	Step   time.Duration
	Sunlit []bool
}

// BuildSunlightProfile samples eph over [start, end].
func BuildSunlightProfile(eph Ephemeris, start, end time.Time, step time.Duration) (SunlightProfile, error) {
	if step <= 0 {
		return SunlightProfile{}, core.InvalidConfig("spacecraft.sample_step_s", "must be positive")
	}
	s := &timectrl.Stepper{Start: start, End: end, Step: step}
	prof := SunlightProfile{Start: start, Step: step}
	err := s.Run(func(t time.Time) error {
		r, err := eph.PositionECI(t)
		if err != nil {
			return fmt.Errorf("sunlight sample %s: %w", t.Format(time.RFC3339), err)
		}
		prof.Sunlit = append(prof.Sunlit, Sunlit(r, t))
		return nil
	})
	return prof, err
}

// At returns the sample covering t. Times outside the profile clamp to its
// ends; an empty profile is always sunlit.
func (p SunlightProfile) At(t time.Time) bool {
	if len(p.Sunlit) == 0 || p.Step <= 0 {
		return true
	}
	i := int(t.Sub(p.Start) / p.Step)
	if i < 0 {
		i = 0
	}
	if i >= len(p.Sunlit) {
		i = len(p.Sunlit) - 1
	}
	return p.Sunlit[i]
}

// SunlitFraction is the share of samples in sunlight.
func (p SunlightProfile) SunlitFraction() float64 {
	if len(p.Sunlit) == 0 {
		return 1
	}
	n := 0
	for _, s := range p.Sunlit {
		if s {
			n++
		}
	}
	return float64(n) / float64(len(p.Sunlit))
}
