package aircraft

import (
	"math"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

// LegState is the integrated result of flying one leg.
type LegState struct {
	Leg       model.Leg
	FromID    string
	ToID      string
	DistanceM float64 // 3D straight-line length
	TimeS     float64
	ClimbM    float64 // altitude change, negative when descending
	Track     float64 // planar course over ground, rad; NaN for vertical legs
	// Unflyable legs could not hold the track against the wind at some
	// sample; their time is integrated at MinGroundSpeed and Shortfall is
	// the worst speed deficit seen (m/s).
	Unflyable bool
	Shortfall float64
}

// VerticalRate is the mean vertical speed over the leg, m/s.
func (l LegState) VerticalRate() float64 {
	if l.TimeS <= 0 {
		return 0
	}
	return l.ClimbM / l.TimeS
}

// TurnState is the heading change demanded at one waypoint.
type TurnState struct {
	Visit      int // index into Route.Visits()
	WaypointID string
	Change     float64 // |Δψ|, rad
	Window     float64 // s allotted to the turn
	Rate       float64 // rad/s demanded
	EnergyWh   float64 // maneuver surcharge k·|Δψ|
}

// Trajectory is the deterministic kinematic and energy profile of a route.
type Trajectory struct {
	Legs     []LegState
	Turns    []TurnState
	Arrivals []model.WaypointState
	Path     []model.Vec3

	TotalTimeS     float64
	TotalEnergyWh  float64
	TotalDistanceM float64
}

// Simulate integrates a route through the wind field. It has no hidden state:
// identical inputs give bit-identical output.
func Simulate(route model.Route, wind WindField, p Params) Trajectory {
	if wind == nil {
		wind = UniformWind{}
	}
	visits := route.Visits()
	var tr Trajectory
	if len(visits) == 0 {
		return tr
	}
	tr.Path = append(tr.Path, visits[0].Position())

	legs := route.Legs()
	tr.Legs = make([]LegState, 0, len(legs))
	for i, leg := range legs {
		from, to := visits[i], visits[i+1]
		ls, path := flyLeg(from, to, wind, p)
		ls.Leg = leg
		tr.Legs = append(tr.Legs, ls)
		tr.Path = append(tr.Path, path...)
		tr.TotalDistanceM += ls.DistanceM
		tr.TotalTimeS += ls.TimeS
	}

	turnEnergy := make([]float64, len(visits))
	for i := 1; i < len(tr.Legs); i++ {
		in, out := tr.Legs[i-1], tr.Legs[i]
		if math.IsNaN(in.Track) || math.IsNaN(out.Track) {
			continue
		}
		change := math.Abs(core.WrapAngle(out.Track - in.Track))
		window := math.Min(p.TurnWindow, 0.5*math.Min(in.TimeS, out.TimeS))
		ts := TurnState{
			Visit:      i,
			WaypointID: visits[i].ID,
			Change:     change,
			Window:     window,
			EnergyWh:   p.ManeuverPower * change / 3600,
		}
		if change > 0 {
			if window > 0 {
				ts.Rate = change / window
			} else {
				ts.Rate = math.Inf(1)
			}
		}
		turnEnergy[i] = ts.EnergyWh
		tr.Turns = append(tr.Turns, ts)
	}

	var t, turns float64
	tr.Arrivals = make([]model.WaypointState, len(visits))
	for i, w := range visits {
		if i > 0 {
			t += tr.Legs[i-1].TimeS
		}
		turns += turnEnergy[i]
		e := p.BasePower*t/3600 + turns
		tr.Arrivals[i] = model.WaypointState{
			WaypointID:         w.ID,
			TimeS:              t,
			Position:           w.Position(),
			CumulativeEnergyWh: e,
			RemainingEnergyWh:  p.BatteryWh - e,
		}
	}
	tr.TotalEnergyWh = tr.Arrivals[len(tr.Arrivals)-1].CumulativeEnergyWh
	return tr
}

// flyLeg integrates one straight leg in sub-steps no longer than
// p.WindSampleStep, sampling wind at each sub-step midpoint and solving the
// wind triangle for the along-track ground speed.
func flyLeg(from, to model.Waypoint, wind WindField, p Params) (LegState, []model.Vec3) {
	a, b := from.Position(), to.Position()
	ls := LegState{
		FromID:    from.ID,
		ToID:      to.ID,
		DistanceM: a.DistanceTo(b),
		Track:     math.NaN(),
	}
	delta := b.Sub(a)
	ls.ClimbM = delta.Z
	horiz := delta.XY()
	length := horiz.Norm()
	if length < 1e-9 {
		ls.TimeS = math.Abs(delta.Z) / p.Airspeed
		return ls, []model.Vec3{b}
	}
	ls.Track = horiz.Heading()
	u := horiz.Scale(1 / length)

	n := int(math.Ceil(length / p.WindSampleStep))
	if n < 1 {
		n = 1
	}
	ds := length / float64(n)
	path := make([]model.Vec3, 0, n)
	v2 := p.Airspeed * p.Airspeed
	for k := 0; k < n; k++ {
		mid := a.Add(delta.Scale((float64(k) + 0.5) / float64(n))).XY()
		w := wind.At(mid)
		along := w.Dot(u)
		cross := u.Cross(w)

		gs := p.MinGroundSpeed
		disc := v2 - cross*cross
		if disc < 0 {
			ls.Unflyable = true
			ls.Shortfall = math.Max(ls.Shortfall, math.Abs(cross)-p.Airspeed+p.MinGroundSpeed)
		} else if raw := along + math.Sqrt(disc); raw < p.MinGroundSpeed {
			ls.Unflyable = true
			ls.Shortfall = math.Max(ls.Shortfall, p.MinGroundSpeed-raw)
		} else {
			gs = raw
		}
		ls.TimeS += ds / gs
		path = append(path, a.Add(delta.Scale(float64(k+1)/float64(n))))
	}
	return ls, path
}
