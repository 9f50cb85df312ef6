package model

// Waypoint is a 3D point the aircraft must visit. Position is metres in the
// local east/north frame; Altitude is metres above ground.
type Waypoint struct {
	ID       string  `json:"id" yaml:"id"`
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	Altitude float64 `json:"altitude" yaml:"altitude"`
}

// Horizontal returns the waypoint's planar position.
func (w Waypoint) Horizontal() Vec2 { return Vec2{X: w.X, Y: w.Y} }

// Position returns the waypoint as a 3D vector (X, Y, Altitude).
func (w Waypoint) Position() Vec3 { return Vec3{X: w.X, Y: w.Y, Z: w.Altitude} }

// Route is an ordered sequence of waypoints. A cyclic route closes with a leg
// from the last waypoint back to the first.
type Route struct {
	Waypoints []Waypoint `json:"waypoints"`
	Cyclic    bool       `json:"cyclic"`
}

// Leg identifies one straight segment of a route by waypoint indices.
type Leg struct {
	Index int // position in the leg sequence
	From  int // index into Route.Waypoints
	To    int
}

// Legs enumerates the route's legs in flight order, including the closing leg
// of a cyclic route.
func (r Route) Legs() []Leg {
	n := len(r.Waypoints)
	if n < 2 {
		return nil
	}
	legs := make([]Leg, 0, n)
	for i := 0; i+1 < n; i++ {
		legs = append(legs, Leg{Index: i, From: i, To: i + 1})
	}
	if r.Cyclic {
		legs = append(legs, Leg{Index: n - 1, From: n - 1, To: 0})
	}
	return legs
}

// Visits returns the waypoint sequence as flown, repeating the origin at the
// end of a cyclic route.
func (r Route) Visits() []Waypoint {
	out := append([]Waypoint(nil), r.Waypoints...)
	if r.Cyclic && len(r.Waypoints) > 1 {
		out = append(out, r.Waypoints[0])
	}
	return out
}

// NoFlyZone is a closed planar polygon the route must not enter.
type NoFlyZone struct {
	ID       string `json:"id" yaml:"id"`
	Vertices []Vec2 `json:"vertices" yaml:"vertices"`
}

// WaypointState is the simulated aircraft state on arrival at a waypoint.
type WaypointState struct {
	WaypointID         string  `json:"waypoint_id"`
	TimeS              float64 `json:"time_s"`
	Position           Vec3    `json:"position"`
	CumulativeEnergyWh float64 `json:"cumulative_energy_wh"`
	RemainingEnergyWh  float64 `json:"remaining_energy_wh"`
}

// AircraftPlan is the decoded aircraft solution together with its simulated
// trajectory.
type AircraftPlan struct {
	Route    Route           `json:"route"`
	Arrivals []WaypointState `json:"arrivals"`
	Path     []Vec3          `json:"path"`

	TotalTimeS     float64   `json:"total_time_s"`
	TotalEnergyWh  float64   `json:"total_energy_wh"`
	TotalDistanceM float64   `json:"total_distance_m"`
	LegDistancesM  []float64 `json:"leg_distances_m"`
}
