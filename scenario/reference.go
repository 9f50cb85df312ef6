package scenario

import (
	"time"

	"github.com/signalsfoundry/mission-planner/model"
)

// ReferenceEpoch is the epoch of the reference spacecraft orbit.
var ReferenceEpoch = time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

// ReferenceAircraft is the reference UAV survey: seven waypoints flown as a
// closed loop around two rectangular no-fly zones, 3 m/s east and 2 m/s north
// wind, 500 Wh battery. The leg WP1→WP2 cuts the first zone, so the planner
// has to reorder the visits.
func ReferenceAircraft() *Scenario {
	sc := &Scenario{
		Name: "reference-aircraft",
		Aircraft: &AircraftConfig{
			Waypoints: []model.Waypoint{
				{ID: "WP0", X: 0, Y: 0, Altitude: 100},
				{ID: "WP1", X: 1000, Y: 500, Altitude: 150},
				{ID: "WP2", X: 2000, Y: 1500, Altitude: 200},
				{ID: "WP3", X: 3000, Y: 1000, Altitude: 150},
				{ID: "WP4", X: 4000, Y: 0, Altitude: 100},
				{ID: "WP5", X: 5000, Y: 500, Altitude: 100},
				{ID: "WP6", X: 2500, Y: 0, Altitude: 120},
			},
			NoFlyZones: []ZoneConfig{
				{ID: "NFZ1", Min: &model.Vec2{X: 1500, Y: 800}, Max: &model.Vec2{X: 1800, Y: 1200}},
				{ID: "NFZ2", Min: &model.Vec2{X: 3500, Y: 200}, Max: &model.Vec2{X: 3800, Y: 600}},
			},
			Wind:              WindConfig{X: 3, Y: 2},
			BatteryCapacityWh: 500,
			TurnRateMax:       0.5,
		},
	}
	sc.ApplyDefaults()
	return sc
}

// ReferenceSpacecraft is the reference Earth-observation mission: a 550 km,
// 97.4° near-circular orbit, five prioritised targets, three high-latitude
// ground stations, seven days, 10° minimum elevation for targets and 5° for
// stations.
func ReferenceSpacecraft() *Scenario {
	sc := &Scenario{
		Name: "reference-spacecraft",
		Spacecraft: &SpacecraftConfig{
			Orbit: OrbitConfig{
				AltitudeKm:     550,
				Eccentricity:   0.001,
				InclinationDeg: 97.4,
				Epoch:          ReferenceEpoch,
			},
			Targets: []SubjectConfig{
				{ID: "san-francisco", LatitudeDeg: 37.7749, LongitudeDeg: -122.4194, Priority: 10},
				{ID: "new-york", LatitudeDeg: 40.7128, LongitudeDeg: -74.0060, Priority: 8},
				{ID: "london", LatitudeDeg: 51.5074, LongitudeDeg: -0.1278, Priority: 9},
				{ID: "tokyo", LatitudeDeg: 35.6762, LongitudeDeg: 139.6503, Priority: 7},
				{ID: "sydney", LatitudeDeg: -33.8688, LongitudeDeg: 151.2093, Priority: 6},
			},
			GroundStations: []SubjectConfig{
				{ID: "gs-alaska", LatitudeDeg: 64.8378, LongitudeDeg: -147.7164},
				{ID: "gs-hawaii", LatitudeDeg: 19.8968, LongitudeDeg: -155.5828},
				{ID: "gs-norway", LatitudeDeg: 69.6492, LongitudeDeg: 18.9553},
			},
			HorizonDays:            7,
			MinElevationDeg:        10,
			StationMinElevationDeg: 5,
		},
	}
	sc.ApplyDefaults()
	return sc
}
