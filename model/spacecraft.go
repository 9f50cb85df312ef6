package model

import "time"

// OrbitState is a set of classical orbital elements at an epoch. Angles are
// radians, distances kilometres.
type OrbitState struct {
	SemiMajorAxisKm float64   `json:"semi_major_axis_km"`
	Eccentricity    float64   `json:"eccentricity"`
	InclinationRad  float64   `json:"inclination_rad"`
	RAANRad         float64   `json:"raan_rad"`
	ArgPeriapsisRad float64   `json:"arg_periapsis_rad"`
	TrueAnomalyRad  float64   `json:"true_anomaly_rad"`
	Epoch           time.Time `json:"epoch"`
}

// SubjectKind distinguishes observation targets from downlink stations.
type SubjectKind int

const (
	SubjectTarget SubjectKind = iota
	SubjectStation
)

func (k SubjectKind) String() string {
	switch k {
	case SubjectTarget:
		return "target"
	case SubjectStation:
		return "station"
	default:
		return "unknown"
	}
}

// GroundSubject is a fixed geodetic location the spacecraft observes or
// downlinks to.
type GroundSubject struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	Kind            SubjectKind `json:"kind"`
	LatitudeDeg     float64     `json:"latitude_deg"`
	LongitudeDeg    float64     `json:"longitude_deg"`
	AltitudeKm      float64     `json:"altitude_km"`
	Priority        float64     `json:"priority"`
	MinElevationDeg float64     `json:"min_elevation_deg"`
}

// ElevationSample is one point of a window's elevation profile.
type ElevationSample struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"`
}

// VisibilityWindow is a maximal interval during which a subject is above its
// minimum elevation. Clipped windows were cut by the planning horizon, so one
// of their boundaries is the horizon edge rather than a threshold crossing.
type VisibilityWindow struct {
	SubjectID       string            `json:"subject_id"`
	Kind            SubjectKind       `json:"kind"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	MaxElevationDeg float64           `json:"max_elevation_deg"`
	Profile         []ElevationSample `json:"profile,omitempty"`
	Clipped         bool              `json:"clipped,omitempty"`
}

// Duration returns the window length.
func (w VisibilityWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether [start, end] lies within the window.
func (w VisibilityWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// ActivityType enumerates scheduled spacecraft activities.
type ActivityType int

const (
	ActivityObservation ActivityType = iota
	ActivityDownlink
)

func (a ActivityType) String() string {
	switch a {
	case ActivityObservation:
		return "observation"
	case ActivityDownlink:
		return "downlink"
	default:
		return "unknown"
	}
}

// Activity is one scheduled observation or downlink.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	SubjectID string       `json:"subject_id"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	Priority  float64      `json:"priority"`
}

// Duration returns the activity length.
func (a Activity) Duration() time.Duration { return a.End.Sub(a.Start) }

// SpacecraftPlan is the decoded schedule over the planning horizon. Windows
// holds every visibility window considered, so validation can be repeated
// without re-sampling.
type SpacecraftPlan struct {
	Orbit        OrbitState         `json:"orbit"`
	HorizonStart time.Time          `json:"horizon_start"`
	HorizonEnd   time.Time          `json:"horizon_end"`
	Activities   []Activity         `json:"activities"`
	Windows      []VisibilityWindow `json:"windows"`
}
