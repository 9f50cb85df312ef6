package model

import (
	"fmt"
	"time"
)

// Domain names the vehicle class a plan is for.
type Domain string

const (
	DomainAircraft   Domain = "aircraft"
	DomainSpacecraft Domain = "spacecraft"
)

// MissionPlan is a candidate solution. Exactly one of Aircraft or Spacecraft
// is set, matching Domain.
type MissionPlan struct {
	ID         string          `json:"id"`
	Domain     Domain          `json:"domain"`
	Aircraft   *AircraftPlan   `json:"aircraft,omitempty"`
	Spacecraft *SpacecraftPlan `json:"spacecraft,omitempty"`
}

// Check verifies the plan's domain tag matches its payload.
func (p *MissionPlan) Check() error {
	if p == nil {
		return fmt.Errorf("nil mission plan")
	}
	switch p.Domain {
	case DomainAircraft:
		if p.Aircraft == nil || p.Spacecraft != nil {
			return fmt.Errorf("plan %q: aircraft domain requires aircraft payload only", p.ID)
		}
	case DomainSpacecraft:
		if p.Spacecraft == nil || p.Aircraft != nil {
			return fmt.Errorf("plan %q: spacecraft domain requires spacecraft payload only", p.ID)
		}
	default:
		return fmt.Errorf("plan %q: unknown domain %q", p.ID, p.Domain)
	}
	return nil
}

// TrajectoryRecord is the per-waypoint output row of an aircraft plan.
type TrajectoryRecord struct {
	WaypointID         string  `json:"waypoint_id"`
	TimeS              float64 `json:"time_s"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Altitude           float64 `json:"altitude"`
	CumulativeEnergyWh float64 `json:"cumulative_energy_wh"`
	RemainingEnergyWh  float64 `json:"remaining_energy_wh"`
}

// ScheduleRecord is the per-activity output row of a spacecraft plan.
type ScheduleRecord struct {
	Index     int       `json:"index"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	DurationS float64   `json:"duration_s"`
	Priority  float64   `json:"priority"`
}
