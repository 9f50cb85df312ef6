package planner

import (
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

// TrajectoryRecords flattens an aircraft plan into one row per waypoint
// arrival, including the return to the origin of a cyclic route.
func TrajectoryRecords(plan *model.MissionPlan) []model.TrajectoryRecord {
	if plan == nil || plan.Aircraft == nil {
		return nil
	}
	out := make([]model.TrajectoryRecord, 0, len(plan.Aircraft.Arrivals))
	for _, a := range plan.Aircraft.Arrivals {
		out = append(out, model.TrajectoryRecord{
			WaypointID:         a.WaypointID,
			TimeS:              a.TimeS,
			X:                  a.Position.X,
			Y:                  a.Position.Y,
			Altitude:           a.Position.Z,
			CumulativeEnergyWh: a.CumulativeEnergyWh,
			RemainingEnergyWh:  a.RemainingEnergyWh,
		})
	}
	return out
}

// ScheduleRecords flattens a spacecraft plan into one row per activity in
// start order.
func ScheduleRecords(plan *model.MissionPlan) []model.ScheduleRecord {
	if plan == nil || plan.Spacecraft == nil {
		return nil
	}
	acts := spacecraft.SortedActivities(plan.Spacecraft)
	out := make([]model.ScheduleRecord, 0, len(acts))
	for i, a := range acts {
		out = append(out, model.ScheduleRecord{
			Index:     i,
			Type:      a.Type.String(),
			Subject:   a.SubjectID,
			Start:     a.Start,
			End:       a.End,
			DurationS: a.Duration().Seconds(),
			Priority:  a.Priority,
		})
	}
	return out
}

// ScheduleStats counts activities per subject.
type ScheduleStats struct {
	Observations map[string]int `json:"observations"`
	Downlinks    map[string]int `json:"downlinks"`
	// ActiveS is the summed activity time in seconds.
	ActiveS float64 `json:"active_s"`
}

// Stats summarises a spacecraft plan per subject.
func Stats(plan *model.MissionPlan) ScheduleStats {
	st := ScheduleStats{Observations: map[string]int{}, Downlinks: map[string]int{}}
	if plan == nil || plan.Spacecraft == nil {
		return st
	}
	for _, a := range plan.Spacecraft.Activities {
		st.ActiveS += a.Duration().Seconds()
		if a.Type == model.ActivityDownlink {
			st.Downlinks[a.SubjectID]++
		} else {
			st.Observations[a.SubjectID]++
		}
	}
	return st
}
