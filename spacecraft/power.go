package spacecraft

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

// PowerParams describe the battery and loads.
type PowerParams struct {
	BatteryWh    float64
	SolarW       float64 // array output while sunlit
	IdleW        float64 // bus load, always on
	ObservationW float64 // payload draw during an observation
	DownlinkW    float64 // transmitter draw during a downlink
	InitialSOC   float64 // fraction at horizon start
	FloorPct     float64 // minimum allowed SOC fraction
}

// DefaultPowerParams is the reference small-satellite power budget.
func DefaultPowerParams() PowerParams {
	return PowerParams{
		BatteryWh:    100,
		SolarW:       30,
		IdleW:        5,
		ObservationW: 50,
		DownlinkW:    80,
		InitialSOC:   1,
		FloorPct:     0.2,
	}
}

// Validate checks the power budget.
func (p PowerParams) Validate() error {
	switch {
	case !(p.BatteryWh > 0):
		return core.InvalidConfig("spacecraft.battery_wh", "must be positive, got %v", p.BatteryWh)
	case p.SolarW < 0 || p.IdleW < 0 || p.ObservationW < 0 || p.DownlinkW < 0:
		return core.InvalidConfig("spacecraft.power", "power figures must be non-negative")
	case p.InitialSOC < 0 || p.InitialSOC > 1:
		return core.InvalidConfig("spacecraft.initial_soc", "must be in [0, 1], got %v", p.InitialSOC)
	case p.FloorPct < 0 || p.FloorPct >= 1:
		return core.InvalidConfig("spacecraft.soc_floor_pct", "must be in [0, 1), got %v", p.FloorPct)
	}
	return nil
}

// Draw returns the extra load of an activity type.
func (p PowerParams) Draw(t model.ActivityType) float64 {
	if t == model.ActivityDownlink {
		return p.DownlinkW
	}
	return p.ObservationW
}

// SOCPoint is the state of charge at one activity boundary.
type SOCPoint struct {
	Time       time.Time
	ActivityID string
	Edge       string // "start" or "end"
	SOC        float64
}

// IntegrateSOC walks the schedule from start, charging from the array while
// sunlit and draining idle plus activity loads, and reports SOC at every
// activity boundary. SOC saturates at a full battery and at zero.
func IntegrateSOC(activities []model.Activity, sun SunlightProfile, p PowerParams, start time.Time) []SOCPoint {
	type boundary struct {
		t    time.Time
		id   string
		edge string
	}
	bounds := make([]boundary, 0, 2*len(activities))
	for _, a := range activities {
		bounds = append(bounds, boundary{a.Start, a.ID, "start"}, boundary{a.End, a.ID, "end"})
	}
	sort.SliceStable(bounds, func(i, j int) bool {
		if !bounds[i].t.Equal(bounds[j].t) {
			return bounds[i].t.Before(bounds[j].t)
		}
		// Ends before starts at the same instant.
		return bounds[i].edge == "end" && bounds[j].edge == "start"
	})

	step := sun.Step
	if step <= 0 {
		step = time.Minute
	}
	load := func(t time.Time) float64 {
		w := p.IdleW
		for _, a := range activities {
			if !t.Before(a.Start) && t.Before(a.End) {
				w += p.Draw(a.Type)
			}
		}
		return w
	}

	soc := p.InitialSOC
	cur := start
	out := make([]SOCPoint, 0, len(bounds))
	for _, b := range bounds {
		for cur.Before(b.t) {
			next := cur.Add(step)
			if next.After(b.t) {
				next = b.t
			}
			mid := cur.Add(next.Sub(cur) / 2)
			net := -load(mid)
			if sun.At(mid) {
				net += p.SolarW
			}
			soc += net * next.Sub(cur).Hours() / p.BatteryWh
			soc = math.Max(0, math.Min(1, soc))
			cur = next
		}
		out = append(out, SOCPoint{Time: b.t, ActivityID: b.id, Edge: b.edge, SOC: soc})
	}
	return out
}
