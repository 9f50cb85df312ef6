package spacecraft

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/kb"
	"github.com/signalsfoundry/mission-planner/model"
)

// Constraint and objective identifiers.
const (
	ConstraintVisibility      = "visibility"
	ConstraintNoOverlap       = "no_overlap"
	ConstraintPower           = "power"
	ConstraintDutyCycle       = "duty_cycle"
	ConstraintSlew            = "slew"
	ConstraintDownlinkLatency = "downlink_latency"

	ObjectiveScience   = "maximize_science"
	ObjectiveDownlinks = "maximize_downlinks"
)

var errNotSpacecraft = errors.New("plan has no spacecraft payload")

// Context is the read-only state spacecraft evaluators run against. Windows
// and Sunlight are derived once per planning run from Ephemeris.
type Context struct {
	Ephemeris Ephemeris
	Catalog   *kb.Catalog
	Windows   map[string][]model.VisibilityWindow
	Sunlight  SunlightProfile
	Power     PowerParams

	HorizonStart  time.Time
	HorizonEnd    time.Time
	OrbitalPeriod time.Duration

	SlewRateDegPerS float64
	DutyCycleMax    int
	// MaxStorage is how long an observation may wait for a downlink.
	MaxStorage time.Duration
}

func (*Context) Domain() model.Domain { return model.DomainSpacecraft }

func spacecraftContext(dctx core.DomainContext) (*Context, error) {
	c, ok := dctx.(*Context)
	if !ok || c == nil {
		return nil, fmt.Errorf("spacecraft evaluator given %T context", dctx)
	}
	return c, nil
}

// SortedActivities returns a copy of the plan's activities ordered by start
// time, then id.
func SortedActivities(plan *model.SpacecraftPlan) []model.Activity {
	out := append([]model.Activity(nil), plan.Activities...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func withSchedule(fn func(c *Context, acts []model.Activity) ([]core.Violation, error)) core.Evaluator {
	return func(plan *model.MissionPlan, dctx core.DomainContext) ([]core.Violation, error) {
		c, err := spacecraftContext(dctx)
		if err != nil {
			return nil, err
		}
		if plan == nil || plan.Spacecraft == nil {
			return nil, errNotSpacecraft
		}
		return fn(c, SortedActivities(plan.Spacecraft))
	}
}

// Constraints returns the spacecraft constraint set. latencyWeight is the
// penalty per observation left without a timely downlink.
func Constraints(latencyWeight float64) []core.Constraint {
	return []core.Constraint{
		{ID: ConstraintVisibility, Kind: core.Hard, Description: "activity lies inside a visibility window of its subject", Evaluate: withSchedule(evalVisibility)},
		{ID: ConstraintNoOverlap, Kind: core.Hard, Description: "activities do not overlap in time", Evaluate: withSchedule(evalNoOverlap)},
		{ID: ConstraintPower, Kind: core.Hard, Description: "state of charge stays above the floor at every activity boundary", Evaluate: withSchedule(evalPower)},
		{ID: ConstraintDutyCycle, Kind: core.Hard, Description: "at most N operations in any one-orbit window", Evaluate: withSchedule(evalDutyCycle)},
		{ID: ConstraintSlew, Kind: core.Hard, Description: "enough time to slew between consecutive subjects", Evaluate: withSchedule(evalSlew)},
		{ID: ConstraintDownlinkLatency, Kind: core.Soft, Weight: latencyWeight, Description: "each observation is downlinked within the storage limit", Evaluate: withSchedule(evalDownlinkLatency)},
	}
}

func evalVisibility(c *Context, acts []model.Activity) ([]core.Violation, error) {
	var out []core.Violation
	for _, a := range acts {
		windows, ok := c.Windows[a.SubjectID]
		if !ok {
			out = append(out, core.Violation{
				Magnitude: a.Duration().Seconds(),
				Entity:    "activity:" + a.ID,
				Detail:    fmt.Sprintf("unknown subject %q", a.SubjectID),
			})
			continue
		}
		best := a.Duration()
		for _, w := range windows {
			if missed := uncovered(a, w); missed < best {
				best = missed
			}
		}
		if best > 0 {
			out = append(out, core.Violation{
				Magnitude: best.Seconds(),
				Entity:    "activity:" + a.ID,
				Detail:    fmt.Sprintf("%s outside every window of %s", best, a.SubjectID),
			})
		}
	}
	return out, nil
}

// uncovered is how much of a falls outside w.
func uncovered(a model.Activity, w model.VisibilityWindow) time.Duration {
	lo, hi := a.Start, a.End
	if w.Start.After(lo) {
		lo = w.Start
	}
	if w.End.Before(hi) {
		hi = w.End
	}
	covered := hi.Sub(lo)
	if covered < 0 {
		covered = 0
	}
	return a.Duration() - covered
}

func evalNoOverlap(_ *Context, acts []model.Activity) ([]core.Violation, error) {
	var out []core.Violation
	for i := range acts {
		for j := i + 1; j < len(acts) && acts[j].Start.Before(acts[i].End); j++ {
			overlap := acts[i].End.Sub(acts[j].Start)
			if acts[j].End.Before(acts[i].End) {
				overlap = acts[j].Duration()
			}
			if overlap <= 0 {
				continue
			}
			out = append(out, core.Violation{
				Magnitude: overlap.Seconds(),
				Entity:    fmt.Sprintf("activity:%s,%s", acts[i].ID, acts[j].ID),
			})
		}
	}
	return out, nil
}

func evalPower(c *Context, acts []model.Activity) ([]core.Violation, error) {
	var out []core.Violation
	for _, p := range IntegrateSOC(acts, c.Sunlight, c.Power, c.HorizonStart) {
		if p.SOC >= c.Power.FloorPct {
			continue
		}
		out = append(out, core.Violation{
			Magnitude: c.Power.FloorPct - p.SOC,
			Entity:    fmt.Sprintf("activity:%s@%s", p.ActivityID, p.Edge),
			Detail:    fmt.Sprintf("SOC %.1f%% below floor %.1f%%", p.SOC*100, c.Power.FloorPct*100),
		})
	}
	return out, nil
}

func evalDutyCycle(c *Context, acts []model.Activity) ([]core.Violation, error) {
	if c.DutyCycleMax <= 0 || c.OrbitalPeriod <= 0 {
		return nil, nil
	}
	var out []core.Violation
	j := 0
	for i := range acts {
		if j < i {
			j = i
		}
		limit := acts[i].Start.Add(c.OrbitalPeriod)
		for j < len(acts) && acts[j].Start.Before(limit) {
			j++
		}
		if excess := (j - i) - c.DutyCycleMax; excess > 0 {
			out = append(out, core.Violation{
				Magnitude: float64(excess),
				Entity:    "window-from:" + acts[i].ID,
				Detail:    fmt.Sprintf("%d operations within one orbit, max %d", j-i, c.DutyCycleMax),
			})
		}
	}
	return out, nil
}

// SlewAngleDeg is the angle the spacecraft turns through to re-point from
// subject a to subject b, taken at time t.
func (c *Context) SlewAngleDeg(a, b model.GroundSubject, t time.Time) (float64, error) {
	sat, err := PositionECEF(c.Ephemeris, t)
	if err != nil {
		return 0, err
	}
	return core.AngleBetween(SubjectECEF(a).Sub(sat), SubjectECEF(b).Sub(sat)) / deg, nil
}

func evalSlew(c *Context, acts []model.Activity) ([]core.Violation, error) {
	if c.SlewRateDegPerS <= 0 {
		return nil, nil
	}
	var out []core.Violation
	for i := 0; i+1 < len(acts); i++ {
		a, b := acts[i], acts[i+1]
		if a.SubjectID == b.SubjectID {
			continue
		}
		sa, okA := c.Catalog.Get(a.SubjectID)
		sb, okB := c.Catalog.Get(b.SubjectID)
		if !okA || !okB {
			// Reported by the visibility constraint.
			continue
		}
		angle, err := c.SlewAngleDeg(sa, sb, a.End)
		if err != nil {
			return nil, err
		}
		required := angle / c.SlewRateDegPerS
		available := b.Start.Sub(a.End).Seconds()
		if required > available {
			out = append(out, core.Violation{
				Magnitude: required - available,
				Entity:    fmt.Sprintf("activity:%s,%s", a.ID, b.ID),
				Detail:    fmt.Sprintf("%.1f° slew needs %.1f s, %.1f s available", angle, required, available),
			})
		}
	}
	return out, nil
}

func evalDownlinkLatency(c *Context, acts []model.Activity) ([]core.Violation, error) {
	var out []core.Violation
	for i, a := range acts {
		if a.Type != model.ActivityObservation {
			continue
		}
		delivered := false
		for _, d := range acts[i+1:] {
			if d.Type != model.ActivityDownlink || d.Start.Before(a.End) {
				continue
			}
			if c.MaxStorage <= 0 || d.Start.Sub(a.End) <= c.MaxStorage {
				delivered = true
			}
			break
		}
		if !delivered {
			out = append(out, core.Violation{
				Magnitude: 1,
				Entity:    "activity:" + a.ID,
				Detail:    "no downlink within storage limit",
			})
		}
	}
	return out, nil
}

// Objectives returns the spacecraft objectives with the given weights. A zero
// weight omits the objective.
func Objectives(scienceW, downlinkW float64) []core.Objective {
	count := func(typ model.ActivityType, value func(model.Activity) float64) func(*model.MissionPlan, core.DomainContext) (float64, error) {
		return func(plan *model.MissionPlan, _ core.DomainContext) (float64, error) {
			if plan == nil || plan.Spacecraft == nil {
				return 0, errNotSpacecraft
			}
			var total float64
			for _, a := range plan.Spacecraft.Activities {
				if a.Type == typ {
					total += value(a)
				}
			}
			return total, nil
		}
	}
	var out []core.Objective
	if scienceW != 0 {
		out = append(out, core.Objective{
			ID: ObjectiveScience, Sense: core.Maximize, Weight: scienceW,
			Compute: count(model.ActivityObservation, func(a model.Activity) float64 { return a.Priority }),
		})
	}
	if downlinkW != 0 {
		out = append(out, core.Objective{
			ID: ObjectiveDownlinks, Sense: core.Maximize, Weight: downlinkW,
			Compute: count(model.ActivityDownlink, func(model.Activity) float64 { return 1 }),
		})
	}
	return out
}
