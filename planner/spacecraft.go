package planner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

// SpacecraftPlanner selects and times observations and downlinks inside the
// visibility windows of one orbit. Each usable window becomes an opportunity
// with a binary x_<id> and a start s_<id> in seconds from the horizon start.
type SpacecraftPlanner struct {
	sc         *scenario.Scenario
	propagator spacecraft.Propagator
	cache      *spacecraft.WindowCache

	orbit      model.OrbitState
	start, end time.Time
	dctx       *spacecraft.Context
	minGapS    float64
	opps       []solver.Opportunity
	oppWindow  map[string]model.VisibilityWindow
	windows    []model.VisibilityWindow
}

// SpacecraftOption customises a SpacecraftPlanner.
type SpacecraftOption func(*SpacecraftPlanner)

// WithWindowCache shares visibility windows across runs of the same orbit.
// It is ignored for TLE-driven scenarios and non-default propagators.
func WithWindowCache(c *spacecraft.WindowCache) SpacecraftOption {
	return func(s *SpacecraftPlanner) { s.cache = c }
}

// WithPropagator replaces the Kepler propagator settings.
func WithPropagator(p spacecraft.Propagator) SpacecraftOption {
	return func(s *SpacecraftPlanner) { s.propagator = p }
}

// NewSpacecraftPlanner prepares a planner for a spacecraft scenario.
func NewSpacecraftPlanner(sc *scenario.Scenario, opts ...SpacecraftOption) (*SpacecraftPlanner, error) {
	if sc == nil || sc.Spacecraft == nil {
		return nil, core.InvalidConfig("spacecraft", "scenario has no spacecraft section")
	}
	s := &SpacecraftPlanner{sc: sc, propagator: spacecraft.DefaultPropagator()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (*SpacecraftPlanner) Domain() model.Domain { return model.DomainSpacecraft }

// Context returns the evaluation context; nil before DefineVariables.
func (s *SpacecraftPlanner) Context() core.DomainContext { return s.dctx }

// Opportunities returns the opportunities built by DefineVariables.
func (s *SpacecraftPlanner) Opportunities() []solver.Opportunity {
	return append([]solver.Opportunity(nil), s.opps...)
}

// DefineVariables propagates the orbit, extracts visibility windows and the
// sunlight profile, and turns every window long enough for its activity into
// an opportunity.
func (s *SpacecraftPlanner) DefineVariables(ctx context.Context) ([]solver.Variable, error) {
	cfg := s.sc.Spacecraft
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	s.start, s.end = cfg.Horizon()
	s.orbit = cfg.OrbitState()

	var (
		eph     spacecraft.Ephemeris
		period  time.Duration
		perigee float64
		cache   = s.cache
	)
	if cfg.TLE != nil {
		m, err := spacecraft.NewSGP4Ephemeris(cfg.TLE.Line1, cfg.TLE.Line2)
		if err != nil {
			return nil, err
		}
		eph, period, cache = m, m.Period(), nil
		if perigee, err = minRadius(ctx, eph, s.start, period); err != nil {
			return nil, err
		}
	} else {
		if err := spacecraft.ValidateOrbit(s.orbit); err != nil {
			return nil, err
		}
		// Cache keys do not cover propagator settings.
		if s.propagator != spacecraft.DefaultPropagator() {
			cache = nil
		}
		eph = spacecraft.KeplerEphemeris{Propagator: s.propagator, State: s.orbit}
		period = s.propagator.Period(s.orbit)
		perigee = s.orbit.SemiMajorAxisKm * (1 - s.orbit.Eccentricity)
	}

	finder := cfg.WindowFinder()
	subjects := cat.List()
	windows, err := spacecraft.CachedFindAll(cache, finder, s.orbit, eph, subjects, s.start, s.end)
	if err != nil {
		return nil, fmt.Errorf("visibility: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sun, err := spacecraft.BuildSunlightProfile(eph, s.start, s.end, finder.Step)
	if err != nil {
		return nil, err
	}

	power := cfg.PowerParams()
	s.dctx = &spacecraft.Context{
		Ephemeris:       eph,
		Catalog:         cat,
		Windows:         windows,
		Sunlight:        sun,
		Power:           power,
		HorizonStart:    s.start,
		HorizonEnd:      s.end,
		OrbitalPeriod:   period,
		SlewRateDegPerS: cfg.SlewRateMax,
		DutyCycleMax:    cfg.DutyCycleMax,
		MaxStorage:      time.Duration(cfg.MaxStorageH * float64(time.Hour)),
	}
	s.minGapS = math.Ceil(maxSlewDeg(perigee) / cfg.SlewRateMax)

	s.opps = nil
	s.windows = nil
	s.oppWindow = make(map[string]model.VisibilityWindow)
	for _, subj := range subjects {
		typ, tag := solver.OpportunityObservation, "obs"
		durS, watts := cfg.ObservationS, power.ObservationW
		if subj.Kind == model.SubjectStation {
			typ, tag = solver.OpportunityDownlink, "dl"
			durS, watts = cfg.DownlinkS, power.DownlinkW
		}
		need := time.Duration(durS*float64(time.Second)) + time.Millisecond
		for i, w := range windows[subj.ID] {
			s.windows = append(s.windows, w)
			if w.Duration() < need {
				continue
			}
			id := fmt.Sprintf("%s-%s-%03d", subj.ID, tag, i)
			s.opps = append(s.opps, solver.Opportunity{
				ID:          id,
				Subject:     subj.ID,
				Type:        typ,
				WindowStart: w.Start.Sub(s.start).Seconds(),
				WindowEnd:   w.End.Sub(s.start).Seconds(),
				Duration:    durS,
				Priority:    subj.Priority,
				DrawWh:      (watts + power.IdleW) * durS / 3600,
			})
			s.oppWindow[id] = w
		}
	}
	sort.SliceStable(s.windows, func(i, j int) bool {
		if !s.windows[i].Start.Equal(s.windows[j].Start) {
			return s.windows[i].Start.Before(s.windows[j].Start)
		}
		return s.windows[i].SubjectID < s.windows[j].SubjectID
	})

	vars := make([]solver.Variable, 0, 2*len(s.opps))
	for _, o := range s.opps {
		vars = append(vars,
			solver.Variable{Name: solver.SelectVar(o.ID), Lower: 0, Upper: 1, Integer: true},
			solver.Variable{Name: solver.StartVar(o.ID), Lower: o.WindowStart, Upper: o.WindowEnd - o.Duration},
		)
	}
	return vars, nil
}

// BuildConstraints returns the spacecraft evaluators and their solver-side
// form. Slew is reduced to a fixed gap sized for the widest possible turn,
// the Earth's angular diameter seen from perigee, and power to a linear
// level with the orbit-average net recharge.
func (s *SpacecraftPlanner) BuildConstraints(context.Context) ([]core.Constraint, []solver.Expression, error) {
	scope := make([]string, len(s.opps))
	for i, o := range s.opps {
		scope[i] = solver.SelectVar(o.ID)
	}
	p := s.dctx.Power
	hard := core.Hard.String()
	exprs := []solver.Expression{
		{ID: spacecraft.ConstraintNoOverlap, Kind: hard, Type: solver.ExprNoOverlap, Scope: scope},
		{ID: spacecraft.ConstraintSlew, Kind: hard, Type: solver.ExprMinGap, Scope: scope,
			Params: map[string]float64{"seconds": s.minGapS}},
		{ID: spacecraft.ConstraintDutyCycle, Kind: hard, Type: solver.ExprMaxCountInWindow, Scope: scope,
			Params: map[string]float64{"count": float64(s.dctx.DutyCycleMax), "window_s": s.dctx.OrbitalPeriod.Seconds()}},
		{ID: spacecraft.ConstraintPower, Kind: hard, Type: solver.ExprMinLevel, Scope: scope,
			Params: map[string]float64{
				"initial":    p.InitialSOC * p.BatteryWh,
				"capacity":   p.BatteryWh,
				"floor":      p.FloorPct * p.BatteryWh,
				"recharge_w": p.SolarW*s.dctx.Sunlight.SunlitFraction() - p.IdleW,
			}},
	}
	return spacecraft.Constraints(s.sc.Objective.LatencyWeight), exprs, nil
}

// SetObjective builds the configured objectives and the matching linear
// solver objective over the selection variables.
func (s *SpacecraftPlanner) SetObjective(context.Context) (core.ObjectiveSet, solver.Objective, error) {
	mode, err := core.ParseMode(s.sc.Objective.Mode)
	if err != nil {
		return core.ObjectiveSet{}, solver.Objective{}, err
	}
	w := s.sc.Objective.Weights
	scienceW, downlinkW := w[spacecraft.ObjectiveScience], w[spacecraft.ObjectiveDownlinks]
	obj := solver.Objective{Sense: "maximize"}
	for _, o := range s.opps {
		coef := downlinkW
		if o.Type == solver.OpportunityObservation {
			coef = scienceW * o.Priority
		}
		if coef != 0 {
			obj.Terms = append(obj.Terms, solver.Term{Variable: solver.SelectVar(o.ID), Coef: coef})
		}
	}
	set := core.ObjectiveSet{Mode: mode, Objectives: spacecraft.Objectives(scienceW, downlinkW)}
	return set, obj, nil
}

// Describe attaches the scheduling model.
func (s *SpacecraftPlanner) Describe(p *solver.Problem) error {
	p.Kind = solver.KindScheduling
	p.Scheduling = &solver.SchedulingModel{
		HorizonS:      s.end.Sub(s.start).Seconds(),
		Opportunities: append([]solver.Opportunity(nil), s.opps...),
	}
	return nil
}

// Decode turns selected opportunities into activities. Starts are clamped to
// the window they came from so rounding in the seconds offset never pushes
// an activity outside it.
func (s *SpacecraftPlanner) Decode(res *solver.Result) (*model.MissionPlan, error) {
	var acts []model.Activity
	for _, o := range s.opps {
		x, ok := res.Assignment[solver.SelectVar(o.ID)]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing", solver.ErrInvalidAssignment, solver.SelectVar(o.ID))
		}
		if x < 0.5 {
			continue
		}
		off, ok := res.Assignment[solver.StartVar(o.ID)]
		if !ok || math.IsNaN(off) {
			return nil, fmt.Errorf("%w: %s missing", solver.ErrInvalidAssignment, solver.StartVar(o.ID))
		}
		w := s.oppWindow[o.ID]
		d := time.Duration(o.Duration * float64(time.Second))
		start := s.start.Add(time.Duration(off * float64(time.Second)))
		if start.Before(w.Start) {
			start = w.Start
		}
		if start.Add(d).After(w.End) {
			start = w.End.Add(-d)
		}
		typ := model.ActivityObservation
		if o.Type == solver.OpportunityDownlink {
			typ = model.ActivityDownlink
		}
		acts = append(acts, model.Activity{
			ID:        o.ID,
			Type:      typ,
			SubjectID: o.Subject,
			Start:     start,
			End:       start.Add(d),
			Priority:  o.Priority,
		})
	}
	plan := &model.SpacecraftPlan{
		Orbit:        s.orbit,
		HorizonStart: s.start,
		HorizonEnd:   s.end,
		Activities:   acts,
		Windows:      append([]model.VisibilityWindow(nil), s.windows...),
	}
	plan.Activities = spacecraft.SortedActivities(plan)
	return &model.MissionPlan{Domain: model.DomainSpacecraft, Spacecraft: plan}, nil
}

// Metrics summarises the schedule.
func (s *SpacecraftPlanner) Metrics(plan *model.MissionPlan) map[string]float64 {
	if plan == nil || plan.Spacecraft == nil {
		return nil
	}
	sp := plan.Spacecraft
	var obs, dl int
	var science, active float64
	observed := make(map[string]bool)
	for _, a := range sp.Activities {
		active += a.Duration().Seconds()
		if a.Type == model.ActivityDownlink {
			dl++
			continue
		}
		obs++
		science += a.Priority
		observed[a.SubjectID] = true
	}
	out := map[string]float64{
		"observations":  float64(obs),
		"downlinks":     float64(dl),
		"science_value": science,
		"windows":       float64(len(sp.Windows)),
		"opportunities": float64(len(s.opps)),
		"active_time_s": active,
	}
	if h := sp.HorizonEnd.Sub(sp.HorizonStart).Seconds(); h > 0 {
		out["utilisation"] = active / h
	}
	if targets := s.dctx.Catalog.Targets(); len(targets) > 0 {
		out["target_coverage"] = float64(len(observed)) / float64(len(targets))
	}
	minSOC := s.dctx.Power.InitialSOC
	for _, p := range spacecraft.IntegrateSOC(sp.Activities, s.dctx.Sunlight, s.dctx.Power, sp.HorizonStart) {
		minSOC = math.Min(minSOC, p.SOC)
	}
	out["min_soc"] = minSOC
	return out
}

// maxSlewDeg is the Earth's angular diameter seen from radius r (km). Any
// two surface points are at most this far apart as seen from the spacecraft.
func maxSlewDeg(r float64) float64 {
	if r <= spacecraft.EarthRadiusKm {
		return 180
	}
	return 2 * math.Asin(spacecraft.EarthRadiusKm/r) * 180 / math.Pi
}

// minRadius samples one period of eph and returns the smallest geocentric
// distance seen.
func minRadius(ctx context.Context, eph spacecraft.Ephemeris, start time.Time, period time.Duration) (float64, error) {
	if period <= 0 {
		period = 90 * time.Minute
	}
	r := math.Inf(1)
	for t := start; !t.After(start.Add(period)); t = t.Add(time.Minute) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p, err := eph.PositionECI(t)
		if err != nil {
			return 0, err
		}
		r = math.Min(r, p.Norm())
	}
	return r, nil
}
