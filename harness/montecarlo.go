package harness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/mission-planner/aircraft"
	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/scenario"
)

// DefaultTrials is the reference Monte-Carlo campaign size.
const DefaultTrials = 100

// Perturbation resamples the stochastic inputs of a cloned scenario. It
// draws only from rng and returns the sampled values for the trial record.
type Perturbation interface {
	Name() string
	Apply(sc *scenario.Scenario, rng *rand.Rand) (map[string]float64, error)
}

// WindPerturbation replaces the aircraft base wind with an independent
// Gaussian sample per axis.
type WindPerturbation struct {
	Mean model.Vec2
	Std  model.Vec2
}

// DefaultWindPerturbation is mean 3 m/s, std 2 m/s on both axes.
func DefaultWindPerturbation() WindPerturbation {
	return WindPerturbation{Mean: model.Vec2{X: 3, Y: 3}, Std: model.Vec2{X: 2, Y: 2}}
}

func (WindPerturbation) Name() string { return "wind" }

func (p WindPerturbation) Apply(sc *scenario.Scenario, rng *rand.Rand) (map[string]float64, error) {
	if sc.Aircraft == nil {
		return nil, core.InvalidConfig("perturbation.wind", "scenario has no aircraft section")
	}
	if p.Std.X < 0 || p.Std.Y < 0 {
		return nil, core.InvalidConfig("perturbation.wind.std", "must be non-negative")
	}
	w := aircraft.Gaussian{Mean: p.Mean, Std: p.Std}.Sample(rng)
	sc.Aircraft.Wind.X, sc.Aircraft.Wind.Y = w.X, w.Y
	return map[string]float64{"wind_x": w.X, "wind_y": w.Y}, nil
}

// OrbitInsertionPerturbation disperses where along and around the Earth the
// spacecraft is inserted.
type OrbitInsertionPerturbation struct {
	TrueAnomalyStdDeg float64
	RAANStdDeg        float64
}

func (OrbitInsertionPerturbation) Name() string { return "orbit_insertion" }

func (p OrbitInsertionPerturbation) Apply(sc *scenario.Scenario, rng *rand.Rand) (map[string]float64, error) {
	switch {
	case sc.Spacecraft == nil:
		return nil, core.InvalidConfig("perturbation.orbit_insertion", "scenario has no spacecraft section")
	case sc.Spacecraft.TLE != nil:
		return nil, core.InvalidConfig("perturbation.orbit_insertion", "TLE orbits cannot be dispersed")
	case p.TrueAnomalyStdDeg < 0 || p.RAANStdDeg < 0:
		return nil, core.InvalidConfig("perturbation.orbit_insertion", "standard deviations must be non-negative")
	}
	dNu := p.TrueAnomalyStdDeg * rng.NormFloat64()
	dRAAN := p.RAANStdDeg * rng.NormFloat64()
	o := &sc.Spacecraft.Orbit
	o.TrueAnomalyDeg += dNu
	o.RAANDeg += dRAAN
	return map[string]float64{"true_anomaly_offset_deg": dNu, "raan_offset_deg": dRAAN}, nil
}

// MonteCarlo runs independent perturbed trials of one scenario. Trial i owns
// a PCG generator seeded with (Seed, i), so a campaign is reproducible for a
// fixed seed regardless of worker count or scheduling order.
type MonteCarlo struct {
	Trials       int
	Seed         uint64
	Workers      int
	Perturbation Perturbation
}

// TrialResult is one Monte-Carlo trial.
type TrialResult struct {
	Trial   int                `json:"trial"`
	Sampled map[string]float64 `json:"sampled"`
	RunResult
}

// Campaign is the result of a Monte-Carlo run.
type Campaign struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Perturbation string        `json:"perturbation"`
	Seed         uint64        `json:"seed"`
	Trials       []TrialResult `json:"trials"`
	Summary      Summary       `json:"summary"`
}

// Run executes the campaign against base, which is cloned per trial and never
// modified.
func (m MonteCarlo) Run(ctx context.Context, r *Runner, name string, base *scenario.Scenario) (*Campaign, error) {
	trials := m.Trials
	if trials == 0 {
		trials = DefaultTrials
	}
	switch {
	case trials < 0:
		return nil, core.InvalidConfig("montecarlo.trials", "must be positive, got %d", trials)
	case m.Perturbation == nil:
		return nil, core.InvalidConfig("montecarlo.perturbation", "required")
	case base == nil:
		return nil, core.InvalidConfig("scenario", "nil scenario")
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	workers := m.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	c := &Campaign{
		ID:           uuid.NewString(),
		Name:         name,
		Perturbation: m.Perturbation.Name(),
		Seed:         m.Seed,
		Trials:       make([]TrialResult, trials),
	}
	ctx, span := observability.StartSpan(observability.WithScenario(ctx, name, string(base.Domain())), observability.SpanMonteCarlo,
		observability.AttrCampaign.String(c.ID),
		observability.AttrPerturbation.String(c.Perturbation),
		observability.AttrTrials.Int(trials),
	)
	defer span.End()
	log := r.log.With(logging.String("campaign", c.ID), logging.String("scenario", name))
	log.Info(ctx, "monte-carlo campaign started",
		logging.Int("trials", trials),
		logging.Int("workers", workers),
		logging.String("perturbation", c.Perturbation),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < trials; i++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(m.Seed, uint64(i)))
			sc := base.Clone()
			sampled, err := m.Perturbation.Apply(sc, rng)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			tctx := logging.ContextWithRunID(gctx, fmt.Sprintf("%s-%03d", c.ID, i))
			res := r.RunScenario(tctx, fmt.Sprintf("%s/trial-%03d", name, i), sc)
			if res.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			c.Trials[i] = TrialResult{Trial: i, Sampled: sampled, RunResult: res}
			r.metrics.ObserveTrial("montecarlo", res.Succeeded())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runs := make([]RunResult, len(c.Trials))
	for i, t := range c.Trials {
		runs[i] = t.RunResult
	}
	c.Summary = Summarize(runs)
	r.metrics.SetSuccessRatio("montecarlo", c.Summary.SuccessRate)
	span.SetAttributes(observability.AttrSuccessRate.Float64(c.Summary.SuccessRate))
	log.Info(ctx, "monte-carlo campaign finished",
		logging.Int("successes", c.Summary.Successes),
		logging.Int("failures", c.Summary.Failures),
		logging.Int("errors", c.Summary.Errors),
		logging.Float("success_rate", c.Summary.SuccessRate),
	)
	return c, nil
}
