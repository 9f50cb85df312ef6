// Package harness repeats the end-to-end planning flow over scenario
// variations: single deterministic runs, Monte-Carlo campaigns with
// per-trial seeded perturbations, and a fixed table of edge cases.
package harness

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/planner"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
	"github.com/signalsfoundry/mission-planner/spacecraft"
	"github.com/signalsfoundry/mission-planner/timectrl"
)

// RunResult is the outcome of planning one scenario. Err is set when the run
// could not complete (invalid configuration, numerical failure,
// cancellation); infeasible plans are not errors.
type RunResult struct {
	Name       string             `json:"name"`
	Domain     model.Domain       `json:"domain"`
	Status     solver.Status      `json:"status,omitempty"`
	Feasible   bool               `json:"feasible"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Report     *core.Report       `json:"report,omitempty"`
	Err        error              `json:"-"`
	Error      string             `json:"error,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Violations []string           `json:"violations,omitempty"`

	Outcome *planner.Outcome `json:"-"`
}

// Runner plans scenarios one at a time. A Runner is safe for concurrent use
// as long as its solver is.
type Runner struct {
	solver  solver.Solver
	log     logging.Logger
	metrics *observability.PlannerCollector
	cache   *spacecraft.WindowCache
	budget  time.Duration
	clock   timectrl.Clock
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithMetrics records run outcomes, violations and cache hit ratio.
func WithMetrics(c *observability.PlannerCollector) RunnerOption {
	return func(r *Runner) { r.metrics = c }
}

// WithWindowCache shares visibility windows between spacecraft runs.
func WithWindowCache(c *spacecraft.WindowCache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithBudget overrides every scenario's solver budget.
func WithBudget(d time.Duration) RunnerOption {
	return func(r *Runner) { r.budget = d }
}

// WithClock replaces the clock used to time runs.
func WithClock(c timectrl.Clock) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRunner builds a runner. A nil solver selects the built-in heuristic.
func NewRunner(s solver.Solver, log logging.Logger, opts ...RunnerOption) *Runner {
	if s == nil {
		s = solver.NewHeuristic()
	}
	if log == nil {
		log = logging.Noop()
	}
	r := &Runner{solver: s, log: log, clock: timectrl.RealClock{}}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RunScenario validates and plans sc. The scenario is not modified.
func (r *Runner) RunScenario(ctx context.Context, name string, sc *scenario.Scenario, opts ...planner.SpacecraftOption) RunResult {
	start := r.clock.Now()
	res := RunResult{Name: name}
	fail := func(err error) RunResult {
		res.Err = err
		res.Error = err.Error()
		res.Duration = r.clock.Now().Sub(start)
		return res
	}
	if sc == nil {
		return fail(core.InvalidConfig("scenario", "nil scenario"))
	}
	res.Domain = sc.Domain()
	ctx = observability.WithScenario(ctx, name, string(res.Domain))
	if err := sc.Validate(); err != nil {
		return fail(err)
	}

	if r.cache != nil {
		opts = append([]planner.SpacecraftOption{planner.WithWindowCache(r.cache)}, opts...)
	}
	dp, err := planner.ForScenario(sc, opts...)
	if err != nil {
		return fail(err)
	}

	budget := sc.Budget()
	if r.budget > 0 {
		budget = r.budget
	}
	orchOpts := []planner.Option{planner.WithSolveBudget(budget), planner.WithClock(r.clock)}
	if r.metrics != nil {
		orchOpts = append(orchOpts, planner.WithMetricsRecorder(r.metrics))
	}
	log := r.log.With(logging.String("scenario", name))
	out, err := planner.New(dp, r.solver, log, orchOpts...).Run(ctx)
	if err != nil {
		return fail(err)
	}
	r.publishCacheRatio()

	res.Status = out.Status
	res.Feasible = out.Feasible
	res.Metrics = out.Metrics
	res.Report = out.Report
	res.Outcome = out
	if out.Report != nil {
		for _, v := range out.Report.Violations {
			res.Violations = append(res.Violations, v.String())
		}
	}
	res.Duration = r.clock.Now().Sub(start)
	return res
}

func (r *Runner) publishCacheRatio() {
	if r.cache == nil || r.metrics == nil {
		return
	}
	hits, misses := r.cache.Stats()
	if total := hits + misses; total > 0 {
		r.metrics.SetWindowCacheHitRatio(float64(hits) / float64(total))
	}
}

// IsConfigError reports whether a run failed on invalid configuration.
func (r RunResult) IsConfigError() bool { return errors.Is(r.Err, core.ErrInvalidConfig) }
