package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlannerCollector exposes orchestrator and harness Prometheus metrics.
type PlannerCollector struct {
	gatherer prometheus.Gatherer

	Runs                *prometheus.CounterVec
	SolveDuration       *prometheus.HistogramVec
	Violations          *prometheus.CounterVec
	WindowCacheHitRatio prometheus.Gauge

	Trials       *prometheus.CounterVec
	SuccessRatio *prometheus.GaugeVec
}

// NewPlannerCollector registers planner metrics against the provided registerer.
func NewPlannerCollector(reg prometheus.Registerer) (*PlannerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := gathererFor(reg)

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_runs_total",
		Help: "Completed planning runs, labeled by domain and final solver status.",
	}, []string{"domain", "status", "feasible"}), "planner_runs_total")
	if err != nil {
		return nil, err
	}

	solve, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_solve_duration_seconds",
		Help:    "Wall-clock time spent in the solver per planning run.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"domain"}), "planner_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	violations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_violations_total",
		Help: "Constraint violations found while validating plans.",
	}, []string{"domain", "constraint", "kind"}), "planner_violations_total")
	if err != nil {
		return nil, err
	}

	cacheRatio, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_window_cache_hit_ratio",
		Help: "Hit ratio for the visibility window cache.",
	}), "planner_window_cache_hit_ratio")
	if err != nil {
		return nil, err
	}

	trials, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harness_trials_total",
		Help: "Harness trials run, labeled by campaign kind and outcome.",
	}, []string{"campaign", "outcome"}), "harness_trials_total")
	if err != nil {
		return nil, err
	}

	success, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "harness_success_ratio",
		Help: "Share of successful trials in the most recent campaign of each kind.",
	}, []string{"campaign"}), "harness_success_ratio")
	if err != nil {
		return nil, err
	}

	return &PlannerCollector{
		gatherer:            gatherer,
		Runs:                runs,
		SolveDuration:       solve,
		Violations:          violations,
		WindowCacheHitRatio: cacheRatio,
		Trials:              trials,
		SuccessRatio:        success,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PlannerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRun records one finished planning run.
func (c *PlannerCollector) ObserveRun(domain, status string, feasible bool, solve time.Duration) {
	if c == nil {
		return
	}
	f := "false"
	if feasible {
		f = "true"
	}
	c.Runs.WithLabelValues(domain, status, f).Inc()
	c.SolveDuration.WithLabelValues(domain).Observe(solve.Seconds())
}

// ObserveViolation counts one violation of constraint.
func (c *PlannerCollector) ObserveViolation(domain, constraint, kind string) {
	if c == nil {
		return
	}
	c.Violations.WithLabelValues(domain, constraint, kind).Inc()
}

// SetWindowCacheHitRatio sets the visibility window cache hit ratio.
func (c *PlannerCollector) SetWindowCacheHitRatio(ratio float64) {
	if c == nil || c.WindowCacheHitRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.WindowCacheHitRatio.Set(ratio)
}

// ObserveTrial counts one harness trial.
func (c *PlannerCollector) ObserveTrial(campaign string, success bool) {
	if c == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.Trials.WithLabelValues(campaign, outcome).Inc()
}

// SetSuccessRatio publishes a campaign's success ratio.
func (c *PlannerCollector) SetSuccessRatio(campaign string, ratio float64) {
	if c == nil {
		return
	}
	c.SuccessRatio.WithLabelValues(campaign).Set(ratio)
}
