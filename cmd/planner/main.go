package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/mission-planner/harness"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/internal/solverrpc"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/planner"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
	"github.com/signalsfoundry/mission-planner/spacecraft"
)

// Modes.
const (
	ModeRun        = "run"
	ModeMonteCarlo = "montecarlo"
	ModeEdgeCases  = "edgecases"
)

// Config holds the planner command settings.
type Config struct {
	Mode         string
	ScenarioPath string
	// Reference selects a built-in scenario when ScenarioPath is empty.
	Reference    string
	SolverAddr   string
	Budget       time.Duration
	MetricsAddr  string
	Trials       int
	Seed         uint64
	Workers      int
	Perturbation string
	CacheSize    int
	Records      bool
}

func main() {
	_ = godotenv.Load()

	cfg := Config{}
	flag.StringVar(&cfg.Mode, "mode", ModeRun, "run, montecarlo or edgecases")
	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "scenario file (.yaml or .json)")
	flag.StringVar(&cfg.Reference, "reference", "aircraft", "built-in scenario when -scenario is empty: aircraft or spacecraft")
	flag.StringVar(&cfg.SolverAddr, "solver-addr", os.Getenv("PLANNER_SOLVER_ADDR"), "remote solver gRPC address (empty uses the built-in heuristic)")
	flag.DurationVar(&cfg.Budget, "budget", envDuration("PLANNER_SOLVE_BUDGET"), "solver budget override (0 keeps the scenario's)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", os.Getenv("PLANNER_METRICS_ADDR"), "HTTP address for Prometheus /metrics (empty disables)")
	flag.IntVar(&cfg.Trials, "trials", harness.DefaultTrials, "Monte-Carlo trials")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "Monte-Carlo seed")
	flag.IntVar(&cfg.Workers, "workers", 0, "concurrent runs (0 uses GOMAXPROCS)")
	flag.StringVar(&cfg.Perturbation, "perturbation", "", "wind or orbit (default follows the scenario domain)")
	flag.IntVar(&cfg.CacheSize, "cache-size", spacecraft.DefaultWindowCacheSize, "visibility window cache entries")
	flag.BoolVar(&cfg.Records, "records", false, "include trajectory or schedule records in run output")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv("mission-planner"), log)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logging.Err(err))
	} else {
		defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	}

	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error(ctx, "planner failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log logging.Logger, w io.Writer) error {
	sc, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewPlannerCollector(reg)
	if err != nil {
		return err
	}
	if srv := serveMetrics(cfg.MetricsAddr, metrics, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var s solver.Solver
	if cfg.SolverAddr != "" {
		conn, err := solverrpc.Dial(cfg.SolverAddr)
		if err != nil {
			return err
		}
		defer conn.Close()
		s = solverrpc.NewClient(conn)
		log.Info(ctx, "using remote solver", logging.String("addr", cfg.SolverAddr))
	}

	opts := []harness.RunnerOption{harness.WithMetrics(metrics), harness.WithBudget(cfg.Budget)}
	if cfg.CacheSize > 0 {
		cache, err := spacecraft.NewWindowCache(cfg.CacheSize)
		if err != nil {
			return err
		}
		opts = append(opts, harness.WithWindowCache(cache))
	}
	runner := harness.NewRunner(s, log, opts...)

	var out any
	switch cfg.Mode {
	case ModeRun:
		res := runner.RunScenario(ctx, sc.Name, sc)
		if res.Err != nil {
			return res.Err
		}
		out = runOutput(res, cfg.Records)
	case ModeMonteCarlo:
		p, err := perturbationFor(cfg.Perturbation, sc)
		if err != nil {
			return err
		}
		mc := harness.MonteCarlo{Trials: cfg.Trials, Seed: cfg.Seed, Workers: cfg.Workers, Perturbation: p}
		c, err := mc.Run(ctx, runner, sc.Name, sc)
		if err != nil {
			return err
		}
		out = c
	case ModeEdgeCases:
		rep, err := harness.RunEdgeCases(ctx, runner, harness.EdgeCases(), cfg.Workers)
		if err != nil {
			return err
		}
		out = rep
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type runResultOutput struct {
	harness.RunResult
	Trajectory []model.TrajectoryRecord `json:"trajectory,omitempty"`
	Schedule   []model.ScheduleRecord   `json:"schedule,omitempty"`
}

func runOutput(res harness.RunResult, records bool) runResultOutput {
	out := runResultOutput{RunResult: res}
	if !records || res.Outcome == nil || res.Outcome.Plan == nil {
		return out
	}
	out.Trajectory = planner.TrajectoryRecords(res.Outcome.Plan)
	out.Schedule = planner.ScheduleRecords(res.Outcome.Plan)
	return out
}

func loadScenario(cfg Config) (*scenario.Scenario, error) {
	if cfg.ScenarioPath != "" {
		return scenario.LoadFile(cfg.ScenarioPath)
	}
	switch cfg.Reference {
	case "aircraft", "":
		return scenario.ReferenceAircraft(), nil
	case "spacecraft":
		return scenario.ReferenceSpacecraft(), nil
	}
	return nil, fmt.Errorf("unknown reference scenario %q", cfg.Reference)
}

func perturbationFor(name string, sc *scenario.Scenario) (harness.Perturbation, error) {
	if name == "" {
		if sc.Spacecraft != nil {
			name = "orbit"
		} else {
			name = "wind"
		}
	}
	switch name {
	case "wind":
		return harness.DefaultWindPerturbation(), nil
	case "orbit":
		return harness.OrbitInsertionPerturbation{TrueAnomalyStdDeg: 1, RAANStdDeg: 0.5}, nil
	}
	return nil, errors.New("perturbation must be wind or orbit")
}

func serveMetrics(addr string, metrics *observability.PlannerCollector, log logging.Logger) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.HandlerFor(metrics.Gatherer()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}
