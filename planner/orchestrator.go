// Package planner drives a domain planner through the planning state machine:
// define variables, build constraints, set the objective, hand the problem to
// a solver under a wall-clock budget, decode the assignment and re-validate it
// against every constraint.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/solver"
	"github.com/signalsfoundry/mission-planner/timectrl"
)

// DefaultSolveBudget bounds the solver call when no budget is configured.
const DefaultSolveBudget = 30 * time.Second

// ErrInvalidTransition is returned when the state machine is driven out of
// order, for example by running an orchestrator twice.
var ErrInvalidTransition = errors.New("invalid planner state transition")

// State is a phase of the planning state machine.
type State int

const (
	StateConfigured State = iota
	StateVariablesDefined
	StateConstraintsBuilt
	StateObjectiveSet
	StateSolving
	StateSolved
	StateInfeasible
	StateValidated
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateVariablesDefined:
		return "VARIABLES_DEFINED"
	case StateConstraintsBuilt:
		return "CONSTRAINTS_BUILT"
	case StateObjectiveSet:
		return "OBJECTIVE_SET"
	case StateSolving:
		return "SOLVING"
	case StateSolved:
		return "SOLVED"
	case StateInfeasible:
		return "INFEASIBLE"
	case StateValidated:
		return "VALIDATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateConfigured:       {StateVariablesDefined},
	StateVariablesDefined: {StateConstraintsBuilt},
	StateConstraintsBuilt: {StateObjectiveSet},
	StateObjectiveSet:     {StateSolving},
	StateSolving:          {StateSolved, StateInfeasible},
	StateSolved:           {StateValidated},
	StateInfeasible:       {StateValidated},
}

// DomainPlanner supplies one vehicle class's decision variables, constraints,
// objective and assignment decoding. Methods are called once each, in order.
type DomainPlanner interface {
	Domain() model.Domain
	// DefineVariables prepares the physics state and declares the solver
	// variables.
	DefineVariables(ctx context.Context) ([]solver.Variable, error)
	// BuildConstraints returns the exact evaluators used for validation and
	// the solver-side expressions derived from them.
	BuildConstraints(ctx context.Context) ([]core.Constraint, []solver.Expression, error)
	SetObjective(ctx context.Context) (core.ObjectiveSet, solver.Objective, error)
	// Describe attaches the domain model (kind, routing or scheduling data)
	// to the problem.
	Describe(p *solver.Problem) error
	// Decode turns an assignment into a plan. Errors wrapping
	// solver.ErrInvalidAssignment mark malformed assignments.
	Decode(res *solver.Result) (*model.MissionPlan, error)
	// Context is the read-only state evaluators run against.
	Context() core.DomainContext
	// Metrics summarises a decoded plan.
	Metrics(plan *model.MissionPlan) map[string]float64
}

// MetricsRecorder receives run outcomes. *observability.PlannerCollector
// satisfies it.
type MetricsRecorder interface {
	ObserveRun(domain, status string, feasible bool, solve time.Duration)
	ObserveViolation(domain, constraint, kind string)
}

// Outcome is the result of one orchestrated run.
type Outcome struct {
	PlanID   string        `json:"plan_id"`
	Domain   model.Domain  `json:"domain"`
	State    State         `json:"state"`
	Status   solver.Status `json:"status"`
	Feasible bool          `json:"feasible"`
	// Plan is set whenever the solver returned a decodable assignment,
	// including best-effort assignments of infeasible runs.
	Plan          *model.MissionPlan `json:"plan,omitempty"`
	Report        *core.Report       `json:"report,omitempty"`
	Score         core.Score         `json:"score"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	SolveDuration time.Duration      `json:"solve_duration"`
	Message       string             `json:"message,omitempty"`
	History       []State            `json:"history"`
}

// Orchestrator runs one DomainPlanner to completion.
type Orchestrator struct {
	mu sync.Mutex

	planner DomainPlanner
	solver  solver.Solver
	budget  time.Duration
	clock   timectrl.Clock
	log     logging.Logger
	metrics MetricsRecorder

	state   State
	history []State
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithSolveBudget bounds the solver call. Non-positive values keep the
// default.
func WithSolveBudget(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithClock replaces the wall clock used to time the solver call.
func WithClock(c timectrl.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetricsRecorder attaches an optional recorder for run outcomes.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New prepares an orchestrator in the CONFIGURED state.
func New(p DomainPlanner, s solver.Solver, log logging.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logging.Noop()
	}
	o := &Orchestrator{
		planner: p,
		solver:  s,
		budget:  DefaultSolveBudget,
		clock:   timectrl.RealClock{},
		log:     log,
		state:   StateConfigured,
		history: []State{StateConfigured},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns every state visited so far.
func (o *Orchestrator) History() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.history...)
}

func (o *Orchestrator) transition(ctx context.Context, to State) error {
	o.mu.Lock()
	from := o.state
	allowed := false
	for _, s := range transitions[from] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	o.state = to
	o.history = append(o.history, to)
	o.mu.Unlock()

	o.log.Debug(ctx, "planner state transition",
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	)
	return nil
}

// Run walks the state machine once. Expected planning failures (infeasible
// models, solver timeouts, malformed assignments, hard violations found on
// re-validation) are reported in the Outcome; only configuration errors,
// evaluator failures and cancellation are returned as errors.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	if o.State() != StateConfigured {
		return nil, fmt.Errorf("%w: run from %s", ErrInvalidTransition, o.State())
	}
	domain := o.planner.Domain()
	planID := uuid.NewString()

	ctx, log := logging.WithRunLogger(ctx, o.log.With(
		logging.String("domain", string(domain)),
		logging.String("plan_id", planID),
	))
	ctx, span := observability.StartSpan(ctx, observability.SpanPlannerRun,
		observability.AttrPlanID.String(planID),
		observability.AttrDomain.String(string(domain)),
	)
	defer span.End()

	out, err := o.run(ctx, log, domain, planID)
	if err != nil {
		observability.FailSpan(span, err)
		log.Error(ctx, "planning failed", logging.Err(err))
		return nil, err
	}
	hard := 0
	if out.Report != nil {
		hard = len(out.Report.Hard())
	}
	observability.RecordOutcome(span, string(out.Status), out.Feasible, hard)
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, log logging.Logger, domain model.Domain, planID string) (*Outcome, error) {
	vars, err := o.planner.DefineVariables(ctx)
	if err != nil {
		return nil, fmt.Errorf("define variables: %w", err)
	}
	if err := o.transition(ctx, StateVariablesDefined); err != nil {
		return nil, err
	}

	constraints, exprs, err := o.planner.BuildConstraints(ctx)
	if err != nil {
		return nil, fmt.Errorf("build constraints: %w", err)
	}
	set, err := core.NewSet(constraints...)
	if err != nil {
		return nil, fmt.Errorf("build constraints: %w", err)
	}
	if err := o.transition(ctx, StateConstraintsBuilt); err != nil {
		return nil, err
	}

	objectives, objective, err := o.planner.SetObjective(ctx)
	if err != nil {
		return nil, fmt.Errorf("set objective: %w", err)
	}
	if err := objectives.Validate(); err != nil {
		return nil, fmt.Errorf("set objective: %w", err)
	}
	if err := o.transition(ctx, StateObjectiveSet); err != nil {
		return nil, err
	}

	problem := &solver.Problem{
		Name:        planID,
		Variables:   vars,
		Constraints: exprs,
		Objective:   objective,
	}
	if err := o.planner.Describe(problem); err != nil {
		return nil, fmt.Errorf("describe problem: %w", err)
	}
	if err := problem.Validate(); err != nil {
		return nil, fmt.Errorf("describe problem: %w", err)
	}
	if err := o.transition(ctx, StateSolving); err != nil {
		return nil, err
	}

	res, solveDur, err := o.solve(ctx, problem)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		PlanID:        planID,
		Domain:        domain,
		Status:        res.Status,
		SolveDuration: solveDur,
		Message:       res.Message,
	}

	plan, decodeErr := o.decode(problem, res)
	if decodeErr != nil {
		log.Warn(ctx, "solver assignment rejected", logging.Err(decodeErr))
		out.Status = solver.StatusInfeasible
		out.Message = decodeErr.Error()
	}
	if plan != nil {
		plan.ID = planID
	}

	next := StateInfeasible
	if out.Status == solver.StatusSolved {
		next = StateSolved
	}
	if err := o.transition(ctx, next); err != nil {
		return nil, err
	}

	if plan != nil {
		_, vspan := observability.StartSpan(ctx, observability.SpanPlannerValidate, observability.AttrPlanID.String(planID))
		report, err := set.Evaluate(plan, o.planner.Context())
		if err != nil {
			vspan.End()
			return nil, fmt.Errorf("validate: %w", err)
		}
		score, err := objectives.Score(plan, o.planner.Context(), report.Penalty())
		vspan.End()
		if err != nil {
			return nil, fmt.Errorf("score: %w", err)
		}
		out.Plan = plan
		out.Report = report
		out.Score = score
		out.Metrics = o.planner.Metrics(plan)
		out.Feasible = out.Status == solver.StatusSolved && report.Feasible()
	}
	if err := o.transition(ctx, StateValidated); err != nil {
		return nil, err
	}
	out.State = StateValidated
	out.History = o.History()

	o.record(ctx, log, out)
	return out, nil
}

// solve runs the solver in its own goroutine so a solver that ignores its
// context still cannot hold the orchestrator past the budget. Exhausting the
// budget yields StatusTimeout.
func (o *Orchestrator) solve(ctx context.Context, p *solver.Problem) (*solver.Result, time.Duration, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPlannerSolve,
		observability.AttrProblem.String(p.Name),
		observability.AttrSolverKind.String(string(p.Kind)),
		observability.AttrVariables.Int(len(p.Variables)),
		observability.AttrExpressions.Int(len(p.Constraints)),
	)
	defer span.End()

	solveCtx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	type reply struct {
		res *solver.Result
		err error
	}
	done := make(chan reply, 1)
	start := o.clock.Now()
	go func() {
		res, err := o.solver.Solve(solveCtx, p)
		done <- reply{res: res, err: err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-solveCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		r = reply{res: &solver.Result{Status: solver.StatusTimeout, Message: fmt.Sprintf("solver exceeded %s budget", o.budget)}}
	}
	elapsed := o.clock.Now().Sub(start)

	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &solver.Result{Status: solver.StatusTimeout, Message: r.err.Error()}, elapsed, nil
		}
		observability.FailSpan(span, r.err)
		return nil, elapsed, fmt.Errorf("solve: %w", r.err)
	}
	if r.res == nil {
		return &solver.Result{Status: solver.StatusUnknown, Message: "solver returned no result"}, elapsed, nil
	}
	span.SetAttributes(observability.AttrSolverStatus.String(string(r.res.Status)))
	return r.res, elapsed, nil
}

// decode checks and decodes any assignment the solver returned. A missing
// assignment on a non-solved status is not an error: there is nothing to
// validate. A problem without variables decodes to an empty plan.
func (o *Orchestrator) decode(p *solver.Problem, res *solver.Result) (*model.MissionPlan, error) {
	if len(res.Assignment) == 0 && len(p.Variables) > 0 {
		if res.Status == solver.StatusSolved {
			return nil, fmt.Errorf("%w: solved status without assignment", solver.ErrInvalidAssignment)
		}
		return nil, nil
	}
	if err := p.CheckAssignment(res); err != nil {
		return nil, err
	}
	plan, err := o.planner.Decode(res)
	if err != nil {
		return nil, err
	}
	if err := plan.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", solver.ErrInvalidAssignment, err)
	}
	return plan, nil
}

func (o *Orchestrator) record(ctx context.Context, log logging.Logger, out *Outcome) {
	hard, soft := 0, 0
	if out.Report != nil {
		hard, soft = len(out.Report.Hard()), len(out.Report.Soft())
	}
	log.Info(ctx, "planning finished",
		logging.String("status", string(out.Status)),
		logging.Bool("feasible", out.Feasible),
		logging.Int("hard_violations", hard),
		logging.Int("soft_violations", soft),
		logging.Float("score", out.Score.Value),
		logging.Duration("solve", out.SolveDuration),
	)
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveRun(string(out.Domain), string(out.Status), out.Feasible, out.SolveDuration)
	if out.Report != nil {
		for _, v := range out.Report.Violations {
			o.metrics.ObserveViolation(string(out.Domain), v.ConstraintID, v.Kind.String())
		}
	}
}
