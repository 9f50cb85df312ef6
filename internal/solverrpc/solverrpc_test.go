package solverrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/solver"
)

const bufSize = 1024 * 1024

func lineProblem() *solver.Problem {
	// Nodes on a line at 0, 30, 10, 20.
	pos := []float64{0, 30, 10, 20}
	n := len(pos)
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			d := pos[i] - pos[j]
			if d < 0 {
				d = -d
			}
			cost[i][j] = d
		}
	}
	vars := make([]solver.Variable, n)
	for k := range vars {
		vars[k] = solver.Variable{Name: solver.OrderVar(k), Lower: 0, Upper: float64(n - 1), Integer: true}
	}
	return &solver.Problem{
		Name:      "line",
		Kind:      solver.KindRouting,
		Variables: vars,
		Objective: solver.Objective{Sense: "minimize"},
		Routing: &solver.RoutingModel{
			Nodes:  []string{"a", "b", "c", "d"},
			Depot:  0,
			Cyclic: false,
			Cost:   cost,
		},
	}
}

func startServer(t *testing.T, s solver.Solver, metrics *observability.RPCCollector, log logging.Logger) *Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := NewGRPCServer(s, log, metrics)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestCodecRoundTrip(t *testing.T) {
	p := lineProblem()
	p.Constraints = []solver.Expression{{
		ID: "no_fly", Kind: "hard", Type: solver.ExprForbiddenArc,
		Params: map[string]float64{"from": 1, "to": 2},
	}}
	wire, err := EncodeProblem(p)
	if err != nil {
		t.Fatalf("EncodeProblem: %v", err)
	}
	got, err := DecodeProblem(wire)
	if err != nil {
		t.Fatalf("DecodeProblem: %v", err)
	}
	if got.Kind != solver.KindRouting || len(got.Variables) != 4 || !got.Variables[3].Integer {
		t.Fatalf("decoded problem = %+v", got)
	}
	if got.Routing.Cost[1][2] != 20 || got.Constraints[0].Params["to"] != 2 {
		t.Fatalf("decoded model lost values: %+v", got.Routing)
	}

	if _, err := DecodeProblem(nil); err == nil {
		t.Fatalf("expected error decoding nil message")
	}
}

func TestRemoteSolveMatchesLocal(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	client := startServer(t, solver.NewHeuristic(), metrics, logging.Noop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	remote, err := client.Solve(ctx, lineProblem())
	if err != nil {
		t.Fatalf("remote Solve: %v", err)
	}
	local, err := solver.NewHeuristic().Solve(ctx, lineProblem())
	if err != nil {
		t.Fatalf("local Solve: %v", err)
	}
	if remote.Status != local.Status || remote.Objective != local.Objective {
		t.Fatalf("remote = %+v, local = %+v", remote, local)
	}
	for k, v := range local.Assignment {
		if remote.Assignment[k] != v {
			t.Fatalf("assignment %s = %v, want %v", k, remote.Assignment[k], v)
		}
	}

	if got := testutil.ToFloat64(metrics.RPCRequests.WithLabelValues("Solver", "Solve", "OK")); got != 1 {
		t.Fatalf("solver_rpc_requests_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.ProblemSize, "solver_problem_variables"); got != 1 {
		t.Fatalf("solver_problem_variables series = %d, want 1", got)
	}
}

func TestRemoteSolveRejectsMalformedProblem(t *testing.T) {
	client := startServer(t, solver.NewHeuristic(), nil, nil)

	p := lineProblem()
	p.Routing.Cost = p.Routing.Cost[:2]
	_, err := client.Solve(context.Background(), p)
	if err == nil {
		t.Fatalf("expected malformed problem error")
	}
	if !errors.Is(err, ErrMalformedProblem) {
		t.Fatalf("err = %v, want ErrMalformedProblem", err)
	}
}

type slowSolver struct{}

func (slowSolver) Solve(ctx context.Context, _ *solver.Problem) (*solver.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRemoteSolveDeadlineReportsTimeout(t *testing.T) {
	client := startServer(t, slowSolver{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := client.Solve(ctx, lineProblem())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != solver.StatusTimeout {
		t.Fatalf("status = %s, want timeout", res.Status)
	}
}

type captureSolver struct {
	runID string
}

func (c *captureSolver) Solve(ctx context.Context, p *solver.Problem) (*solver.Result, error) {
	c.runID = logging.RunIDFromContext(ctx)
	return solver.NewHeuristic().Solve(ctx, p)
}

func TestRunIDPropagatesToServer(t *testing.T) {
	capture := &captureSolver{}
	client := startServer(t, capture, nil, nil)

	ctx := logging.ContextWithRunID(context.Background(), "run-42")
	if _, err := client.Solve(ctx, lineProblem()); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if capture.runID != "run-42" {
		t.Fatalf("server saw run id %q, want run-42", capture.runID)
	}
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: SolveMethod}

	var seen string
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = logging.RunIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen == "" {
		t.Fatalf("expected generated run id")
	}

	md := metadata.Pairs(requestIDMetadataKey, "abc")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, _ = interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = logging.RunIDFromContext(ctx)
		return nil, nil
	})
	if seen != "abc" {
		t.Fatalf("run id = %q, want abc", seen)
	}
}

func TestToStatusError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"malformed", ErrMalformedProblem, codes.InvalidArgument},
		{"config", core.InvalidConfig("battery_wh", "must be positive"), codes.InvalidArgument},
		{"assignment", solver.ErrInvalidAssignment, codes.FailedPrecondition},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", errors.New("boom"), codes.Internal},
		{"status passthrough", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.Code(ToStatusError(tc.err)); got != tc.want {
				t.Fatalf("code = %s, want %s", got, tc.want)
			}
		})
	}
	if ToStatusError(nil) != nil {
		t.Fatalf("nil error mapped to non-nil")
	}
}
