package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/missionplanner.solver.v1.Solver/Solve"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Solver", "Solve", "OK")); got != 1 {
		t.Fatalf("solver_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "solver_rpc_request_duration_seconds", map[string]string{
		"service": "Solver",
		"method":  "Solve",
	}); count != 1 {
		t.Fatalf("solver_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/missionplanner.solver.v1.Solver/Solve"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Solver", "Solve", "InvalidArgument")); got != 1 {
		t.Fatalf("solver_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	second, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("second NewPlannerCollector: %v", err)
	}
	first.ObserveRun("aircraft", "solved", true, 10*time.Millisecond)
	second.ObserveRun("aircraft", "solved", true, 20*time.Millisecond)

	if got := testutil.ToFloat64(first.Runs.WithLabelValues("aircraft", "solved", "true")); got != 2 {
		t.Fatalf("planner_runs_total = %v, want 2 across collectors", got)
	}
	if count := histogramSampleCount(t, reg, "planner_solve_duration_seconds", map[string]string{"domain": "aircraft"}); count != 2 {
		t.Fatalf("planner_solve_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestPlannerCollectorHarnessMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	c.ObserveTrial("montecarlo", true)
	c.ObserveTrial("montecarlo", true)
	c.ObserveTrial("montecarlo", false)
	c.SetSuccessRatio("montecarlo", 2.0/3.0)
	c.ObserveViolation("spacecraft", "power", "hard")
	c.SetWindowCacheHitRatio(1.5)

	if got := testutil.ToFloat64(c.Trials.WithLabelValues("montecarlo", "success")); got != 2 {
		t.Fatalf("harness_trials_total success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.SuccessRatio.WithLabelValues("montecarlo")); got < 0.66 || got > 0.67 {
		t.Fatalf("harness_success_ratio = %v", got)
	}
	if got := testutil.ToFloat64(c.Violations.WithLabelValues("spacecraft", "power", "hard")); got != 1 {
		t.Fatalf("planner_violations_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.WindowCacheHitRatio); got != 1 {
		t.Fatalf("cache ratio = %v, want clamped to 1", got)
	}

	var nilCollector *PlannerCollector
	nilCollector.ObserveRun("aircraft", "solved", true, time.Second)
	nilCollector.ObserveTrial("x", true)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	rpc, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	planner, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	rpc.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	rpc.ObserveProblem("routing", 7)
	planner.ObserveRun("spacecraft", "solved", true, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	rpc.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"solver_rpc_requests_total",
		"solver_problem_variables",
		"planner_runs_total",
		"planner_solve_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/missionplanner.solver.v1.Solver/Solve": {"Solver", "Solve"},
		"":                                       {"unknown", "unknown"},
		"Solve":                                  {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %s, %s; want %v", in, svc, m, want)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
