package observability

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/mission-planner/internal/logging"
)

const tracerName = "github.com/signalsfoundry/mission-planner"

// Span names.
const (
	SpanPlannerRun      = "planner.Run"
	SpanPlannerSolve    = "planner.Solve"
	SpanPlannerValidate = "planner.Validate"
	SpanMonteCarlo      = "harness.MonteCarlo"
	SpanEdgeCases       = "harness.EdgeCases"
)

// Attribute keys on planner and harness spans. AttrScenario and AttrDomain
// also travel as baggage, see WithScenario.
const (
	AttrScenario     = attribute.Key("planner.scenario")
	AttrDomain       = attribute.Key("planner.domain")
	AttrPlanID       = attribute.Key("planner.plan_id")
	AttrStatus       = attribute.Key("planner.status")
	AttrFeasible     = attribute.Key("planner.feasible")
	AttrHardViolated = attribute.Key("planner.hard_violations")
	AttrProblem      = attribute.Key("solver.problem")
	AttrSolverKind   = attribute.Key("solver.kind")
	AttrSolverStatus = attribute.Key("solver.status")
	AttrVariables    = attribute.Key("solver.variables")
	AttrExpressions  = attribute.Key("solver.constraints")
	AttrCampaign     = attribute.Key("harness.campaign_id")
	AttrPerturbation = attribute.Key("harness.perturbation")
	AttrTrials       = attribute.Key("harness.trials")
	AttrSuccessRate  = attribute.Key("harness.success_rate")
)

// SolverRPCSpanName names the server span of a solver RPC.
func SolverRPCSpanName(service, method string) string {
	return "SolverRPC/" + service + "/" + method
}

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64
	// ResourceAttributes are extra key=value pairs stamped on every span,
	// e.g. deployment.environment.
	ResourceAttributes map[string]string
}

// TracingConfigFromEnv reads PLANNER_TRACING_* and PLANNER_OTLP_ENDPOINT.
// PLANNER_TRACING_RESOURCE_ATTRIBUTES is a comma-separated key=value list.
func TracingConfigFromEnv(defaultService string) TracingConfig {
	cfg := TracingConfig{
		Enabled:            strings.EqualFold(os.Getenv("PLANNER_TRACING_ENABLED"), "true"),
		ServiceName:        os.Getenv("PLANNER_TRACING_SERVICE_NAME"),
		Exporter:           strings.ToLower(os.Getenv("PLANNER_TRACING_EXPORTER")),
		Endpoint:           os.Getenv("PLANNER_OTLP_ENDPOINT"),
		SampleRatio:        1,
		ResourceAttributes: parseKeyValues(os.Getenv("PLANNER_TRACING_RESOURCE_ATTRIBUTES")),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultService
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if raw := os.Getenv("PLANNER_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func parseKeyValues(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// InitTracing installs the global tracer provider and propagators. Scenario
// baggage is propagated alongside trace context so a remote solver's spans
// carry the scenario they serve. The returned function flushes spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func resourceAttributes(cfg TracingConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "mission-planner"),
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		attrs = append(attrs, attribute.String("service.version", info.Main.Version))
	}
	keys := make([]string, 0, len(cfg.ResourceAttributes))
	for k := range cfg.ResourceAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, cfg.ResourceAttributes[k]))
	}
	return attrs
}

// sampler honours a parent's decision and otherwise samples by trace id.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		// Stdout carries the plan JSON; spans go to stderr.
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// WithScenario attaches the scenario name and domain to ctx as baggage.
// Empty values are skipped.
func WithScenario(ctx context.Context, scenario, domain string) context.Context {
	b := baggage.FromContext(ctx)
	for _, kv := range []attribute.KeyValue{AttrScenario.String(scenario), AttrDomain.String(domain)} {
		if kv.Value.AsString() == "" {
			continue
		}
		m, err := baggage.NewMemberRaw(string(kv.Key), kv.Value.AsString())
		if err != nil {
			continue
		}
		if next, err := b.SetMember(m); err == nil {
			b = next
		}
	}
	return baggage.ContextWithBaggage(ctx, b)
}

// ScenarioAttributes returns the scenario and domain baggage of ctx as span
// attributes.
func ScenarioAttributes(ctx context.Context) []attribute.KeyValue {
	b := baggage.FromContext(ctx)
	var out []attribute.KeyValue
	for _, k := range []attribute.Key{AttrScenario, AttrDomain} {
		if v := b.Member(string(k)).Value(); v != "" {
			out = append(out, k.String(v))
		}
	}
	return out
}

// StartSpan starts a span on the planner tracer tagged with the scenario
// baggage of ctx and attrs.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append(ScenarioAttributes(ctx), attrs...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(all...))
}

// RecordOutcome tags span with a planning outcome. Infeasible plans are a
// result, not a span error.
func RecordOutcome(span trace.Span, status string, feasible bool, hardViolations int) {
	span.SetAttributes(
		AttrStatus.String(status),
		AttrFeasible.Bool(feasible),
		AttrHardViolated.Int(hardViolations),
	)
}

// FailSpan records err on span and marks it failed.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ShutdownWithTimeout flushes tracing within five seconds and logs failures.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
