package solverrpc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/observability"
	"github.com/signalsfoundry/mission-planner/solver"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "missionplanner.solver.v1.Solver"
	// SolveMethod is the full method path of the unary Solve call.
	SolveMethod = "/" + ServiceName + "/Solve"
)

// SolverServer is the server API of the solver service.
type SolverServer interface {
	Solve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var solverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: solveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "missionplanner/solver/v1/solver.proto",
}

func solveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SolveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SolverServer).Solve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterSolverServer registers srv on the gRPC service registrar.
func RegisterSolverServer(s grpc.ServiceRegistrar, srv SolverServer) {
	s.RegisterService(&solverServiceDesc, srv)
}

// Server exposes a solver.Solver over gRPC.
type Server struct {
	solver  solver.Solver
	log     logging.Logger
	metrics *observability.RPCCollector
}

// NewServer wraps s. A nil logger or collector disables that concern.
func NewServer(s solver.Solver, log logging.Logger, metrics *observability.RPCCollector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{solver: s, log: log, metrics: metrics}
}

// Solve decodes the problem, runs the wrapped solver under the caller's
// deadline and returns the encoded result.
func (s *Server) Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = s.log
	}

	p, err := DecodeProblem(req)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrMalformedProblem, err))
	}
	if err := p.Validate(); err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrMalformedProblem, err))
	}
	s.metrics.ObserveProblem(string(p.Kind), len(p.Variables))

	res, err := s.solver.Solve(ctx, p)
	if err != nil {
		log.Warn(ctx, "solve failed",
			logging.String("problem", p.Name),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	log.Info(ctx, "solve finished",
		logging.String("problem", p.Name),
		logging.String("kind", string(p.Kind)),
		logging.String("status", string(res.Status)),
		logging.Int("variables", len(p.Variables)),
	)

	out, err := EncodeResult(res)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// NewGRPCServer builds a gRPC server carrying the solver service with
// OpenTelemetry stats handling and the request-id, tracing and metrics
// interceptors chained in that order.
func NewGRPCServer(s solver.Solver, log logging.Logger, metrics *observability.RPCCollector, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = logging.Noop()
	}
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryServerInterceptor())
	}
	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, opts...)

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterSolverServer(grpcServer, NewServer(s, log, metrics))
	return grpcServer
}
