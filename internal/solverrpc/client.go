package solverrpc

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/mission-planner/solver"
)

// Client is a solver.Solver backed by a remote solver service.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ solver.Solver = (*Client)(nil)

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to the solver service at target without transport security.
// Extra dial options are appended after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial solver %s: %w", target, err)
	}
	return conn, nil
}

// Solve implements solver.Solver. A call cut short by the caller's deadline
// reports StatusTimeout rather than an error, matching the in-process solver.
func (c *Client) Solve(ctx context.Context, p *solver.Problem) (*solver.Result, error) {
	req, err := EncodeProblem(p)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, SolveMethod, req, resp); err != nil {
		err = FromStatusError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			return &solver.Result{Status: solver.StatusTimeout, Message: err.Error()}, nil
		}
		return nil, fmt.Errorf("remote solve %q: %w", p.Name, err)
	}
	return DecodeResult(resp)
}
