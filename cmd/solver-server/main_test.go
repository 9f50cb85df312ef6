package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/internal/solverrpc"
	"github.com/signalsfoundry/mission-planner/planner"
	"github.com/signalsfoundry/mission-planner/scenario"
	"github.com/signalsfoundry/mission-planner/solver"
)

func TestSolverServerPlansReferenceAircraft(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg := Config{ListenAddress: lis.Addr().String()}
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := solverrpc.Dial(cfg.ListenAddress)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	dp, err := planner.ForScenario(scenario.ReferenceAircraft())
	if err != nil {
		t.Fatalf("ForScenario: %v", err)
	}
	out, err := planner.New(dp, solverrpc.NewClient(conn), log).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != solver.StatusSolved || !out.Feasible {
		t.Fatalf("status=%s feasible=%v report=%v", out.Status, out.Feasible, out.Report)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
