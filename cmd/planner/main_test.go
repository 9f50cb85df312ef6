package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/mission-planner/internal/logging"
	"github.com/signalsfoundry/mission-planner/scenario"
)

func TestRunWritesRecordsForScenarioFile(t *testing.T) {
	data, err := scenario.Marshal(scenario.ReferenceAircraft(), scenario.FormatYAML)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "mission.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var buf bytes.Buffer
	cfg := Config{Mode: ModeRun, ScenarioPath: path, Records: true}
	if err := run(context.Background(), cfg, logging.Noop(), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out struct {
		Feasible   bool   `json:"feasible"`
		Status     string `json:"status"`
		Trajectory []struct {
			WaypointID string `json:"waypoint_id"`
		} `json:"trajectory"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if !out.Feasible || out.Status != "solved" {
		t.Fatalf("output = %+v", out)
	}
	if len(out.Trajectory) != 8 || out.Trajectory[0].WaypointID != "WP0" {
		t.Fatalf("trajectory = %+v", out.Trajectory)
	}
}

func TestRunMonteCarloSummary(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Mode: ModeMonteCarlo, Reference: "aircraft", Trials: 3, Seed: 1}
	if err := run(context.Background(), cfg, logging.Noop(), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	var out struct {
		Perturbation string `json:"perturbation"`
		Summary      struct {
			Runs int `json:"runs"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Perturbation != "wind" || out.Summary.Runs != 3 {
		t.Fatalf("output = %+v", out)
	}
}

func TestRunRejectsUnknownModeAndReference(t *testing.T) {
	if err := run(context.Background(), Config{Mode: "replay"}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if err := run(context.Background(), Config{Mode: ModeRun, Reference: "balloon"}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown reference")
	}
	if _, err := perturbationFor("solar", scenario.ReferenceAircraft()); err == nil {
		t.Fatalf("expected error for unknown perturbation")
	}
}
