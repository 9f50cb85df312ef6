// Package solverrpc carries the solver contract over gRPC. Problems and
// results travel as google.protobuf.Struct messages holding their JSON form,
// so the service needs no generated stubs.
package solverrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/mission-planner/solver"
)

// EncodeProblem converts a problem into its wire form.
func EncodeProblem(p *solver.Problem) (*structpb.Struct, error) {
	return toStruct(p)
}

// DecodeProblem parses a problem from its wire form.
func DecodeProblem(s *structpb.Struct) (*solver.Problem, error) {
	var p solver.Problem
	if err := fromStruct(s, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeResult converts a result into its wire form.
func EncodeResult(r *solver.Result) (*structpb.Struct, error) {
	return toStruct(r)
}

// DecodeResult parses a result from its wire form.
func DecodeResult(s *structpb.Struct) (*solver.Result, error) {
	var r solver.Result
	if err := fromStruct(s, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("decode %T: empty message", v)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
