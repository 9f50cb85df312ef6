package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks configuration rejected before any solving.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNonConvergence marks a numerical routine that failed to reach its
	// tolerance within its iteration bound.
	ErrNonConvergence = errors.New("numerical non-convergence")
	// ErrEvaluator marks a constraint or objective evaluator that failed. It
	// is a programming error, never a constraint violation.
	ErrEvaluator = errors.New("evaluator failure")
)

// ConfigError names the configuration field that was rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InvalidConfig is shorthand for a *ConfigError.
func InvalidConfig(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError reports which routine failed and how close it got.
type ConvergenceError struct {
	Op         string
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: %s after %d iterations (residual %.3g)", ErrNonConvergence, e.Op, e.Iterations, e.Residual)
}

func (e *ConvergenceError) Unwrap() error { return ErrNonConvergence }

// EvaluatorError wraps a failure raised while evaluating a constraint or
// objective.
type EvaluatorError struct {
	ID  string
	Err error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEvaluator, e.ID, e.Err)
}

func (e *EvaluatorError) Unwrap() []error { return []error{ErrEvaluator, e.Err} }
