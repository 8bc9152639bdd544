package executor

import (
	"time"
)

// FailureKind classifies why a step failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureExit      FailureKind = "exit"
	FailureStart     FailureKind = "start"
	FailureTimeout   FailureKind = "timeout"
	FailureCancelled FailureKind = "cancelled"
	FailurePanic     FailureKind = "panic"
)

// StepResult is the outcome of one step. Err is non-nil iff Succeeded is false.
type StepResult struct {
	Succeeded bool
	Output    string
	Err       error
	Failure   FailureKind
	Duration  time.Duration
}

func succeeded(output string, d time.Duration) StepResult {
	return StepResult{Succeeded: true, Output: output, Duration: d}
}

func failed(kind FailureKind, output string, err error, d time.Duration) StepResult {
	return StepResult{Failure: kind, Output: output, Err: err, Duration: d}
}
