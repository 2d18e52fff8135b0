// Package sandbox runs untrusted candidate JavaScript against a list of inputs.
//
// A Runner compiles the submitted source once, checks that it defines a function
// named solve, then calls solve once per input. Each call is isolated: a thrown
// error or timeout is recorded on that case only and the remaining inputs still run.
// The returned value and the expected value are both passed through JSON.parse and
// JSON.stringify inside the JavaScript engine and compared there, ignoring key order.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MissingSolveMessage is reported when the source compiles but defines no solve function.
const MissingSolveMessage = "solve function not found. Please define a function named solve."

// Messages used when the thrown value carries no message of its own.
const (
	DefaultRuntimeMessage = "Runtime error"
	DefaultCompileMessage = "Invalid JavaScript code"
)

// Request is one evaluation: the candidate source and the raw JSON input of each test.
type Request struct {
	Source string
	Inputs []json.RawMessage
	// Expected holds the expected output for the input at the same index. A missing
	// entry is treated as null.
	Expected []json.RawMessage
	// Timeout bounds a single test case. Zero falls back to the runner default.
	Timeout time.Duration
}

// CaseResult is the outcome of calling solve with one input.
type CaseResult struct {
	// Output holds the JSON.stringify form of the return value when Defined is true.
	Output  json.RawMessage
	Defined bool
	// Matched reports whether Output equals the expected value for this input.
	Matched bool
	Error   string
}

// Failed reports whether the call threw or timed out.
func (r CaseResult) Failed() bool {
	return r.Error != ""
}

// Report collects the case results in input order.
type Report struct {
	Cases    []CaseResult
	Duration time.Duration
}

// CompileError means the source could not be loaded or lacks a solve function.
// No case runs when it is returned.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile: %s", e.Message)
}

// Runner executes candidate code.
type Runner interface {
	Name() string
	Run(ctx context.Context, req Request) (Report, error)
}

func failedCase(message string) CaseResult {
	if message == "" {
		message = DefaultRuntimeMessage
	}
	return CaseResult{Error: message}
}

func compileError(message string) *CompileError {
	if message == "" {
		message = DefaultCompileMessage
	}
	return &CompileError{Message: message}
}

// Messages for cases a container backend could not finish.
const (
	OutOfMemoryMessage = "execution ran out of memory"
	NotRunMessage      = "not run: the sandbox stopped during an earlier test"
)

func terminatedMessage(exitCode int) string {
	return fmt.Sprintf("execution terminated unexpectedly (exit code %d)", exitCode)
}

func timedOutMessage(timeout time.Duration) string {
	return fmt.Sprintf("execution timed out after %s", timeout)
}

func expectedAt(req Request, i int) string {
	if i >= len(req.Expected) {
		return "null"
	}
	return inputOrNull(req.Expected[i])
}

func inputOrNull(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
