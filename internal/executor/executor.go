// Package executor defines the contract between callers that want a snippet run
// (HTTP handlers, the tab service, the CLI) and the components that build and run it.
//
// TWO LEVELS:
//
//	Executor     → one end-to-end "compile then run" request (see executor/dotnet)
//	StageRunner  → one external program invocation (see executor/process, executor/docker)
//
// Neither level reports failures as Go errors. Every outcome, including faults inside
// the pipeline, comes back as a result value so callers only have to render it.
package executor

import (
	"context"
	"time"
)

// Fixed messages shared by the pipeline and the stage runners.
// Clients and tests match on these strings, so they must not change.
const (
	MsgNoCode            = "No code provided."
	MsgCompilationFailed = "Compilation failed."
	MsgExecutionFailed   = "Execution failed or timed out."
	MsgTimedOut          = "Execution timed out."
	MsgStartFailedPrefix = "Error running process: "
)

// DefaultStageTimeout applies when a stage is started with a zero timeout.
const DefaultStageTimeout = 60 * time.Second

// Status classifies how an execution ended.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusInputError          Status = "input_error"
	StatusCompileError        Status = "compile_error"
	StatusRuntimeError        Status = "runtime_error"
	StatusTimeout             Status = "timeout"
	StatusInfrastructureFault Status = "infrastructure_fault"
)

// ExecutionRequest carries the raw source text of one snippet.
type ExecutionRequest struct {
	Code string `json:"code"`
}

// ExecutionResult is the only value that leaves the pipeline.
// ErrorMessage is empty when Success is true.
type ExecutionResult struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Status       Status        `json:"status"`
	Duration     time.Duration `json:"duration"`
}

// Executor turns one snippet into one ExecutionResult.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) ExecutionResult
}

// Stage names used for logging and metrics.
const (
	StageBuild = "build"
	StageRun   = "run"
)

// StageResult is what a StageRunner reports for one program invocation.
//
// Output is the combined transcript: stdout lines, followed by stderr only when the
// program exited nonzero. On timeout it is exactly MsgTimedOut; when the program could
// not be started it is MsgStartFailedPrefix plus the cause.
type StageResult struct {
	Succeeded   bool
	Output      string
	ExitCode    int
	TimedOut    bool
	StartFailed bool
	Duration    time.Duration
}

// StageCommand describes one external program invocation.
type StageCommand struct {
	// Stage is StageBuild or StageRun. Runners only use it for logging.
	Stage   string
	Program string
	Args    []string
	Dir     string
	// Timeout bounds the wall-clock time of the program. Zero means DefaultStageTimeout.
	Timeout time.Duration
}

// StageRunner runs exactly one external program to completion or timeout.
type StageRunner interface {
	Run(ctx context.Context, cmd StageCommand) StageResult
}

// TimeoutOrDefault returns the stage timeout to enforce.
func (c StageCommand) TimeoutOrDefault() time.Duration {
	if c.Timeout <= 0 {
		return DefaultStageTimeout
	}
	return c.Timeout
}
