// Package dotnet implements executor.Executor on top of the dotnet toolchain.
//
// One Execute call walks this path:
//
//	validate → stage workspace → build → run → remove workspace
//
// The build and run stages are delegated to an executor.StageRunner, so the same
// pipeline drives either local processes (executor/process) or container execs
// (executor/docker). The workspace is removed on every path, including panics.
package dotnet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/vibecoding/internal/executor"
)

var _ executor.Executor = (*Pipeline)(nil)

// Pipeline compiles and runs one snippet per Execute call.
type Pipeline struct {
	cfg    Config
	runner executor.StageRunner
	logger *slog.Logger
}

// New creates a Pipeline. Zero fields in cfg take their DefaultConfig values.
func New(cfg Config, runner executor.StageRunner, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg.withDefaults(),
		runner: runner,
		logger: logger,
	}
}

// Execute builds and runs req.Code. It never panics and never returns an error:
// every outcome, including internal faults, is reported in the result.
func (p *Pipeline) Execute(ctx context.Context, req executor.ExecutionRequest) (result executor.ExecutionResult) {
	start := time.Now()

	if strings.TrimSpace(req.Code) == "" {
		return executor.ExecutionResult{
			Success:      false,
			Output:       executor.MsgNoCode,
			ErrorMessage: executor.MsgNoCode,
			Status:       executor.StatusInputError,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "execution panicked", slog.Any("panic", r))
			result = faultResult(describePanic(r))
		}
		result.Duration = time.Since(start)
		p.logger.InfoContext(ctx, "execution finished",
			slog.String("status", string(result.Status)),
			slog.Bool("success", result.Success),
			slog.Duration("duration", result.Duration),
		)
	}()

	return p.execute(ctx, req.Code)
}

func (p *Pipeline) execute(ctx context.Context, code string) executor.ExecutionResult {
	ws, err := createWorkspace(p.cfg, code)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to stage workspace", slog.String("error", err.Error()))
		return faultResult(err.Error())
	}
	defer ws.remove(p.logger)

	p.logger.DebugContext(ctx, "workspace staged", slog.String("dir", ws.dir))

	// === BUILD ===
	build := p.runner.Run(ctx, executor.StageCommand{
		Stage:   executor.StageBuild,
		Program: p.cfg.Program,
		Args:    []string{"build", ws.projectPath, "--configuration", p.cfg.Configuration},
		Dir:     ws.dir,
		Timeout: p.cfg.BuildTimeout,
	})
	if !build.Succeeded {
		return executor.ExecutionResult{
			Success:      false,
			Output:       build.Output,
			ErrorMessage: executor.MsgCompilationFailed,
			Status:       failureStatus(build, executor.StatusCompileError),
		}
	}

	// === RUN ===
	run := p.runner.Run(ctx, executor.StageCommand{
		Stage:   executor.StageRun,
		Program: p.cfg.Program,
		Args:    []string{ws.artifactPath(p.cfg)},
		Dir:     ws.dir,
		Timeout: p.cfg.RunTimeout,
	})
	if run.Succeeded {
		return executor.ExecutionResult{
			Success: true,
			Output:  run.Output,
			Status:  executor.StatusOK,
		}
	}
	return executor.ExecutionResult{
		Success:      false,
		Output:       run.Output,
		ErrorMessage: executor.MsgExecutionFailed,
		Status:       failureStatus(run, executor.StatusRuntimeError),
	}
}

// failureStatus picks the status for a failed stage: timeouts and start failures
// override the stage's ordinary failure kind.
func failureStatus(res executor.StageResult, ordinary executor.Status) executor.Status {
	switch {
	case res.TimedOut:
		return executor.StatusTimeout
	case res.StartFailed:
		return executor.StatusInfrastructureFault
	default:
		return ordinary
	}
}

func faultResult(description string) executor.ExecutionResult {
	return executor.ExecutionResult{
		Success:      false,
		Output:       description,
		ErrorMessage: description,
		Status:       executor.StatusInfrastructureFault,
	}
}

func describePanic(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}
