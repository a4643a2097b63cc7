// Package process runs stages as local child processes.
//
// Each Run starts one program with its own process group, captures stdout and stderr
// line by line, and waits for it with a wall-clock deadline. When the deadline passes
// the whole group is killed, so a program that forks helpers cannot outlive its stage.
package process

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/sakif/vibecoding/internal/executor"
)

// defaultWaitDelay bounds how long Wait keeps the output pipes open after the
// program exited or was killed.
const defaultWaitDelay = 2 * time.Second

var _ executor.StageRunner = (*Runner)(nil)

// Runner implements executor.StageRunner with os/exec.
type Runner struct {
	logger    *slog.Logger
	waitDelay time.Duration
}

// New creates a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{
		logger:    logger,
		waitDelay: defaultWaitDelay,
	}
}

// Run starts cmd.Program and blocks until it exits or cmd's timeout elapses.
//
// Cancellation of ctx is ignored on purpose: a stage ends only by exiting or by
// hitting its deadline. ctx still carries request-scoped values for logging.
func (r *Runner) Run(ctx context.Context, c executor.StageCommand) executor.StageResult {
	timeout := c.TimeoutOrDefault()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Program, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = nil // reads from the null device
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		killProcessTree(cmd)
		return nil
	}
	cmd.WaitDelay = r.waitDelay

	log := r.logger.With(
		slog.String("stage", c.Stage),
		slog.String("program", c.Program),
		slog.String("dir", c.Dir),
	)

	stdout := &executor.LineBuffer{OnLine: executor.DebugLines(ctx, log, "stdout")}
	stderr := &executor.LineBuffer{OnLine: executor.DebugLines(ctx, log, "stderr")}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.DebugContext(ctx, "stage starting",
		slog.Int("args", len(c.Args)),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.WarnContext(ctx, "stage failed to start", slog.String("error", err.Error()))
		return executor.StartFailedStage(err)
	}

	// Wait returns only after the copy goroutines behind cmd.Stdout and cmd.Stderr
	// have drained, so everything written before exit is already in the buffers.
	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	stdout.Flush()
	stderr.Flush()

	// Descendants that outlived the program may still hold the pipes open, which is
	// what ends Wait via WaitDelay or the deadline. None of them survive the stage.
	killProcessTree(cmd)

	if !exitedOnItsOwn(cmd) && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.WarnContext(ctx, "stage timed out", slog.Duration("timeout", timeout))
		return executor.TimedOutStage(elapsed)
	}
	if waitErr != nil && exitedOnItsOwn(cmd) {
		log.DebugContext(ctx, "stage exited with output pipes still held open",
			slog.String("error", waitErr.Error()))
	}

	exitCode := exitCodeOf(cmd, waitErr)
	result := executor.CompletedStage(stdout.String(), stderr.String(), exitCode, elapsed)

	log.InfoContext(ctx, "stage finished",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", elapsed),
	)
	return result
}

// exitedOnItsOwn reports whether the program terminated by exiting, as opposed to
// being killed by a signal or never being reaped.
func exitedOnItsOwn(cmd *exec.Cmd) bool {
	return cmd.ProcessState != nil && cmd.ProcessState.Exited()
}

// exitCodeOf returns the program's exit status, or -1 when it was terminated by a
// signal or never produced a status.
func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
