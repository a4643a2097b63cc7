// Package app assembles the pieces shared by the server and the command line
// tool: the execution pipeline and its stage runner.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sakif/vibecoding/internal/config"
	"github.com/sakif/vibecoding/internal/executor"
	"github.com/sakif/vibecoding/internal/executor/docker"
	"github.com/sakif/vibecoding/internal/executor/dotnet"
	"github.com/sakif/vibecoding/internal/executor/process"
	"github.com/sakif/vibecoding/internal/metrics"
)

// NewExecutor builds the pipeline cfg asks for. The returned closer releases the
// stage runner (for docker: the container pool) and must be called on shutdown.
// A nil m disables instrumentation.
func NewExecutor(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (executor.Executor, io.Closer, error) {
	pipeline := cfg.Pipeline()

	var (
		runner executor.StageRunner
		closer io.Closer = nopCloser{}
	)
	switch cfg.Executor.Kind {
	case config.ExecutorDocker:
		containerCfg, err := cfg.Container()
		if err != nil {
			return nil, nil, err
		}
		// The work root is bind-mounted, so it has to exist before the first container.
		if err := os.MkdirAll(containerCfg.HostRoot, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating work root: %w", err)
		}
		r, err := docker.New(ctx, containerCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("starting docker runner: %w", err)
		}
		// Inside the image the toolchain is on PATH; a host override means nothing there.
		pipeline.Program = dotnet.DefaultConfig().Program
		runner, closer = r, r
	default:
		runner = process.New(logger)
	}

	if m != nil {
		runner = m.WrapRunner(runner)
	}

	var exec executor.Executor = dotnet.New(pipeline, runner, logger)
	if m != nil {
		exec = m.WrapExecutor(exec)
	}

	logger.Info("executor ready",
		slog.String("kind", cfg.Executor.Kind),
		slog.String("program", pipeline.Program),
		slog.String("target_framework", pipeline.TargetFramework),
	)
	return exec, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
