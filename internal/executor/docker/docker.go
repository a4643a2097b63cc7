// Package docker runs stages inside pre-warmed SDK containers.
//
// Workspaces stay on the host: the work root is bind-mounted into every container,
// and each stage is a `docker exec` in a container taken from the pool. When a stage
// hits its deadline the container is force-removed, which takes down every process
// the stage started.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/vibecoding/internal/executor"
)

const inspectTimeout = 5 * time.Second

var _ executor.StageRunner = (*Runner)(nil)

// Runner implements executor.StageRunner using Docker.
type Runner struct {
	cli    dockerClient
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the daemon, makes sure the image is present and starts the pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.HostRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving host root: %w", err)
	}
	cfg.HostRoot = root

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if err := pullImage(ctx, cli, cfg, logger); err != nil {
		_ = cli.Close()
		return nil, err
	}

	r := newRunner(cli, cfg, logger)
	r.pool.Start()
	return r, nil
}

// newRunner wires a runner around an existing client without starting the pool.
func newRunner(cli dockerClient, cfg Config, logger *slog.Logger) *Runner {
	return &Runner{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
}

func pullImage(ctx context.Context, cli dockerClient, cfg Config, logger *slog.Logger) error {
	if cfg.PullTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PullTimeout)
		defer cancel()
	}

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull is done once the progress stream ends.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("docker image is ready", slog.String("image", cfg.Image))
	return nil
}

// Close shuts down the pool and the docker client.
func (r *Runner) Close() error {
	r.pool.Stop()
	return r.cli.Close()
}

// Run executes cmd in a pooled container and blocks until it exits or its timeout
// elapses. The time spent waiting for a container counts against the timeout.
// Cancellation of ctx is ignored, as with local processes.
func (r *Runner) Run(ctx context.Context, c executor.StageCommand) executor.StageResult {
	timeout := c.TimeoutOrDefault()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	log := r.logger.With(
		slog.String("stage", c.Stage),
		slog.String("program", c.Program),
		slog.String("dir", c.Dir),
	)
	start := time.Now()

	workDir, err := r.containerPath(c.Dir)
	if err != nil {
		return executor.StartFailedStage(err)
	}
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Program)
	for _, arg := range c.Args {
		argv = append(argv, r.translateArg(arg))
	}

	containerID, err := r.pool.Acquire(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			log.WarnContext(ctx, "stage timed out waiting for a container", slog.Duration("timeout", timeout))
			return executor.TimedOutStage(time.Since(start))
		}
		return executor.StartFailedStage(fmt.Errorf("failed to get container from pool: %w", err))
	}
	// Removing the container is also what stops a stage that overran its deadline.
	defer r.pool.Release(containerID)

	log = log.With(slog.String("container", shortID(containerID)))
	log.DebugContext(ctx, "stage starting", slog.Duration("timeout", timeout))

	execResp, err := r.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          argv,
		WorkingDir:   workDir,
	})
	if err != nil {
		return r.startFailure(runCtx, start, fmt.Errorf("failed to create exec: %w", err))
	}

	attachResp, err := r.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return r.startFailure(runCtx, start, fmt.Errorf("failed to attach to exec: %w", err))
	}
	defer attachResp.Close()

	stdout := &executor.LineBuffer{OnLine: executor.DebugLines(ctx, log, "stdout")}
	stderr := &executor.LineBuffer{OnLine: executor.DebugLines(ctx, log, "stderr")}

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the single attach stream into stdout and stderr.
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		attachResp.Close()
		<-done
		log.WarnContext(ctx, "stage timed out", slog.Duration("timeout", timeout))
		return executor.TimedOutStage(time.Since(start))
	}

	elapsed := time.Since(start)
	stdout.Flush()
	stderr.Flush()

	exitCode := r.exitCode(ctx, execResp.ID, log)
	log.InfoContext(ctx, "stage finished",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", elapsed),
	)
	return executor.CompletedStage(stdout.String(), stderr.String(), exitCode, elapsed)
}

// startFailure reports an exec that never got going. A deadline hit while talking to
// the daemon still counts as a timeout.
func (r *Runner) startFailure(runCtx context.Context, start time.Time, err error) executor.StageResult {
	if runCtx.Err() != nil {
		return executor.TimedOutStage(time.Since(start))
	}
	return executor.StartFailedStage(err)
}

// exitCode asks the daemon for the exec's status. An unknown status is -1.
func (r *Runner) exitCode(ctx context.Context, execID string, log *slog.Logger) int {
	inspectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inspectTimeout)
	defer cancel()

	info, err := r.cli.ContainerExecInspect(inspectCtx, execID)
	if err != nil {
		log.WarnContext(ctx, "failed to inspect exec", slog.String("error", err.Error()))
		return -1
	}
	if info.Running {
		return -1
	}
	return info.ExitCode
}

// containerPath maps a host path under HostRoot to the same path under ContainerRoot.
func (r *Runner) containerPath(hostPath string) (string, error) {
	rel, err := filepath.Rel(r.config.HostRoot, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the mounted work root %q", hostPath, r.config.HostRoot)
	}
	return path.Join(r.config.ContainerRoot, filepath.ToSlash(rel)), nil
}

// translateArg rewrites absolute host paths inside the work root and leaves every
// other argument alone.
func (r *Runner) translateArg(arg string) string {
	if !filepath.IsAbs(arg) {
		return arg
	}
	if p, err := r.containerPath(arg); err == nil {
		return p
	}
	return arg
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
