package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibecoding/internal/executor"
)

func newTestRunner(t *testing.T, cli *fakeDockerClient) (*Runner, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HostRoot = t.TempDir()
	cfg.PoolSize = 1

	r := newRunner(cli, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.pool.Start()
	t.Cleanup(func() { _ = r.Close() })
	return r, cfg.HostRoot
}

func TestRunner_Success(t *testing.T) {
	cli := newFakeDockerClient()
	cli.onExec = func(container.ExecOptions) execBehavior {
		return execBehavior{stdout: "Hello from Vibe Coding!\r\n", stderr: "warning\n"}
	}
	r, root := newTestRunner(t, cli)
	ws := filepath.Join(root, "VibeCoding_1")

	res := r.Run(context.Background(), executor.StageCommand{
		Stage:   executor.StageRun,
		Program: "dotnet",
		Args:    []string{filepath.Join(ws, "bin", "Release", "net9.0", "TempProject.dll")},
		Dir:     ws,
		Timeout: 5 * time.Second,
	})

	assert.True(t, res.Succeeded)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "Hello from Vibe Coding!\n", res.Output)

	execs := cli.executions()
	require.Len(t, execs, 1)
	assert.Equal(t, []string{"dotnet", "/workspace/VibeCoding_1/bin/Release/net9.0/TempProject.dll"}, execs[0].options.Cmd)
	assert.Equal(t, "/workspace/VibeCoding_1", execs[0].options.WorkingDir)
	assert.Contains(t, cli.removedIDs(), execs[0].containerID, "container is single use")
}

func TestRunner_FailureAppendsStderr(t *testing.T) {
	cli := newFakeDockerClient()
	cli.onExec = func(container.ExecOptions) execBehavior {
		return execBehavior{stdout: "out\n", stderr: "boom\n", exitCode: 1}
	}
	r, root := newTestRunner(t, cli)

	res := r.Run(context.Background(), executor.StageCommand{
		Stage:   executor.StageBuild,
		Program: "dotnet",
		Args:    []string{"build", "--configuration", "Release"},
		Dir:     root,
	})

	assert.False(t, res.Succeeded)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "out\n\nboom\n", res.Output)

	execs := cli.executions()
	require.Len(t, execs, 1)
	assert.Equal(t, []string{"dotnet", "build", "--configuration", "Release"}, execs[0].options.Cmd)
	assert.Equal(t, "/workspace", execs[0].options.WorkingDir)
}

func TestRunner_TimeoutRemovesContainer(t *testing.T) {
	cli := newFakeDockerClient()
	cli.onExec = func(container.ExecOptions) execBehavior {
		return execBehavior{block: true}
	}
	r, root := newTestRunner(t, cli)

	start := time.Now()
	res := r.Run(context.Background(), executor.StageCommand{
		Stage:   executor.StageRun,
		Program: "dotnet",
		Dir:     root,
		Timeout: 200 * time.Millisecond,
	})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Succeeded)
	assert.Equal(t, "Execution timed out.", res.Output)

	execs := cli.executions()
	require.Len(t, execs, 1)
	assert.Contains(t, cli.removedIDs(), execs[0].containerID)
}

func TestRunner_TimesOutWaitingForContainer(t *testing.T) {
	cli := newFakeDockerClient()
	cfg := DefaultConfig()
	cfg.HostRoot = t.TempDir()
	cfg.PoolSize = 1
	// Pool never started, so no container ever becomes available.
	r := newRunner(cli, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res := r.Run(context.Background(), executor.StageCommand{
		Stage:   executor.StageBuild,
		Program: "dotnet",
		Dir:     cfg.HostRoot,
		Timeout: 50 * time.Millisecond,
	})

	assert.True(t, res.TimedOut)
	assert.Empty(t, cli.executions())
}

func TestRunner_RejectsDirOutsideRoot(t *testing.T) {
	cli := newFakeDockerClient()
	r, _ := newTestRunner(t, cli)

	res := r.Run(context.Background(), executor.StageCommand{
		Stage:   executor.StageBuild,
		Program: "dotnet",
		Dir:     t.TempDir(),
	})

	assert.True(t, res.StartFailed)
	assert.Contains(t, res.Output, "Error running process: ")
	assert.Empty(t, cli.executions())
}

func TestRunner_IgnoresCallerCancellation(t *testing.T) {
	cli := newFakeDockerClient()
	cli.onExec = func(container.ExecOptions) execBehavior {
		return execBehavior{stdout: "done\n"}
	}
	r, root := newTestRunner(t, cli)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, executor.StageCommand{Stage: executor.StageRun, Program: "dotnet", Dir: root})

	assert.True(t, res.Succeeded)
	assert.Equal(t, "done\n", res.Output)
}

func TestPool_ContainerConfig(t *testing.T) {
	cli := newFakeDockerClient()
	r, root := newTestRunner(t, cli)

	id, err := r.pool.Acquire(context.Background())
	require.NoError(t, err)
	r.pool.Release(id)

	creates := cli.creates()
	require.NotEmpty(t, creates)
	call := creates[0]
	assert.Equal(t, "mcr.microsoft.com/dotnet/sdk:9.0", call.config.Image)
	assert.Equal(t, []string{"sleep", "infinity"}, []string(call.config.Cmd))
	assert.Contains(t, call.config.Env, "DOTNET_CLI_TELEMETRY_OPTOUT=1")
	assert.Equal(t, container.NetworkMode("none"), call.hostConfig.NetworkMode)
	assert.Equal(t, []string{root + ":/workspace"}, call.hostConfig.Binds)
	require.NotNil(t, call.hostConfig.Resources.PidsLimit)
	assert.Equal(t, int64(256), *call.hostConfig.Resources.PidsLimit)
	if runtime.GOOS != "windows" {
		assert.Equal(t, fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()), call.config.User,
			"stages must run as the host user so the workspace stays removable")
	}
}

func TestPool_StopRemovesIdleContainers(t *testing.T) {
	cli := newFakeDockerClient()
	cfg := DefaultConfig()
	cfg.HostRoot = t.TempDir()
	cfg.PoolSize = 2
	pool := NewPool(cli, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	pool.Start()

	require.Eventually(t, func() bool { return len(pool.containers) == 2 }, 2*time.Second, 10*time.Millisecond)
	pool.Stop()

	removed := cli.removedIDs()
	for _, c := range cli.creates() {
		assert.Contains(t, removed, c.id)
	}

	_, err := pool.Acquire(context.Background())
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "host root is required")

	cfg.HostRoot = "/srv/vibe"
	assert.NoError(t, cfg.Validate())

	cfg.PoolSize = 0
	assert.Error(t, cfg.Validate())
}
