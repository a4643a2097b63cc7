package docker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// execBehavior scripts what one exec prints and how it ends.
type execBehavior struct {
	stdout   string
	stderr   string
	exitCode int
	// block keeps the stream open until the runner closes it.
	block bool
}

type execCall struct {
	containerID string
	options     container.ExecOptions
}

type fakeDockerClient struct {
	mu          sync.Mutex
	nextID      int
	imagePulls  []string
	createCalls []containerCreateCall
	removed     []string
	execCalls   []execCall
	exitCodes   map[string]int
	closed      bool

	// onExec decides the behavior of each exec; nil means a silent success.
	onExec func(options container.ExecOptions) execBehavior
}

type containerCreateCall struct {
	id         string
	config     *container.Config
	hostConfig *container.HostConfig
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{exitCodes: make(map[string]int)}
}

func (f *fakeDockerClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.imagePulls = append(f.imagePulls, ref)
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("container-%d", f.nextID)
	f.nextID++
	f.createCalls = append(f.createCalls, containerCreateCall{id: id, config: config, hostConfig: hostConfig})
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	f.removed = append(f.removed, containerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.mu.Lock()
	f.execCalls = append(f.execCalls, execCall{containerID: containerID, options: options})
	f.mu.Unlock()
	return container.ExecCreateResponse{ID: "exec-" + containerID}, nil
}

func (f *fakeDockerClient) ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error) {
	f.mu.Lock()
	call := f.execCalls[len(f.execCalls)-1]
	onExec := f.onExec
	f.mu.Unlock()

	var behavior execBehavior
	if onExec != nil {
		behavior = onExec(call.options)
	}

	if behavior.block {
		conn, _ := net.Pipe()
		return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(conn)}, nil
	}

	f.mu.Lock()
	f.exitCodes[execID] = behavior.exitCode
	f.mu.Unlock()

	var buf bytes.Buffer
	if behavior.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(behavior.stdout))
	}
	if behavior.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(behavior.stderr))
	}
	return types.HijackedResponse{Conn: &fakeConn{}, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDockerClient) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.exitCodes[execID]
	if !ok {
		return container.ExecInspect{}, fmt.Errorf("no such exec: %s", execID)
	}
	return container.ExecInspect{ExecID: execID, ExitCode: code}, nil
}

func (f *fakeDockerClient) executions() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.execCalls...)
}

func (f *fakeDockerClient) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeDockerClient) creates() []containerCreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]containerCreateCall(nil), f.createCalls...)
}

type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) CloseWrite() error {
	return c.Close()
}

func (c *fakeConn) LocalAddr() net.Addr              { return fakeAddr("local") }
func (c *fakeConn) RemoteAddr() net.Addr             { return fakeAddr("remote") }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return string(a) }
func (a fakeAddr) String() string  { return string(a) }
