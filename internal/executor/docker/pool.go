package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
)

const (
	createTimeout = 30 * time.Second
	removeTimeout = 10 * time.Second
	retryBackoff  = time.Second
	idlePoll      = 100 * time.Millisecond
)

// Pool keeps a number of started SDK containers ready so a stage does not pay
// container startup. Containers are single use: whoever acquires one removes it.
type Pool struct {
	cli        dockerClient
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool creates a pool. Nothing is started until Start.
func NewPool(cli dockerClient, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, cfg.PoolSize),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool in the background.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting container pool", slog.Int("pool_size", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and removes every container still waiting in the pool.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.Release(id)
			default:
				return
			}
		}
	})
}

// Acquire returns a started container, blocking until one is ready or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("container pool is stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Release force-removes a container, killing anything still running in it.
func (p *Pool) Release(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove container", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// manager keeps the pool at capacity until Stop.
func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		if len(p.containers) >= cap(p.containers) {
			if !p.sleep(idlePoll) {
				return
			}
			continue
		}

		id, err := p.createContainer()
		if err != nil {
			p.logger.Error("failed to create pre-warmed container", slog.String("error", err.Error()))
			if !p.sleep(retryBackoff) {
				return
			}
			continue
		}

		select {
		case p.containers <- id:
		case <-p.done:
			p.Release(id)
			return
		}
	}
}

// sleep waits for d and reports false if the pool was stopped meanwhile.
func (p *Pool) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.done:
		return false
	case <-t.C:
		return true
	}
}

// createContainer starts a container running `sleep infinity` with the work root
// mounted, ready for exec.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(p.config.NetworkMode),
		Binds:       []string{p.config.HostRoot + ":" + p.config.ContainerRoot},
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		// The SDK writes its caches under HOME; keep them off the image.
		Tmpfs: map[string]string{
			"/tmp": "rw,exec,size=512m",
		},
		AutoRemove: false,
	}
	if p.config.PidsLimit > 0 {
		limit := p.config.PidsLimit
		hostConfig.Resources.PidsLimit = &limit
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:      p.config.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: p.config.ContainerRoot,
		User:       p.config.User,
		Env: []string{
			"HOME=/tmp",
			"DOTNET_CLI_HOME=/tmp",
			"NUGET_PACKAGES=/tmp/nuget",
			"DOTNET_NOLOGO=1",
			"DOTNET_CLI_TELEMETRY_OPTOUT=1",
			"DOTNET_SKIP_FIRST_TIME_EXPERIENCE=1",
		},
		Tty: false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.Release(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}
