package docker

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for container execution.
type Config struct {
	// Image is the SDK image every stage runs in.
	Image string
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// PidsLimit caps the number of processes inside a container.
	PidsLimit int64
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// HostRoot is the host directory workspaces are created in. It is bind-mounted
	// into every container at ContainerRoot.
	HostRoot string
	// ContainerRoot is where HostRoot appears inside the container.
	ContainerRoot string
	// NetworkMode is passed to the container host config.
	NetworkMode string
	// User runs the container processes, as "uid:gid". Empty keeps the image default
	// (root for the SDK images). Stages write bin/ and obj/ into the bind-mounted
	// workspace, so anyone but the host user leaves files the host cannot delete.
	User string
	// PullTimeout bounds the image pull done at startup.
	PullTimeout time.Duration
}

// DefaultConfig provides defaults for the .NET SDK sandbox.
func DefaultConfig() Config {
	return Config{
		Image:         "mcr.microsoft.com/dotnet/sdk:9.0",
		MemoryLimit:   1024 * 1024 * 1024,
		CPULimit:      1,
		PidsLimit:     256,
		PoolSize:      2,
		ContainerRoot: "/workspace",
		NetworkMode:   "none",
		User:          HostUser(),
		PullTimeout:   10 * time.Minute,
	}
}

// Validate reports configuration that can never produce a working container.
func (c Config) Validate() error {
	switch {
	case c.Image == "":
		return errors.New("docker: image is required")
	case c.HostRoot == "":
		return errors.New("docker: host root is required")
	case c.ContainerRoot == "":
		return errors.New("docker: container root is required")
	case c.PoolSize <= 0:
		return errors.New("docker: pool size must be positive")
	}
	return nil
}

// HostUser returns the current process's "uid:gid", or "" where the platform has no
// numeric ids.
func HostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return strconv.Itoa(uid) + ":" + strconv.Itoa(gid)
}
