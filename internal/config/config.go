// Package config loads the service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. The result is validated once and passed down by value.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/sakif/vibecoding/internal/executor/docker"
	"github.com/sakif/vibecoding/internal/executor/dotnet"
)

// Executor kinds.
const (
	ExecutorLocal  = "local"
	ExecutorDocker = "docker"
)

// ConfigPathEnv names the variable holding the YAML file path.
const ConfigPathEnv = "VIBE_CONFIG"

type (
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		Logging  LoggingConfig  `yaml:"logging"`
		Executor ExecutorConfig `yaml:"executor"`
		Docker   DockerConfig   `yaml:"docker"`
		Auth     AuthConfig     `yaml:"auth"`
	}

	ServerConfig struct {
		Port   int    `yaml:"port"`
		DBPath string `yaml:"db_path"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // text, json
		File       string `yaml:"file"`   // empty: stdout only
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
		Compress   bool   `yaml:"compress"`
	}

	ExecutorConfig struct {
		Kind               string        `yaml:"kind"` // local, docker
		DotnetPath         string        `yaml:"dotnet_path"`
		TargetFramework    string        `yaml:"target_framework"`
		BuildConfiguration string        `yaml:"build_configuration"`
		BuildTimeout       time.Duration `yaml:"build_timeout"`
		RunTimeout         time.Duration `yaml:"run_timeout"`
		WorkRoot           string        `yaml:"work_root"`
	}

	DockerConfig struct {
		Image       string  `yaml:"image"`
		PoolSize    int     `yaml:"pool_size"`
		MemoryLimit string  `yaml:"memory_limit"` // e.g. "1g"
		CPULimit    float64 `yaml:"cpu_limit"`
		PidsLimit   int64   `yaml:"pids_limit"`
		NetworkMode string  `yaml:"network_mode"`
		User        string  `yaml:"user"`
	}

	AuthConfig struct {
		JWTSecret    string        `yaml:"jwt_secret"`
		PasswordHash string        `yaml:"password_hash"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
	}
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	pipeline := dotnet.DefaultConfig()
	container := docker.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:   8080,
			DBPath: "data/vibecoding.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Executor: ExecutorConfig{
			Kind:               ExecutorLocal,
			DotnetPath:         pipeline.Program,
			TargetFramework:    pipeline.TargetFramework,
			BuildConfiguration: pipeline.Configuration,
			BuildTimeout:       60 * time.Second,
			RunTimeout:         pipeline.RunTimeout,
		},
		Docker: DockerConfig{
			Image:       container.Image,
			PoolSize:    container.PoolSize,
			MemoryLimit: units.BytesSize(float64(container.MemoryLimit)),
			CPULimit:    container.CPULimit,
			PidsLimit:   container.PidsLimit,
			NetworkMode: container.NetworkMode,
			User:        container.User,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or at
// $VIBE_CONFIG when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. Unset variables leave the
// current value alone; malformed ones are an error.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
				return
			}
			*dst = d
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
				return
			}
			*dst = f
		}
	}

	integer("PORT", &c.Server.Port)
	str("DB_PATH", &c.Server.DBPath)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	str("EXECUTOR", &c.Executor.Kind)
	str("DOTNET_PATH", &c.Executor.DotnetPath)
	str("TARGET_FRAMEWORK", &c.Executor.TargetFramework)
	str("BUILD_CONFIGURATION", &c.Executor.BuildConfiguration)
	duration("BUILD_TIMEOUT", &c.Executor.BuildTimeout)
	duration("RUN_TIMEOUT", &c.Executor.RunTimeout)
	str("WORK_ROOT", &c.Executor.WorkRoot)

	str("DOCKER_IMAGE", &c.Docker.Image)
	integer("DOCKER_POOL_SIZE", &c.Docker.PoolSize)
	str("DOCKER_MEMORY_LIMIT", &c.Docker.MemoryLimit)
	float("DOCKER_CPU_LIMIT", &c.Docker.CPULimit)
	str("DOCKER_USER", &c.Docker.User)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("PASSWORD_HASH", &c.Auth.PasswordHash)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)

	return errors.Join(errs...)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Executor.Kind {
	case ExecutorLocal:
	case ExecutorDocker:
		if _, err := units.RAMInBytes(c.Docker.MemoryLimit); err != nil {
			errs = append(errs, fmt.Errorf("invalid docker memory limit %q: %w", c.Docker.MemoryLimit, err))
		}
		if c.Docker.PoolSize <= 0 {
			errs = append(errs, errors.New("docker pool size must be positive"))
		}
		if c.Docker.Image == "" {
			errs = append(errs, errors.New("docker image is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown executor %q (want %q or %q)", c.Executor.Kind, ExecutorLocal, ExecutorDocker))
	}
	if c.Executor.BuildTimeout < 0 || c.Executor.RunTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	if c.Auth.PasswordHash != "" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("password hash is set but JWT secret is empty"))
	}
	if c.Auth.JWTSecret != "" && c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}

	return errors.Join(errs...)
}

// AuthEnabled reports whether API routes require a token.
func (c Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// WorkRoot is the directory workspaces are created in. Containers need a stable
// directory to mount, so the docker executor gets a dedicated one under the temp dir.
func (c Config) WorkRoot() string {
	if c.Executor.WorkRoot != "" {
		return c.Executor.WorkRoot
	}
	if c.Executor.Kind == ExecutorDocker {
		return filepath.Join(os.TempDir(), "vibecoding")
	}
	return ""
}

// Pipeline returns the toolchain settings for the execution pipeline.
func (c Config) Pipeline() dotnet.Config {
	cfg := dotnet.DefaultConfig()
	cfg.Program = c.Executor.DotnetPath
	cfg.TargetFramework = c.Executor.TargetFramework
	cfg.Configuration = c.Executor.BuildConfiguration
	cfg.BuildTimeout = c.Executor.BuildTimeout
	cfg.RunTimeout = c.Executor.RunTimeout
	cfg.WorkRoot = c.WorkRoot()
	return cfg
}

// Container returns the settings for the docker stage runner. Inside the container
// the toolchain is always on PATH, so the pipeline program is not used here.
func (c Config) Container() (docker.Config, error) {
	cfg := docker.DefaultConfig()
	mem, err := units.RAMInBytes(c.Docker.MemoryLimit)
	if err != nil {
		return docker.Config{}, fmt.Errorf("invalid docker memory limit %q: %w", c.Docker.MemoryLimit, err)
	}
	cfg.Image = c.Docker.Image
	cfg.PoolSize = c.Docker.PoolSize
	cfg.MemoryLimit = mem
	cfg.CPULimit = c.Docker.CPULimit
	cfg.PidsLimit = c.Docker.PidsLimit
	cfg.NetworkMode = c.Docker.NetworkMode
	cfg.User = c.Docker.User
	cfg.HostRoot = c.WorkRoot()
	return cfg, nil
}
