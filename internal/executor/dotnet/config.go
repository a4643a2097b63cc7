package dotnet

import (
	"time"
)

// Config holds the pinned toolchain settings for the pipeline.
type Config struct {
	// Program is the toolchain driver, resolved on PATH unless absolute.
	Program string
	// TargetFramework is written into every generated project, independent of
	// whatever SDK defaults the host has.
	TargetFramework string
	// Configuration is passed to the build subcommand and names the output folder.
	Configuration string
	// ProjectName names the generated project file and its build artifact.
	ProjectName string
	// SourceFile is the file the snippet is written to.
	SourceFile string
	// WorkRoot is where workspaces are created. Empty means os.TempDir().
	WorkRoot string
	// BuildTimeout bounds the build stage. Zero means the runner default (60s).
	BuildTimeout time.Duration
	// RunTimeout bounds the run stage.
	RunTimeout time.Duration
	// ArtifactExtensions lists the build outputs to look for, in order of preference.
	ArtifactExtensions []string
}

// DefaultConfig returns the settings the generated project is pinned to.
func DefaultConfig() Config {
	return Config{
		Program:            "dotnet",
		TargetFramework:    "net9.0",
		Configuration:      "Release",
		ProjectName:        "TempProject",
		SourceFile:         "Program.cs",
		BuildTimeout:       0,
		RunTimeout:         30 * time.Second,
		ArtifactExtensions: []string{".exe", ".dll"},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Program == "" {
		c.Program = d.Program
	}
	if c.TargetFramework == "" {
		c.TargetFramework = d.TargetFramework
	}
	if c.Configuration == "" {
		c.Configuration = d.Configuration
	}
	if c.ProjectName == "" {
		c.ProjectName = d.ProjectName
	}
	if c.SourceFile == "" {
		c.SourceFile = d.SourceFile
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = d.RunTimeout
	}
	if len(c.ArtifactExtensions) == 0 {
		c.ArtifactExtensions = d.ArtifactExtensions
	}
	return c
}
