package dotnet

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// workspacePrefix starts every workspace directory name.
const workspacePrefix = "VibeCoding_"

// workspace is the directory one Execute call owns for its whole lifetime.
type workspace struct {
	dir         string
	sourcePath  string
	projectPath string
}

// project mirrors the minimal MSBuild project the toolchain needs to build
// a console executable.
type project struct {
	XMLName       xml.Name        `xml:"Project"`
	SDK           string          `xml:"Sdk,attr"`
	PropertyGroup projectSettings `xml:"PropertyGroup"`
}

type projectSettings struct {
	OutputType      string `xml:"OutputType"`
	TargetFramework string `xml:"TargetFramework"`
	ImplicitUsings  string `xml:"ImplicitUsings"`
	Nullable        string `xml:"Nullable"`
}

// projectDescriptor renders the project file. The output depends only on cfg, so
// every call gets a byte-identical descriptor.
func projectDescriptor(cfg Config) ([]byte, error) {
	p := project{
		SDK: "Microsoft.NET.Sdk",
		PropertyGroup: projectSettings{
			OutputType:      "Exe",
			TargetFramework: cfg.TargetFramework,
			ImplicitUsings:  "enable",
			Nullable:        "enable",
		},
	}
	out, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering project file: %w", err)
	}
	return append(out, '\n'), nil
}

// createWorkspace makes a fresh directory under the work root and stages the source
// and project files in it. On error nothing is left behind.
func createWorkspace(cfg Config, code string) (*workspace, error) {
	root := cfg.WorkRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating work root: %w", err)
	}

	dir := filepath.Join(root, workspacePrefix+uuid.NewString())
	// Mkdir, not MkdirAll: an existing directory must be an error, never reused.
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	ws := &workspace{
		dir:         dir,
		sourcePath:  filepath.Join(dir, cfg.SourceFile),
		projectPath: filepath.Join(dir, cfg.ProjectName+".csproj"),
	}

	if err := os.WriteFile(ws.sourcePath, []byte(code), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing source file: %w", err)
	}

	descriptor, err := projectDescriptor(cfg)
	if err == nil {
		err = os.WriteFile(ws.projectPath, descriptor, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing project file: %w", err)
	}

	return ws, nil
}

// artifactPath returns the first build output that exists, trying extensions in
// the configured order. When none exists the last candidate is returned and the
// toolchain gets to report the problem.
func (w *workspace) artifactPath(cfg Config) string {
	outDir := filepath.Join(w.dir, "bin", cfg.Configuration, cfg.TargetFramework)
	var candidate string
	for _, ext := range cfg.ArtifactExtensions {
		candidate = filepath.Join(outDir, cfg.ProjectName+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidate
}

// remove deletes the workspace. Failures are logged and otherwise ignored.
func (w *workspace) remove(logger *slog.Logger) {
	if err := os.RemoveAll(w.dir); err != nil {
		logger.Warn("failed to remove workspace",
			slog.String("dir", w.dir),
			slog.String("error", err.Error()),
		)
	}
}
