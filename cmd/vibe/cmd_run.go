package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/sakif/vibecoding/internal/app"
	"github.com/sakif/vibecoding/internal/config"
	"github.com/sakif/vibecoding/internal/executor"
)

var runHwd = &RunRunner{stdin: os.Stdin, stdout: os.Stdout}

var (
	cResult = color.New(color.FgGreen, color.Bold)
	cFailed = color.New(color.FgRed, color.Bold)
	cDim    = color.New(color.FgHiBlack)
)

// errRunFailed makes the process exit non-zero without printing anything more.
var errRunFailed = cli.Exit("", 1)

type RunRunner struct {
	stdin  io.Reader
	stdout io.Writer
}

func (r *RunRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Build and run a snippet",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "docker",
				Usage: "Run inside a container instead of on the host",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Override the run stage timeout",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log pipeline progress",
			},
		},
		Action: r.run,
	}
}

func (r *RunRunner) run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("expected exactly one source file (or - for stdin)")
	}
	code, err := readSource(cmd.Args().First(), r.stdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Bool("docker") {
		cfg.Executor.Kind = config.ExecutorDocker
	}
	if d := cmd.Duration("timeout"); d > 0 {
		cfg.Executor.RunTimeout = d
	}
	cfg.Logging.File = ""
	cfg.Logging.Level = "error"
	if cmd.Bool("verbose") {
		cfg.Logging.Level = "debug"
	}

	logger, closeLog, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	exec, closer, err := app.NewExecutor(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	cDim.Fprint(r.stdout, executor.RunningText)
	res := exec.Execute(ctx, executor.ExecutionRequest{Code: code})
	render(r.stdout, res)

	if !res.Success {
		return errRunFailed
	}
	return nil
}

// readSource reads the snippet from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

// render prints a result under the same headers the editor uses, coloured by
// outcome.
func render(w io.Writer, res executor.ExecutionResult) {
	if res.Success {
		cResult.Fprint(w, executor.ResultHeader)
	} else {
		cFailed.Fprint(w, executor.ErrorHeader)
	}
	fmt.Fprint(w, res.Output)
	if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
		fmt.Fprintln(w)
	}
	if res.ErrorMessage != "" && res.ErrorMessage != res.Output {
		cDim.Fprintf(w, "%s (%s, %s)\n", res.ErrorMessage, res.Status, res.Duration.Round(time.Millisecond))
	}
}
