// Command vibe runs C# snippets from the terminal and manages the vibecoding
// server.
//
//	vibe run hello.cs            build and run a file
//	echo '...' | vibe run -      read the snippet from stdin
//	vibe serve                   start the HTTP service
//	vibe hash-password           print a bcrypt hash for PASSWORD_HASH
//	vibe token                   issue an API token offline
package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

var cError = color.New(color.FgRed)

func main() {
	cmd := &cli.Command{
		Name:  "vibe",
		Usage: "Compile and run C# snippets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file (defaults to $VIBE_CONFIG)",
			},
		},
		Commands: []*cli.Command{
			runHwd.cmd(),
			serveHwd.cmd(),
			tokenHwd.cmd(),
			hashHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			cError.Fprintf(os.Stderr, "vibe: %s\n", msg)
		}
		os.Exit(1)
	}
}
