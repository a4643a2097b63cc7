// Package main is the entry point for the vibecoding server.
//
// Configuration comes from an optional YAML file ($VIBE_CONFIG) and environment
// variables; see internal/config. Stop the server with Ctrl+C or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/vibecoding/internal/app"
	"github.com/sakif/vibecoding/internal/config"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger, closeLog, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog.Close()
	slog.SetDefault(logger)

	// === 3. SERVE UNTIL SIGNALLED ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		closeLog.Close()
		os.Exit(1)
	}
}
