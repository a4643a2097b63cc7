package app

import (
	"context"
	"log/slog"

	"github.com/sakif/vibecoding/internal/config"
	"github.com/sakif/vibecoding/internal/metrics"
	"github.com/sakif/vibecoding/internal/server"
)

// Serve runs the HTTP service until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m := metrics.New()

	exec, closer, err := NewExecutor(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to release executor", slog.String("error", err.Error()))
		}
	}()

	srv, err := server.New(ctx, cfg, logger, exec, m)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
