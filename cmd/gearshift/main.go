// Command gearshift runs a gearshift server configured from the environment.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/gearshift/gearshift"
	"github.com/gearshift/gearshift/middlewares"
	"github.com/gearshift/gearshift/pkg/config"
	"github.com/gearshift/gearshift/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Log,
		middlewares.RequestIDExtractor(),
		gearshift.VisitKeyExtractor(),
		gearshift.UserNameExtractor(),
	).With(slog.String("app", "gearshift"))

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	srv, err := build(ctx, cfg, log)
	if err != nil {
		return errors.Join(srv.close(ctx), err)
	}

	log.Info("starting server",
		slog.String("addr", cfg.Server.Address),
		slog.Bool("visits", cfg.Visit.Enabled),
		slog.Bool("identity", cfg.Identity.Enabled),
	)
	return srv.app.Run(cfg.Server.Address, append(srv.runOptions,
		gearshift.Logger(log),
		gearshift.ShutdownTimeout(cfg.Server.ShutdownTimeout),
	)...)
}
