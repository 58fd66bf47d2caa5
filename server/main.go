package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/meikuraledutech/canvas/internal/config"
	"github.com/meikuraledutech/canvas/internal/ctxlog"
	"github.com/meikuraledutech/canvas/postgres"
	"github.com/meikuraledutech/canvas/shortcut"
	"github.com/meikuraledutech/canvas/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.New(), os.Getenv("CANVAS_CONFIG"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ctxlog.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	st, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	table, err := shortcut.LoadFile(cfg.ShortcutsFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := newApp(deps{
		store:     st,
		shortcuts: table,
		registry:  reg,
		logger:    logger,
		monitors:  cfg.MonitorCacheSize,
	})
	if err != nil {
		return err
	}

	logger.Info("listening", "addr", cfg.Listen, "driver", cfg.Driver)
	return app.Listen(cfg.Listen)
}

func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	if cfg.Driver == config.DriverSQLite {
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(pool), pool.Close, nil
}
