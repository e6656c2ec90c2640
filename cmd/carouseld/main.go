package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"carousel/internal/config"
	"carousel/internal/convert"
	"carousel/internal/daemon"
	"carousel/internal/deps"
	"carousel/internal/janitor"
	"carousel/internal/logging"
	"carousel/internal/metrics"
	"carousel/internal/runner"
	"carousel/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", filepath.Join(cfg.Paths.LogDir, "carousel.log")},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	reportMissingDeps(logger, cfg)

	store, err := session.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	if removed, err := store.PurgeAll(ctx); err != nil {
		logger.Warn("purge leftover sessions", logging.Error(err))
	} else if removed > 0 {
		logger.Info("removed leftover session directories", logging.Int("count", removed))
	}

	recorder := metrics.NewRecorder()
	tools := runner.New(runner.WithLogger(logger))
	pipeline, err := convert.NewPipeline(cfg, store, tools,
		convert.WithLogger(logger),
		convert.WithRecorder(recorder),
	)
	if err != nil {
		logger.Error("create pipeline", logging.Error(err))
		os.Exit(1)
	}

	jan := janitor.New(cfg, store,
		janitor.WithLogger(logger),
		janitor.WithRecorder(recorder),
	)

	d, err := daemon.New(cfg, store, pipeline, jan, logger, daemon.WithRecorder(recorder))
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("carouseld shutting down")
	d.Stop()
}

func reportMissingDeps(logger *slog.Logger, cfg *config.Config) {
	for _, status := range deps.CheckSystemDeps(cfg) {
		if status.Available || status.Optional {
			continue
		}
		logger.Warn("required binary unavailable",
			logging.String(logging.FieldBinary, status.Command),
			logging.String("detail", status.Detail),
		)
	}
}
