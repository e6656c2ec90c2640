package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

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

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the carousel daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeProcess(cmd.Context(), ctx)
		},
	}
}

func runServeProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("carousel-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update carousel.log link: %v\n", err)
	}
	retained := []logging.RetentionTarget{{
		Dir:     cfg.Paths.LogDir,
		Pattern: "carousel-*.log",
		Exclude: map[string]struct{}{filepath.Base(logPath): {}},
	}}
	if err := logging.CleanupOldLogs(retained, cfg.Logging.RetentionDays); err != nil {
		logger.Warn("prune old logs", logging.Error(err))
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "carousel.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	warnMissingDependencies(logger, cfg)

	store, err := session.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}
	defer store.Close()

	// Sessions never survive a restart; clear out whatever the previous
	// run left behind before accepting uploads.
	removed, err := store.PurgeAll(signalCtx)
	if err != nil {
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
		return fmt.Errorf("create pipeline: %w", err)
	}
	jan := janitor.New(cfg, store,
		janitor.WithLogger(logger),
		janitor.WithRecorder(recorder),
	)

	d, err := daemon.New(cfg, store, pipeline, jan, logger, daemon.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("carousel daemon shutting down")
	d.Stop()
	return nil
}

func warnMissingDependencies(logger *slog.Logger, cfg *config.Config) {
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

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "carousel.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
