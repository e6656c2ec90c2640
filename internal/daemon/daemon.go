package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"carousel/internal/config"
	"carousel/internal/convert"
	"carousel/internal/deps"
	"carousel/internal/janitor"
	"carousel/internal/logging"
	"carousel/internal/metrics"
	"carousel/internal/session"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *session.Store
	pipeline *convert.Pipeline
	janitor  *janitor.Janitor
	recorder *metrics.Recorder

	api *apiServer

	lockPath  string
	lock      *flock.Flock
	startedAt time.Time

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	ActiveSessions int
	IndexDBPath    string
	LockFilePath   string
	Dependencies   []deps.Status
	Directories    []deps.DirectoryStatus
}

// Option configures optional daemon behavior.
type Option func(*Daemon)

// WithRecorder supplies a metrics recorder; the daemon creates its own when
// none is given so /metrics always serves.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(d *Daemon) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

// LockPath reports where the daemon keeps its single-instance lock file.
func LockPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "carouseld.lock")
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *session.Store, pipeline *convert.Pipeline, jan *janitor.Janitor, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || pipeline == nil || jan == nil {
		return nil, errors.New("daemon requires config, store, pipeline, and janitor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: pipeline,
		janitor:  jan,
		recorder: metrics.NewRecorder(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the janitor and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another carousel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.janitor.Start(runCtx); err != nil {
		d.releaseStart(cancel)
		return fmt.Errorf("start janitor: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.janitor.Stop()
		d.releaseStart(cancel)
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("carousel daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
	)
	return nil
}

func (d *Daemon) releaseStart(cancel context.CancelFunc) {
	_ = d.lock.Unlock()
	cancel()
	d.cancel = nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.janitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("carousel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the API listen address, useful when binding to port 0.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status snapshot.
func (d *Daemon) Status(ctx context.Context) Status {
	active := 0
	if count, err := d.store.Count(ctx); err == nil {
		active = count
	}
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		ActiveSessions: active,
		IndexDBPath:    d.cfg.DatabasePath(),
		LockFilePath:   d.lockPath,
		Dependencies:   deps.CheckSystemDeps(d.cfg),
		Directories:    deps.CheckDataDirectories(d.cfg),
	}
}
