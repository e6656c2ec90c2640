// Package janitor removes sessions whose retention deadline has passed.
// Expiry is recorded next to each session row, so the sweep is a periodic
// scan rather than a per-session timer and survives whatever happened to
// the process in between.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/metrics"
	"carousel/internal/session"
)

// Janitor owns the background sweep loop.
type Janitor struct {
	store    *session.Store
	logger   *slog.Logger
	recorder *metrics.Recorder
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the janitor.
type Option func(*Janitor)

// WithLogger attaches a logger for sweep diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logging.NewComponentLogger(logger, "janitor")
		}
	}
}

// WithRecorder attaches the metrics recorder.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(j *Janitor) {
		j.recorder = recorder
	}
}

// New constructs a janitor sweeping at the configured interval.
func New(cfg *config.Config, store *session.Store, opts ...Option) *Janitor {
	j := &Janitor{
		store:    store,
		logger:   logging.NewNop(),
		interval: time.Duration(cfg.Janitor.SweepInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start launches the sweep loop. It returns an error when already running.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return errors.New("janitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true
	j.wg.Add(1)
	go j.run(runCtx)
	return nil
}

// Stop terminates the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel := j.cancel
	j.running = false
	j.cancel = nil
	j.mu.Unlock()

	cancel()
	j.wg.Wait()
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(j.interval):
		}
		if _, err := j.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			j.logger.Error("session sweep failed", logging.Error(err))
		}
	}
}

// SweepOnce removes every expired session and refreshes the active session
// gauge. It is called by the loop and directly at daemon startup.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	removed, err := j.store.SweepExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		j.recorder.RecordSwept(len(removed))
		j.logger.Info("expired sessions removed", logging.Int("count", len(removed)))
		for _, id := range removed {
			j.logger.Debug("session expired", logging.String(logging.FieldSessionID, id))
		}
	}
	if count, err := j.store.Count(ctx); err == nil {
		j.recorder.SetActiveSessions(count)
	}
	return len(removed), nil
}
