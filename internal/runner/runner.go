package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"carousel/internal/logging"
	"carousel/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger attaches a logger for per-invocation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "runner")
		}
	}
}

// Runner invokes external conversion tools with a timeout and classifies
// every failure mode as an external tool error. Callers get the captured
// output tail inside the error detail; stdout is never parsed for results,
// the tools communicate through files.
type Runner struct {
	exec   Executor
	logger *slog.Logger
}

// New constructs a Runner backed by real subprocesses.
func New(opts ...Option) *Runner {
	r := &Runner{
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes binary with args, bounded by timeout when positive. The step
// name labels errors and log records. Non-zero exits, missing executables,
// and timeout expiry all surface as services.ErrExternalTool so callers
// treat every tool failure the same way; timeouts additionally carry
// services.ErrTimeout for observability.
func (r *Runner) Run(ctx context.Context, step, binary string, timeout time.Duration, args ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return services.Wrap(services.ErrConfiguration, "runner", step, "binary not configured", nil)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tail := newTailBuffer(tailLimit)
	started := time.Now()
	err := r.exec.Run(runCtx, binary, args, tail.Append)
	elapsed := time.Since(started)

	if err == nil {
		r.logger.Debug("tool finished",
			logging.String("step", step),
			logging.String(logging.FieldBinary, binary),
			logging.Duration(logging.FieldDuration, elapsed),
		)
		return nil
	}

	r.logger.Warn("tool failed",
		logging.String("step", step),
		logging.String(logging.FieldBinary, binary),
		logging.Duration(logging.FieldDuration, elapsed),
		logging.Error(err),
	)

	detail := fmt.Sprintf("%s failed", step)
	if out := tail.String(); out != "" {
		detail = fmt.Sprintf("%s failed: %s", step, out)
	}

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		timeoutErr := services.Wrap(services.ErrTimeout, "runner", step,
			fmt.Sprintf("%s timed out after %s", binary, timeout), nil)
		return fmt.Errorf("%w: %w", services.ErrExternalTool, timeoutErr)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrExternalTool, "runner", step,
			fmt.Sprintf("%s not found on PATH", binary), err)
	}
	return services.Wrap(services.ErrExternalTool, "runner", step, detail, err)
}

// tailLimit bounds how much tool output is retained for error messages.
const tailLimit = 4 * 1024

// tailBuffer keeps the most recent output lines within a byte budget.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	size  int
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Append(line string) {
	line = strings.TrimRight(line, "\r\n")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	b.size += len(line) + 1
	for b.size > b.limit && len(b.lines) > 1 {
		b.size -= len(b.lines[0]) + 1
		b.lines = b.lines[1:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	joined := strings.TrimSpace(strings.Join(b.lines, " | "))
	if len(joined) > b.limit {
		joined = joined[len(joined)-b.limit:]
	}
	return joined
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
