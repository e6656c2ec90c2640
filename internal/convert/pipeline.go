package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/metrics"
	"carousel/internal/services"
	"carousel/internal/session"
)

// ToolRunner executes one external tool invocation with a bounded timeout.
type ToolRunner interface {
	Run(ctx context.Context, step, binary string, timeout time.Duration, args ...string) error
}

// Result carries a finished conversion: the ready session row and its
// ordered slide files.
type Result struct {
	Session *session.Session
	Slides  []session.SlideFile
}

// Pipeline turns an uploaded presentation into a session directory of
// per-page PNG files. Each call is independent; the only shared state is
// the sessions root, and every request works in its own directory.
type Pipeline struct {
	cfg      *config.Config
	store    *session.Store
	tools    ToolRunner
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger for pipeline diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "pipeline")
		}
	}
}

// WithRecorder attaches the metrics recorder.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// NewPipeline constructs a conversion pipeline.
func NewPipeline(cfg *config.Config, store *session.Store, tools ToolRunner, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if store == nil {
		return nil, errors.New("session store required")
	}
	if tools == nil {
		return nil, errors.New("tool runner required")
	}
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		tools:  tools,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Convert runs the full pipeline: validate the upload, write it into a fresh
// session, convert to PDF, rasterize each page to PNG, keep only the final
// images, and schedule the session's expiry. Any failure removes the session
// directory before returning so failed attempts leave nothing behind.
func (p *Pipeline) Convert(ctx context.Context, originalFilename string, payload io.Reader) (*Result, error) {
	started := time.Now()
	result, err := p.convert(ctx, originalFilename, payload)
	elapsed := time.Since(started)
	p.recorder.RecordConversion(outcomeFor(err), elapsed)
	return result, err
}

func (p *Pipeline) convert(ctx context.Context, originalFilename string, payload io.Reader) (*Result, error) {
	ext := normalizeExtension(originalFilename)
	if !p.cfg.ExtensionAllowed(ext) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "accept upload",
			fmt.Sprintf("file type %q not allowed", displayExtension(ext)), nil)
	}

	id := session.NewID()
	title := DeriveTitle(originalFilename)
	sourceName := filepath.Base(originalFilename)
	ctx = services.WithSessionID(ctx, id)
	log := p.logger.With(logging.String(logging.FieldSessionID, id))

	if _, err := p.store.Create(ctx, id, title, sourceName); err != nil {
		return nil, services.Wrap(services.ErrInternal, "pipeline", "create session", "", err)
	}
	dir, err := p.store.CreateDir(id)
	if err != nil {
		p.cleanup(id, log)
		return nil, err
	}

	workPath := filepath.Join(dir, "deck."+ext)
	written, err := writePayload(workPath, payload)
	if err != nil {
		p.cleanup(id, log)
		return nil, services.Wrap(services.ErrInternal, "pipeline", "store upload", "", err)
	}
	p.recorder.RecordUploadBytes(written)
	log.Info("conversion started",
		logging.String(logging.FieldSource, sourceName),
		logging.Int64("bytes", written),
	)

	pdfPath, err := p.renderPDF(ctx, dir, workPath)
	if err != nil {
		p.cleanup(id, log)
		return nil, err
	}

	if err := p.rasterize(ctx, dir, pdfPath); err != nil {
		p.cleanup(id, log)
		return nil, err
	}

	slides, err := p.store.SlideFiles(id)
	if err != nil {
		p.cleanup(id, log)
		return nil, err
	}

	removeIntermediates(log, workPath, pdfPath)

	if len(slides) == 0 {
		p.cleanup(id, log)
		return nil, services.Wrap(services.ErrExternalTool, "pipeline", "rasterize", "no images produced", nil)
	}

	expiresAt := time.Now().Add(p.retention())
	ready, err := p.store.MarkReady(ctx, id, len(slides), expiresAt)
	if err != nil {
		p.cleanup(id, log)
		return nil, services.Wrap(services.ErrInternal, "pipeline", "finalize session", "", err)
	}

	log.Info("conversion finished",
		logging.Int(logging.FieldSlides, len(slides)),
		logging.String("expires_at", expiresAt.UTC().Format(time.RFC3339)),
	)
	return &Result{Session: ready, Slides: slides}, nil
}

// renderPDF runs the document converter and returns the produced PDF path.
// Converters name their output after the input; when the expected name is
// absent the directory is scanned for any PDF and the best candidate is
// renamed into place.
func (p *Pipeline) renderPDF(ctx context.Context, dir, workPath string) (string, error) {
	stepStart := time.Now()
	err := p.tools.Run(ctx, "pdf", p.cfg.Convert.SofficeBinary, p.convertTimeout(),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", dir,
		workPath,
	)
	p.recorder.RecordStep("pdf", time.Since(stepStart))
	if err != nil {
		return "", err
	}

	expected := strings.TrimSuffix(workPath, filepath.Ext(workPath)) + ".pdf"
	if _, statErr := os.Stat(expected); statErr == nil {
		return expected, nil
	}

	candidate, found, scanErr := newestPDF(dir)
	if scanErr != nil {
		return "", services.Wrap(services.ErrInternal, "pipeline", "locate pdf", "", scanErr)
	}
	if !found {
		return "", services.Wrap(services.ErrExternalTool, "pipeline", "convert to pdf", "conversion produced no PDF", nil)
	}
	if err := os.Rename(candidate, expected); err != nil {
		return "", services.Wrap(services.ErrInternal, "pipeline", "locate pdf", "", err)
	}
	return expected, nil
}

// rasterize renders every PDF page as slide-N.png in the session directory.
func (p *Pipeline) rasterize(ctx context.Context, dir, pdfPath string) error {
	stepStart := time.Now()
	err := p.tools.Run(ctx, "raster", p.cfg.Convert.PdftoppmBinary, p.rasterTimeout(),
		"-png",
		"-r", fmt.Sprintf("%d", p.cfg.Convert.RasterDPI),
		pdfPath,
		filepath.Join(dir, "slide"),
	)
	p.recorder.RecordStep("raster", time.Since(stepStart))
	return err
}

// cleanup removes a failed conversion's session synchronously. It runs on a
// background context so a canceled request cannot leave partial output
// behind.
func (p *Pipeline) cleanup(id string, log *slog.Logger) {
	if err := p.store.DeleteNow(context.Background(), id); err != nil {
		log.Warn("failed to clean up session", logging.Error(err))
	}
}

func (p *Pipeline) retention() time.Duration {
	return time.Duration(p.cfg.Convert.RetentionMinutes) * time.Minute
}

func (p *Pipeline) convertTimeout() time.Duration {
	return time.Duration(p.cfg.Convert.ConvertTimeout) * time.Second
}

func (p *Pipeline) rasterTimeout() time.Duration {
	return time.Duration(p.cfg.Convert.RasterTimeout) * time.Second
}

func normalizeExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func displayExtension(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return "." + ext
}

func writePayload(path string, payload io.Reader) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	written, copyErr := io.Copy(file, payload)
	closeErr := file.Close()
	if copyErr != nil {
		return written, copyErr
	}
	return written, closeErr
}

// newestPDF returns the most recently modified PDF in dir.
func newestPDF(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}
	var (
		best     string
		bestTime time.Time
		found    bool
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !found || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, entry.Name())
			bestTime = info.ModTime()
			found = true
		}
	}
	return best, found, nil
}

func removeIntermediates(log *slog.Logger, paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove intermediate file",
				logging.String("path", filepath.Base(path)),
				logging.Error(err),
			)
		}
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, services.ErrValidation):
		return metrics.OutcomeRejected
	case errors.Is(err, services.ErrExternalTool), errors.Is(err, services.ErrTimeout):
		return metrics.OutcomeToolFailed
	default:
		return metrics.OutcomeInternal
	}
}
