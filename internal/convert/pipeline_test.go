package convert_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carousel/internal/convert"
	"carousel/internal/services"
	"carousel/internal/testsupport"
)

// stubTools stands in for the runner: the pdf step drops a PDF into the
// session directory and the raster step drops numbered PNGs, the same
// side effects the real binaries have.
type stubTools struct {
	pages     int
	pdfName   string
	omitPDF   bool
	failStep  string
	failErr   error
	steps     []string
	rasterPDF string
}

func (s *stubTools) Run(ctx context.Context, step, binary string, timeout time.Duration, args ...string) error {
	s.steps = append(s.steps, step)
	if step == s.failStep {
		if s.failErr != nil {
			return s.failErr
		}
		return services.Wrap(services.ErrExternalTool, "runner", step, "exit status 1", nil)
	}
	switch step {
	case "pdf":
		if s.omitPDF {
			return nil
		}
		dir := outdirArg(args)
		if dir == "" {
			return fmt.Errorf("no --outdir in args %v", args)
		}
		name := s.pdfName
		if name == "" {
			name = "deck.pdf"
		}
		return os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4 stub"), 0o644)
	case "raster":
		s.rasterPDF = args[len(args)-2]
		prefix := args[len(args)-1]
		for i := 1; i <= s.pages; i++ {
			path := fmt.Sprintf("%s-%d.png", prefix, i)
			if err := os.WriteFile(path, testsupport.PNGBytes(), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func outdirArg(args []string) string {
	for i, arg := range args {
		if arg == "--outdir" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newPipeline(t *testing.T, tools convert.ToolRunner) (*convert.Pipeline, *testsupport.Env) {
	t.Helper()
	env := testsupport.NewEnv(t)
	pipeline, err := convert.NewPipeline(env.Config, env.Store, tools)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return pipeline, env
}

func TestPipelineConvertSuccess(t *testing.T) {
	tools := &stubTools{pages: 3}
	pipeline, env := newPipeline(t, tools)

	result, err := pipeline.Convert(context.Background(), "quarterly_review.pptx", strings.NewReader("deck bytes"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	sess := result.Session
	if sess.Title != "Quarterly Review" {
		t.Errorf("title = %q, want %q", sess.Title, "Quarterly Review")
	}
	if sess.SourceFilename != "quarterly_review.pptx" {
		t.Errorf("source filename = %q", sess.SourceFilename)
	}
	if sess.SlideCount != 3 {
		t.Errorf("slide count = %d, want 3", sess.SlideCount)
	}
	if sess.Status != "ready" {
		t.Errorf("status = %q, want ready", sess.Status)
	}

	retention := time.Duration(env.Config.Convert.RetentionMinutes) * time.Minute
	until := time.Until(sess.ExpiresAt)
	if until < retention-time.Minute || until > retention+time.Minute {
		t.Errorf("expires in %v, want about %v", until, retention)
	}

	if len(result.Slides) != 3 {
		t.Fatalf("slides = %d, want 3", len(result.Slides))
	}
	for i, slide := range result.Slides {
		if slide.Ordinal != i+1 {
			t.Errorf("slide %d ordinal = %d", i, slide.Ordinal)
		}
		want := fmt.Sprintf("slide-%d.png", i+1)
		if slide.Name != want {
			t.Errorf("slide %d name = %q, want %q", i, slide.Name, want)
		}
		if _, err := os.Stat(slide.Path); err != nil {
			t.Errorf("slide file missing: %v", err)
		}
	}

	dir := env.Store.Dir(sess.ID)
	for _, intermediate := range []string{"deck.pptx", "deck.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, intermediate)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("intermediate %s still present", intermediate)
		}
	}

	if got := []string{"pdf", "raster"}; len(tools.steps) != 2 || tools.steps[0] != got[0] || tools.steps[1] != got[1] {
		t.Errorf("steps = %v, want %v", tools.steps, got)
	}
}

func TestPipelineRejectsDisallowedExtension(t *testing.T) {
	tools := &stubTools{pages: 1}
	pipeline, env := newPipeline(t, tools)

	_, err := pipeline.Convert(context.Background(), "notes.txt", strings.NewReader("text"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Convert() error = %v, want validation error", err)
	}
	if len(tools.steps) != 0 {
		t.Errorf("tools ran %v before validation", tools.steps)
	}
	assertNoSessions(t, env)
}

func TestPipelineConverterFailureCleansUp(t *testing.T) {
	tools := &stubTools{failStep: "pdf"}
	pipeline, env := newPipeline(t, tools)

	_, err := pipeline.Convert(context.Background(), "deck.odp", strings.NewReader("deck"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Convert() error = %v, want external tool error", err)
	}
	assertNoSessions(t, env)
}

func TestPipelineRasterizerFailureCleansUp(t *testing.T) {
	tools := &stubTools{failStep: "raster"}
	pipeline, env := newPipeline(t, tools)

	_, err := pipeline.Convert(context.Background(), "deck.pptx", strings.NewReader("deck"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Convert() error = %v, want external tool error", err)
	}
	assertNoSessions(t, env)
}

func TestPipelineNoPDFProduced(t *testing.T) {
	tools := &stubTools{omitPDF: true}
	pipeline, env := newPipeline(t, tools)

	_, err := pipeline.Convert(context.Background(), "deck.ppt", strings.NewReader("deck"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Convert() error = %v, want external tool error", err)
	}
	if !strings.Contains(err.Error(), "no PDF") {
		t.Errorf("error %q does not mention missing PDF", err)
	}
	assertNoSessions(t, env)
}

func TestPipelineZeroImagesCleansUp(t *testing.T) {
	tools := &stubTools{pages: 0}
	pipeline, env := newPipeline(t, tools)

	_, err := pipeline.Convert(context.Background(), "deck.pptx", strings.NewReader("deck"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Convert() error = %v, want external tool error", err)
	}
	if !strings.Contains(err.Error(), "no images produced") {
		t.Errorf("error %q does not mention empty output", err)
	}
	assertNoSessions(t, env)
}

func TestPipelineAdoptsRenamedPDF(t *testing.T) {
	tools := &stubTools{pages: 2, pdfName: "Quarterly Review.pdf"}
	pipeline, _ := newPipeline(t, tools)

	result, err := pipeline.Convert(context.Background(), "deck.pptx", strings.NewReader("deck"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if result.Session.SlideCount != 2 {
		t.Errorf("slide count = %d, want 2", result.Session.SlideCount)
	}
	if filepath.Base(tools.rasterPDF) != "deck.pdf" {
		t.Errorf("rasterized %q, want the adopted deck.pdf", tools.rasterPDF)
	}
}

func TestPipelineExtensionCaseInsensitive(t *testing.T) {
	tools := &stubTools{pages: 1}
	pipeline, _ := newPipeline(t, tools)

	result, err := pipeline.Convert(context.Background(), "DECK.PPTX", strings.NewReader("deck"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if result.Session.SlideCount != 1 {
		t.Errorf("slide count = %d, want 1", result.Session.SlideCount)
	}
}

func assertNoSessions(t *testing.T, env *testsupport.Env) {
	t.Helper()
	count, err := env.Store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("session rows = %d, want 0", count)
	}
	entries, err := os.ReadDir(env.Store.Root())
	if err != nil {
		t.Fatalf("ReadDir(root) error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("session directories left behind: %d", len(entries))
	}
}
