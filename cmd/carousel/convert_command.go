package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"carousel/internal/api"
	"carousel/internal/archive"
	"carousel/internal/config"
	"carousel/internal/convert"
	"carousel/internal/deps"
	"carousel/internal/fileutil"
	"carousel/internal/logging"
	"carousel/internal/runner"
	"carousel/internal/session"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var archivePath string
	var local bool

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a presentation into per-slide PNG images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("inspect source %q: %w", source, err)
			}
			if local {
				return runConvertLocal(cmd, ctx, source, outputDir, archivePath)
			}
			return runConvertRemote(cmd, ctx, source, archivePath)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for exported images (local mode)")
	cmd.Flags().StringVar(&archivePath, "archive", "", "Write the slide archive to this path")
	cmd.Flags().BoolVar(&local, "local", false, "Convert in-process instead of calling the daemon")
	return cmd
}

func runConvertRemote(cmd *cobra.Command, ctx *commandContext, source, archivePath string) error {
	stdout := cmd.OutOrStdout()
	return ctx.withClient(func(client *api.Client) error {
		result, err := client.Convert(cmd.Context(), source)
		if err != nil {
			return err
		}
		printConversionResult(stdout, result)

		if strings.TrimSpace(archivePath) == "" {
			return nil
		}
		target, err := config.ExpandPath(archivePath)
		if err != nil {
			return fmt.Errorf("resolve archive path: %w", err)
		}
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("create archive file: %w", err)
		}
		if err := client.DownloadArchive(cmd.Context(), result.SessionID, f); err != nil {
			f.Close()
			os.Remove(target)
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close archive file: %w", err)
		}
		fmt.Fprintf(stdout, "Archive written to %s\n", target)
		return nil
	})
}

// runConvertLocal drives the pipeline in-process and exports the rendered
// images next to the source, so a daemon is not required.
func runConvertLocal(cmd *cobra.Command, ctx *commandContext, source, outputDir, archivePath string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if missing := missingConversionTools(cfg); len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}

	store, err := session.Open(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	pipeline, err := convert.NewPipeline(cfg, store, runner.New(runner.WithLogger(logging.NewNop())))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	result, err := pipeline.Convert(cmd.Context(), filepath.Base(source), f)
	f.Close()
	if err != nil {
		return err
	}
	// Local sessions exist only long enough to export their images.
	defer func() {
		_ = store.DeleteNow(context.Background(), result.Session.ID)
	}()

	target := strings.TrimSpace(outputDir)
	if target == "" {
		stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		target = filepath.Join(filepath.Dir(source), stem+"-slides")
	} else {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		target = expanded
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, slide := range result.Slides {
		dst := filepath.Join(target, archive.EntryName(slide.Ordinal))
		if err := fileutil.CopyFile(slide.Path, dst); err != nil {
			return fmt.Errorf("export slide %d: %w", slide.Ordinal, err)
		}
	}

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Converted %q into %d slides\n", localTitle(result.Session), len(result.Slides))
	fmt.Fprintf(stdout, "Images written to %s\n", target)

	if trimmed := strings.TrimSpace(archivePath); trimmed != "" {
		expanded, err := config.ExpandPath(trimmed)
		if err != nil {
			return fmt.Errorf("resolve archive path: %w", err)
		}
		if err := writeLocalArchive(cmd.Context(), store, result.Session.ID, expanded); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Archive written to %s\n", expanded)
	}
	return nil
}

func printConversionResult(out io.Writer, result *api.ConversionResult) {
	title := result.Title
	if title == "" {
		title = result.SourceFilename
	}
	fmt.Fprintf(out, "Converted %q into %d slides (session %s)\n", title, result.TotalSlides, shortID(result.SessionID))
	if result.ExpiresAt != "" {
		fmt.Fprintf(out, "Session expires at %s\n", formatTimestamp(result.ExpiresAt))
	}
	rows := make([][]string, 0, len(result.Slides))
	for _, slide := range result.Slides {
		rows = append(rows, []string{strconv.Itoa(slide.Ordinal), slide.Filename})
	}
	fmt.Fprintln(out, renderTable([]string{"Slide", "File"}, rows, 0))
}

func writeLocalArchive(ctx context.Context, store *session.Store, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	ar, err := archive.NewBuilder(store).Open(ctx, id)
	if err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if _, err := ar.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Close()
}

func missingConversionTools(cfg *config.Config) []string {
	var missing []string
	for _, status := range deps.CheckSystemDeps(cfg) {
		if status.Available || status.Optional {
			continue
		}
		missing = append(missing, status.Command)
	}
	return missing
}

func localTitle(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	if strings.TrimSpace(sess.Title) != "" {
		return sess.Title
	}
	return sess.SourceFilename
}
