package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"carousel/internal/config"
	"carousel/internal/convert"
	"carousel/internal/daemon"
	"carousel/internal/janitor"
	"carousel/internal/logging"
	"carousel/internal/runner"
	"carousel/internal/session"
	"carousel/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *session.Store
	daemon     *daemon.Daemon
	server     string
	configPath string
}

// setupCLITestEnv starts a daemon on an ephemeral port and writes a config
// file in an isolated HOME so commands resolve the same directories.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := testsupport.NewEnv(t)

	homeDir := filepath.Join(testsupport.BaseDir(env.Config), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "carousel", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, env.Config)

	pipeline, err := convert.NewPipeline(env.Config, env.Store, runner.New(runner.WithLogger(logging.NewNop())))
	if err != nil {
		t.Fatalf("convert.NewPipeline: %v", err)
	}
	jan := janitor.New(env.Config, env.Store)
	d, err := daemon.New(env.Config, env.Store, pipeline, jan, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        env.Config,
		store:      env.Store,
		daemon:     d,
		server:     d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, server, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if server != "" {
		flags = append(flags, "--server", server)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeConversionStubs installs shell stand-ins for soffice and pdftoppm
// that produce a PDF and the requested number of page images, then prepends
// them to PATH.
func writeConversionStubs(t *testing.T, pages int) {
	t.Helper()
	binDir := t.TempDir()

	soffice := `#!/bin/sh
outdir=""
input=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --outdir)
      outdir="$2"
      shift 2
      ;;
    --headless|--convert-to|pdf)
      shift
      ;;
    *)
      input="$1"
      shift
      ;;
  esac
done
name=$(basename "$input")
printf 'pdf' > "$outdir/${name%.*}.pdf"
`
	var pdftoppm strings.Builder
	pdftoppm.WriteString("#!/bin/sh\nfor arg; do :; done\n")
	for page := 1; page <= pages; page++ {
		fmt.Fprintf(&pdftoppm, "printf 'page-%d' > \"${arg}-%d.png\"\n", page, page)
	}

	writeStub(t, filepath.Join(binDir, "soffice"), soffice)
	writeStub(t, filepath.Join(binDir, "pdftoppm"), pdftoppm.String())
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func writeStub(t *testing.T, path, script string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

// closedPort returns an address that nothing is listening on.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
