package main

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"carousel/internal/api"
	"carousel/internal/testsupport"
)

func TestSessionsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sessions", "list"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	requireContains(t, out, "No active sessions")
}

func TestSessionsListShowsSeededSession(t *testing.T) {
	env := setupCLITestEnv(t)
	sess := testsupport.NewReadySession(t, env.store, 3)

	out, _, err := runCLI(t, []string{"sessions", "list"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	requireContains(t, out, "Test Deck")
	requireContains(t, out, shortID(sess.ID))
	requireContains(t, out, "ready")
}

func TestSessionsListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewReadySession(t, env.store, 2)

	out, _, err := runCLI(t, []string{"sessions", "list", "--json"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("sessions list --json: %v", err)
	}
	var resp api.SessionListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(resp.Sessions))
	}
	if resp.Sessions[0].TotalSlides != 2 {
		t.Fatalf("expected 2 slides, got %d", resp.Sessions[0].TotalSlides)
	}
}

func TestSessionsPurgeCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	sess := testsupport.NewReadySession(t, env.store, 2)

	out, _, err := runCLI(t, []string{"sessions", "purge", sess.ID}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("sessions purge: %v", err)
	}
	requireContains(t, out, "purged")
	if _, err := os.Stat(env.store.Dir(sess.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected session directory removed, stat err=%v", err)
	}
}

func TestConvertRemoteWritesArchive(t *testing.T) {
	writeConversionStubs(t, 2)
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "roadmap 2026.pptx")
	if err := os.WriteFile(source, []byte("deck"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	archivePath := filepath.Join(t.TempDir(), "slides.zip")

	out, _, err := runCLI(t, []string{"convert", source, "--archive", archivePath}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, out)
	}
	requireContains(t, out, "Roadmap 2026")
	requireContains(t, out, "into 2 slides")
	requireContains(t, out, "Archive written to")

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 archive entries, got %d", len(zr.File))
	}
	if zr.File[0].Name != "slide-001.png" {
		t.Fatalf("unexpected first entry %q", zr.File[0].Name)
	}
}

func TestConvertLocalExportsImages(t *testing.T) {
	writeConversionStubs(t, 2)
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "Quarterly Review.pptx")
	if err := os.WriteFile(source, []byte("deck"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "out")

	out, _, err := runCLI(t, []string{"convert", source, "--local", "--output", outDir}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("convert --local: %v\n%s", err, out)
	}
	requireContains(t, out, "Quarterly Review")
	requireContains(t, out, "Images written to "+outDir)

	for _, name := range []string{"slide-001.png", "slide-002.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected exported %s: %v", name, err)
		}
	}

	count, err := env.store.Count(context.Background())
	if err != nil {
		t.Fatalf("store.Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected local session to be deleted after export, found %d", count)
	}
}

func TestConvertRejectsMissingSource(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"convert", filepath.Join(t.TempDir(), "absent.pptx")}, env.server, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	requireContains(t, err.Error(), "inspect source")
}

func TestStatusAgainstRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
	requireContains(t, out, "Session index")
	requireContains(t, out, "== Dependencies ==")
}

func TestStatusFallsBackWhenDaemonUnreachable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, closedPort(t), env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "== Directories ==")
}

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !status.Running {
		t.Fatalf("expected running daemon in %s", out)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
}

func TestSessionsListUnreachableDaemonFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"sessions", "list"}, closedPort(t), env.configPath)
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "carousel serve")
}
