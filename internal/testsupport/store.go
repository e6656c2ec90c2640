package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"carousel/internal/config"
	"carousel/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewReadySession creates a ready session with the requested number of slide
// PNG files on disk and a deadline one hour out.
func NewReadySession(t testing.TB, store *session.Store, slides int) *session.Session {
	t.Helper()

	ctx := context.Background()
	id := session.NewID()
	if _, err := store.Create(ctx, id, "Test Deck", "deck.pptx"); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	dir, err := store.CreateDir(id)
	if err != nil {
		t.Fatalf("store.CreateDir: %v", err)
	}
	for i := 1; i <= slides; i++ {
		WritePNG(t, filepath.Join(dir, fmt.Sprintf("deck-%d.png", i)))
	}
	sess, err := store.MarkReady(ctx, id, slides, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("store.MarkReady: %v", err)
	}
	return sess
}

// WritePNG writes a minimal valid PNG file to path.
func WritePNG(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, PNGBytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// PNGBytes returns the smallest well-formed PNG payload: a 1x1 gray pixel.
func PNGBytes() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x00, 0x00, 0x00, 0x00, 0x3a, 0x7e, 0x9b,
		0x55, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9c, 0x63, 0x68, 0x00, 0x00, 0x00,
		0x82, 0x00, 0x81, 0xdd, 0x43, 0x6a, 0xf4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
		0x42, 0x60, 0x82,
	}
}
