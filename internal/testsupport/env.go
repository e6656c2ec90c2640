package testsupport

import (
	"testing"

	"carousel/internal/config"
	"carousel/internal/session"
)

// Env bundles the pieces most component tests need: a config rooted in a
// temporary directory and an open session store on top of it.
type Env struct {
	Config *config.Config
	Store  *session.Store
}

// NewEnv builds a test environment with cleanup registered on t.
func NewEnv(t testing.TB, opts ...ConfigOption) *Env {
	t.Helper()

	cfg := NewConfig(t, opts...)
	return &Env{
		Config: cfg,
		Store:  MustOpenStore(t, cfg),
	}
}
