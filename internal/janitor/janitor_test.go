package janitor_test

import (
	"context"
	"os"
	"testing"
	"time"

	"carousel/internal/janitor"
	"carousel/internal/testsupport"
)

func TestSweepOnceRemovesOnlyExpired(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	live := testsupport.NewReadySession(t, env.Store, 1)
	expired := testsupport.NewReadySession(t, env.Store, 1)
	if _, err := env.Store.MarkReady(ctx, expired.ID, 1, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	j := janitor.New(env.Config, env.Store)
	removed, err := j.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := env.Store.Resolve(ctx, live.ID); err != nil {
		t.Errorf("live session resolved with error %v", err)
	}
	if _, err := os.Stat(env.Store.Dir(expired.ID)); !os.IsNotExist(err) {
		t.Errorf("expired session directory still present")
	}
}

func TestSweepOnceEmptyStore(t *testing.T) {
	env := testsupport.NewEnv(t)

	j := janitor.New(env.Config, env.Store)
	removed, err := j.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestJanitorLoopSweeps(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	sess := testsupport.NewReadySession(t, env.Store, 1)
	if _, err := env.Store.MarkReady(ctx, sess.ID, 1, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	j := janitor.New(env.Config, env.Store)
	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer j.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		count, err := env.Store.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expired session was not swept by the loop")
}

func TestJanitorStartTwice(t *testing.T) {
	env := testsupport.NewEnv(t)

	j := janitor.New(env.Config, env.Store)
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer j.Stop()

	if err := j.Start(context.Background()); err == nil {
		t.Error("second Start() did not error")
	}
}

func TestJanitorStopIdempotent(t *testing.T) {
	env := testsupport.NewEnv(t)

	j := janitor.New(env.Config, env.Store)
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	j.Stop()
	j.Stop()

	if _, err := env.Store.Count(context.Background()); err != nil {
		t.Errorf("store unusable after Stop: %v", err)
	}
}
