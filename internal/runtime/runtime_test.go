package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	cfgpkg "github.com/rzbill/detailq/internal/config"
	"github.com/rzbill/detailq/internal/detail"
	"github.com/rzbill/detailq/internal/journal"
)

func openRuntime(t *testing.T, cfg cfgpkg.Config) *Runtime {
	t.Helper()
	rt, err := Open(Options{Config: cfg, JournalDir: filepath.Join(t.TempDir(), "journal")})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	rt := openRuntime(t, cfgpkg.Default())
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Journal() == nil {
		t.Fatalf("journal not wired")
	}
}

func TestOpenSessionUsesConfig(t *testing.T) {
	work := filepath.Join(t.TempDir(), "detail.work")
	rec := "\x04acct\n\tTimestamp=1\n\n"
	if err := os.WriteFile(work, []byte(rec), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := cfgpkg.Default()
	cfg.WorkFile = work
	cfg.Priorities = map[string]string{"4": "now"}
	rt := openRuntime(t, cfg)

	s, err := rt.OpenSession(work)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer s.ForceClose()
	buf := make([]byte, cfg.BufferSize)
	leftover := 0
	r, err := s.Read(buf, &leftover)
	if err != nil || r == nil {
		t.Fatalf("read: %v %v", r, err)
	}
	if r.Priority != detail.PriorityNow {
		t.Fatalf("configured priority table not applied: %v", r.Priority)
	}
}

func TestOpenSessionRejectsBadConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	rt := openRuntime(t, cfg)
	rt.config.Fsync = "sometimes"
	if _, err := rt.OpenSession("x"); err == nil {
		t.Fatalf("expected fsync error")
	}
}

func TestOpenWithIntervalJournal(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.JournalFsync = "interval"
	cfg.JournalFsyncIntervalMs = 2
	rt := openRuntime(t, cfg)
	if err := rt.Journal().CommitCursor("w", journal.Checkpoint{Consumed: 1, FileSize: 2}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cp, ok, err := rt.Journal().Cursor("w")
	if err != nil || !ok || cp.Consumed != 1 {
		t.Fatalf("cursor: %+v %v %v", cp, ok, err)
	}

	cfg.JournalFsync = "sometimes"
	if _, err := Open(Options{Config: cfg, JournalDir: t.TempDir()}); err == nil {
		t.Fatalf("expected journal fsync error")
	}
}
