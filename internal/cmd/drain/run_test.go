package drainrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/detailq/internal/config"
	"github.com/rzbill/detailq/internal/detail"
	"github.com/rzbill/detailq/internal/journal"
	pebblestore "github.com/rzbill/detailq/internal/storage/pebble"
	logpkg "github.com/rzbill/detailq/pkg/log"
)

const detailFile = "\x01auth\n\tTimestamp=1\n\n" +
	"\x04acct\n\tTimestamp=2\n\n" +
	"\x04old\n\tDonestamp=3\n\n" +
	"\x0cno marker\n\n"

func setup(t *testing.T, content string) (cfgpkg.Config, string) {
	t.Helper()
	dir := t.TempDir()
	work := filepath.Join(dir, "detail.work")
	if content != "" {
		if err := os.WriteFile(work, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	cfg := cfgpkg.Default()
	cfg.WorkFile = work
	cfg.PollMinMs = 1
	cfg.PollMaxMs = 5
	return cfg, filepath.Join(dir, "journal")
}

func readJournal(t *testing.T, dir, work string) ([]journal.AckEntry, journal.Checkpoint, bool) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{Dir: dir})
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer db.Close()
	j := journal.New(db, journal.Options{})
	entries, err := j.List(work, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	cp, ok, err := j.Cursor(work)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	return entries, cp, ok
}

func TestRunPatchesAndJournals(t *testing.T) {
	cfg, jdir := setup(t, detailFile)
	var seen []detail.Priority
	stats, err := Run(context.Background(), Options{
		Config:     cfg,
		JournalDir: jdir,
		Logger:     logpkg.NewNopLogger(),
		Handler: func(_ context.Context, req detail.Request) error {
			seen = append(seen, req.Priority)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Delivered != 3 || stats.Patched != 2 || stats.Suppressed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Consumed != int64(len(detailFile)) || stats.FileSize != stats.Consumed {
		t.Fatalf("file not fully consumed: %+v", stats)
	}
	want := []detail.Priority{detail.PriorityHigh, detail.PriorityLow, detail.PriorityNow}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("priority %d: got %v want %v", i, seen[i], want[i])
		}
	}

	b, err := os.ReadFile(cfg.WorkFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Count(string(b), "\tDonestamp") != 3 || strings.Contains(string(b), "\tTimestamp") {
		t.Fatalf("records not patched:\n%q", b)
	}

	entries, cp, ok := readJournal(t, jdir, cfg.WorkFile)
	if len(entries) != 3 {
		t.Fatalf("want 3 journal entries, got %d", len(entries))
	}
	if entries[0].Patched || entries[0].DoneOffset != detail.NoDoneOffset {
		t.Fatalf("newest entry is the unmarked record: %+v", entries[0])
	}
	if !entries[2].Patched || entries[2].DoneOffset != 7 {
		t.Fatalf("oldest entry should be the first record: %+v", entries[2])
	}
	if !ok || cp.Consumed != int64(len(detailFile)) {
		t.Fatalf("checkpoint %+v %v", cp, ok)
	}

	// A second drain finds nothing left to do.
	stats, err = Run(context.Background(), Options{Config: cfg, JournalDir: jdir, Logger: logpkg.NewNopLogger()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Delivered != 1 || stats.Patched != 0 {
		t.Fatalf("only the record without a marker is delivered again: %+v", stats)
	}
}

func TestRunDryRunLeavesFile(t *testing.T) {
	cfg, jdir := setup(t, detailFile)
	stats, err := Run(context.Background(), Options{Config: cfg, JournalDir: jdir, DryRun: true, Logger: logpkg.NewNopLogger()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Delivered != 3 || stats.Suppressed != 3 || stats.Patched != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	b, _ := os.ReadFile(cfg.WorkFile)
	if string(b) != detailFile {
		t.Fatalf("dry run modified the file")
	}
	entries, _, ok := readJournal(t, jdir, cfg.WorkFile)
	if len(entries) != 0 || ok {
		t.Fatalf("dry run must not journal")
	}
}

func TestRunHandlerErrorLeavesRecordUnmarked(t *testing.T) {
	cfg, jdir := setup(t, detailFile)
	calls := 0
	stats, err := Run(context.Background(), Options{
		Config:     cfg,
		JournalDir: jdir,
		Logger:     logpkg.NewNopLogger(),
		Handler: func(context.Context, detail.Request) error {
			calls++
			if calls == 1 {
				return errors.New("upstream down")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Suppressed != 1 || stats.Patched != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	b, _ := os.ReadFile(cfg.WorkFile)
	if !strings.HasPrefix(string(b), "\x01auth\n\tTimestamp=1") {
		t.Fatalf("failed record should stay unmarked: %q", b)
	}
	entries, _, _ := readJournal(t, jdir, cfg.WorkFile)
	if entries[2].Error != "upstream down" || !entries[2].Suppressed {
		t.Fatalf("failure not journaled: %+v", entries[2])
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg, jdir := setup(t, detailFile)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := Run(ctx, Options{Config: cfg, JournalDir: jdir, Logger: logpkg.NewNopLogger()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Delivered != 0 {
		t.Fatalf("cancelled drain delivered %d records", stats.Delivered)
	}
}

func TestRunWaitsForFile(t *testing.T) {
	cfg, jdir := setup(t, "")
	go func() {
		time.Sleep(20 * time.Millisecond)
		tmp := cfg.WorkFile + ".tmp"
		_ = os.WriteFile(tmp, []byte(detailFile), 0o644)
		_ = os.Rename(tmp, cfg.WorkFile)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := Run(ctx, Options{Config: cfg, JournalDir: jdir, WaitForFile: true, Logger: logpkg.NewNopLogger()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Delivered != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunMissingFileFails(t *testing.T) {
	cfg, jdir := setup(t, "")
	if _, err := Run(context.Background(), Options{Config: cfg, JournalDir: jdir, Logger: logpkg.NewNopLogger()}); err == nil {
		t.Fatalf("expected error for missing work file")
	}
	cfg.WorkFile = ""
	if _, err := Run(context.Background(), Options{Config: cfg, JournalDir: jdir}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunLogsCarrySessionID(t *testing.T) {
	cfg, jdir := setup(t, detailFile)
	var out bytes.Buffer
	logger := logpkg.NewLogger(
		logpkg.WithLevel(logpkg.DebugLevel),
		logpkg.WithFormatter(&logpkg.TextFormatter{DisableTimestamp: true}),
		logpkg.WithOutput(logpkg.NewWriterOutput(&out)),
	)
	if _, err := Run(context.Background(), Options{Config: cfg, JournalDir: jdir, Logger: logger}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "record delivered") && strings.Contains(line, "offset=") && !strings.Contains(line, "session_id=") {
			t.Fatalf("delivery log without session id: %q", line)
		}
	}
	if !strings.Contains(out.String(), "session_id=") {
		t.Fatalf("no session id logged:\n%s", out.String())
	}
}

func TestRunStopsOnSIGTERM(t *testing.T) {
	cfg, jdir := setup(t, "")
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := Run(ctx, Options{Config: cfg, JournalDir: jdir, WaitForFile: true, Logger: logpkg.NewNopLogger()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want cancellation from SIGTERM, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("stopped by timeout, not by the signal")
	}
}
