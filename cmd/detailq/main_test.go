package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDrainThenHistory(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "detail.work")
	if err := os.WriteFile(work, []byte("\x01a\n\tTimestamp=1\n\n\x04b\n\tTimestamp=2\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	common := []string{"--file", work, "--journal-dir", filepath.Join(dir, "journal"), "--env-file", "", "--log-level", "error"}

	out, err := runCLI(t, append([]string{"drain"}, common...)...)
	if err != nil {
		t.Fatalf("drain: %v\n%s", err, out)
	}
	if !strings.Contains(out, "delivered=2 patched=2") {
		t.Fatalf("unexpected drain output %q", out)
	}

	out, err = runCLI(t, append([]string{"history", "--limit", "1"}, common...)...)
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "consumed 34 of 34") {
		t.Fatalf("unexpected history output %q", out)
	}
	if !strings.Contains(lines[1], "offset=17") || !strings.Contains(lines[1], "priority=low done") {
		t.Fatalf("unexpected history entry %q", lines[1])
	}
}

func TestDrainRequiresFile(t *testing.T) {
	t.Setenv("DETAILQ_WORK_FILE", "")
	if _, err := runCLI(t, "drain", "--env-file", "", "--journal-dir", t.TempDir()); err == nil {
		t.Fatalf("expected error without a work file")
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil || !strings.HasPrefix(out, "detailq ") {
		t.Fatalf("version: %q %v", out, err)
	}
}
