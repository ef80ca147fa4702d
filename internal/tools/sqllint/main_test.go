package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q.go", "package q\n\nconst QOne = `--sql 11111111-1111-4111-8111-111111111111\nSELECT 1`\n\nconst QTwo = `--sql 22222222-2222-4222-8222-222222222222\nUPDATE t SET a = 1`\n")

	var errOut bytes.Buffer
	if code := run([]string{dir}, &errOut); code != 0 {
		t.Fatalf("run = %d, want 0 (%s)", code, errOut.String())
	}
}

func TestRunFlagsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q.go", "package q\n\nconst QBad = `SELECT id FROM campaigns`\n")

	var errOut bytes.Buffer
	if code := run([]string{dir}, &errOut); code != 1 {
		t.Fatalf("run = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "QBad") || !strings.Contains(errOut.String(), "missing or invalid") {
		t.Fatalf("unexpected report: %s", errOut.String())
	}
}

func TestRunFlagsDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package q\n\nconst QA = `--sql 33333333-3333-4333-8333-333333333333\nSELECT 1`\n")
	writeFile(t, dir, "b.go", "package q\n\nconst QB = `--sql 33333333-3333-4333-8333-333333333333\nSELECT 2`\n")

	var errOut bytes.Buffer
	if code := run([]string{dir}, &errOut); code != 1 {
		t.Fatalf("run = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "already used by QA") {
		t.Fatalf("unexpected report: %s", errOut.String())
	}
}

func TestRunSkipsTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q_test.go", "package q\n\nconst fixture = `SELECT 1`\n")

	var errOut bytes.Buffer
	if code := run([]string{dir}, &errOut); code != 0 {
		t.Fatalf("run = %d, want 0 (%s)", code, errOut.String())
	}
}

func TestFirstLine(t *testing.T) {
	got := firstLine("\n  --sql abc \nSELECT 1")
	if got != "--sql abc" {
		t.Fatalf("firstLine = %q", got)
	}
}
