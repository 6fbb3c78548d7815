package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finsview.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReturnsConfigError(t *testing.T) {
	path := writeConfig(t, "ui:\n  page_size: 0\n")
	err := run(path)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run = %v, want a config error", err)
	}
}

func TestRunReturnsLogFileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, "logging:\n  file: "+filepath.Join(blocker, "finsview.log")+"\n")
	if err := run(path); err == nil || !strings.Contains(err.Error(), "log") {
		t.Errorf("run = %v, want a log file error", err)
	}
}
