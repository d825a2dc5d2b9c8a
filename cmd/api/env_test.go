package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEnvFilesExplicitListKeepsPrecedence(t *testing.T) {
	dir := t.TempDir()
	first := writeEnvFile(t, dir, "first.env", "UDIR_CACHE_BACKEND=memory\nUDIR_APP_PORT=9090\n")
	second := writeEnvFile(t, dir, "second.env", "UDIR_CACHE_BACKEND=redis\nUDIR_JWT_ISSUER=from-second\n")

	t.Setenv(envFileVar, first+", "+second)
	t.Setenv("UDIR_APP_PORT", "7070")
	t.Setenv("UDIR_CACHE_BACKEND", "")
	os.Unsetenv("UDIR_CACHE_BACKEND")
	t.Setenv("UDIR_JWT_ISSUER", "")
	os.Unsetenv("UDIR_JWT_ISSUER")

	loaded, err := loadEnvFiles()
	if err != nil {
		t.Fatalf("loadEnvFiles returned error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected both files loaded, got %v", loaded)
	}
	if got := os.Getenv("UDIR_APP_PORT"); got != "7070" {
		t.Fatalf("process environment must win, got %q", got)
	}
	if got := os.Getenv("UDIR_CACHE_BACKEND"); got != "memory" {
		t.Fatalf("earlier file must win, got %q", got)
	}
	if got := os.Getenv("UDIR_JWT_ISSUER"); got != "from-second" {
		t.Fatalf("expected value from second file, got %q", got)
	}
}

func TestLoadEnvFilesMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv(envFileVar, "")
	loaded, err := loadEnvFiles()
	if err != nil || len(loaded) != 0 {
		t.Fatalf("absent default files should be skipped, got %v, %v", loaded, err)
	}

	t.Setenv(envFileVar, "does-not-exist.env")
	if _, err := loadEnvFiles(); err == nil {
		t.Fatal("expected error for a missing explicitly named file")
	}
}
