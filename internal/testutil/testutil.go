// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that write fixture trees and
// stand-in executables, failing the test on any setup error.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteScript writes an executable POSIX shell script named name into a fresh
// temporary directory and returns its path. The test is skipped on Windows.
func WriteScript(t testing.TB, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping: shell script stand-ins require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", path, err)
	}
	return path
}
