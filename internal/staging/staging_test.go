// SPDX-License-Identifier: MPL-2.0

package staging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/bufstage/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestNew_UniqueUnderRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	b, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if a.Path() == b.Path() {
		t.Fatalf("two runs share %q", a.Path())
	}
	for _, d := range []*Dir{a, b} {
		if filepath.Dir(d.Path()) != root {
			t.Errorf("%q is not under %q", d.Path(), root)
		}
		if _, err := uuid.Parse(filepath.Base(d.Path())); err != nil {
			t.Errorf("name %q is not a UUID: %v", filepath.Base(d.Path()), err)
		}
		info, err := os.Stat(d.Path())
		if err != nil || !info.IsDir() {
			t.Errorf("staging dir not created: %v", err)
		}
	}
}

func TestNew_DefaultsToTempDir(t *testing.T) {
	t.Parallel()

	d, err := New("")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Release()

	if filepath.Dir(d.Path()) != filepath.Clean(os.TempDir()) {
		t.Errorf("Path() = %q, want under %q", d.Path(), os.TempDir())
	}
}

func TestNew_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "missing", "root"))
	if !errors.Is(err, issue.ErrIO) {
		t.Errorf("New() error = %v, want I/O error", err)
	}
}

func TestRelease_EmptyDirRemoved(t *testing.T) {
	t.Parallel()

	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d.Release()
	if _, err := os.Stat(d.Path()); !os.IsNotExist(err) {
		t.Errorf("staging dir should be gone, stat err = %v", err)
	}
	d.Release()
}

func TestRelease_ResidualFilesSwallowed(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)

	d, err := New(t.TempDir(), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.Path(), "left.proto"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	d.Release()

	if _, err := os.Stat(d.Path()); err != nil {
		t.Errorf("non-empty staging dir should persist: %v", err)
	}
	if !strings.Contains(logs.String(), "staging directory left in place") {
		t.Errorf("expected debug log about the leftover dir, got %q", logs.String())
	}
}
