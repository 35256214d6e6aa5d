// SPDX-License-Identifier: MPL-2.0

package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/invowk/bufstage/internal/issue"
	"github.com/invowk/bufstage/pkg/bufyaml"
)

// fakeRunner records every export and writes a marker file named after the
// reference into outDir. Refs listed in fail return an external tool error.
type fakeRunner struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeRunner) Export(_ context.Context, ref, outDir string) error {
	f.calls = append(f.calls, ref)
	if f.fail[ref] {
		return issue.NewErrorContext().
			WithKind(issue.KindExternalTool).
			WithOperation("execute buf export").
			WithResource(ref).
			BuildError()
	}
	return os.WriteFile(filepath.Join(outDir, ref+".proto"), []byte(ref), 0o644)
}

func TestExportAll_NoDeps(t *testing.T) {
	t.Parallel()

	for _, m := range []*bufyaml.Module{{}, {Deps: []bufyaml.DependencyRef{}}} {
		r := &fakeRunner{}
		if err := New(r).ExportAll(context.Background(), m, t.TempDir()); err != nil {
			t.Fatalf("ExportAll() error: %v", err)
		}
		if len(r.calls) != 0 {
			t.Errorf("runner called %d times, want 0", len(r.calls))
		}
	}
}

func TestExportAll_OrderAndFailFast(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	r := &fakeRunner{fail: map[string]bool{"b": true}}
	m := &bufyaml.Module{Deps: []bufyaml.DependencyRef{"a", "b", "c"}}

	err := New(r).ExportAll(context.Background(), m, out)
	if !errors.Is(err, issue.ErrExternalTool) {
		t.Fatalf("ExportAll() error = %v, want external tool error", err)
	}
	if want := []string{"a", "b"}; !slices.Equal(r.calls, want) {
		t.Errorf("calls = %v, want %v", r.calls, want)
	}
	if _, err := os.Stat(filepath.Join(out, "a.proto")); err != nil {
		t.Errorf("a's output should stay in place: %v", err)
	}
}

func TestExportAll_DuplicateRefsNotDeduplicated(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{}
	m := &bufyaml.Module{Deps: []bufyaml.DependencyRef{"a", "a"}}
	if err := New(r).ExportAll(context.Background(), m, t.TempDir()); err != nil {
		t.Fatalf("ExportAll() error: %v", err)
	}
	if len(r.calls) != 2 {
		t.Errorf("calls = %v, want both exports", r.calls)
	}
}

func writeMember(t *testing.T, base, dir, content string) {
	t.Helper()
	full := filepath.Join(base, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bufyaml.ModulePath(full), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExportWorkspace(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeMember(t, base, "a", "deps: [x]\n")
	writeMember(t, base, "b", "version: v1\n")
	writeMember(t, base, "c", "deps: [y, z]\n")

	out := t.TempDir()
	r := &fakeRunner{}
	ws := &bufyaml.Workspace{Directories: []bufyaml.MemberDir{"a", "b", "c"}}

	paths, err := New(r).ExportWorkspace(context.Background(), base, ws, out)
	if err != nil {
		t.Fatalf("ExportWorkspace() error: %v", err)
	}
	wantPaths := []string{filepath.Join(base, "a"), filepath.Join(base, "b"), filepath.Join(base, "c")}
	if !slices.Equal(paths, wantPaths) {
		t.Errorf("paths = %v, want %v", paths, wantPaths)
	}
	if want := []string{"x", "y", "z"}; !slices.Equal(r.calls, want) {
		t.Errorf("calls = %v, want %v", r.calls, want)
	}
}

func TestExportWorkspace_FailingMemberKeepsEarlierOutput(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeMember(t, base, "a", "deps: [x]\n")
	writeMember(t, base, "b", "deps: [bad]\n")
	writeMember(t, base, "c", "deps: [never]\n")

	out := t.TempDir()
	r := &fakeRunner{fail: map[string]bool{"bad": true}}
	ws := &bufyaml.Workspace{Directories: []bufyaml.MemberDir{"a", "b", "c"}}

	if _, err := New(r).ExportWorkspace(context.Background(), base, ws, out); !errors.Is(err, issue.ErrExternalTool) {
		t.Fatalf("ExportWorkspace() error = %v, want external tool error", err)
	}
	if slices.Contains(r.calls, "never") {
		t.Error("members after the failing one should not be exported")
	}
	if _, err := os.Stat(filepath.Join(out, "x.proto")); err != nil {
		t.Errorf("member a's output should remain: %v", err)
	}
}

func TestExportWorkspace_MissingMemberManifest(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	ws := &bufyaml.Workspace{Directories: []bufyaml.MemberDir{"ghost"}}
	_, err := New(&fakeRunner{}).ExportWorkspace(context.Background(), base, ws, t.TempDir())
	if !errors.Is(err, issue.ErrIO) {
		t.Errorf("ExportWorkspace() error = %v, want I/O error", err)
	}
}

func TestRunnerFunc(t *testing.T) {
	t.Parallel()

	var got string
	f := RunnerFunc(func(_ context.Context, ref, _ string) error {
		got = ref
		return nil
	})
	m := &bufyaml.Module{Deps: []bufyaml.DependencyRef{"only"}}
	if err := New(f).ExportAll(context.Background(), m, ""); err != nil {
		t.Fatal(err)
	}
	if got != "only" {
		t.Errorf("ref = %q", got)
	}
}
