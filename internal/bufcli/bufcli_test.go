// SPDX-License-Identifier: MPL-2.0

package bufcli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/bufstage/internal/issue"
)

func TestArgs(t *testing.T) {
	t.Parallel()

	if got, want := ExportArgs("buf.build/acme/x", "/tmp/s"), []string{"export", "buf.build/acme/x", "-o", "/tmp/s"}; !slices.Equal(got, want) {
		t.Errorf("ExportArgs() = %v, want %v", got, want)
	}
	if got, want := LsFilesArgs("proto"), []string{"ls-files", "proto"}; !slices.Equal(got, want) {
		t.Errorf("LsFilesArgs() = %v, want %v", got, want)
	}
}

func TestQuoteCommand(t *testing.T) {
	t.Parallel()

	got := QuoteCommand("buf", "export", "buf.build/acme/x", "-o", "/tmp/with space")
	want := "buf export buf.build/acme/x -o '/tmp/with space'"
	if got != want {
		t.Errorf("QuoteCommand() = %q, want %q", got, want)
	}
}

func TestExport_Success(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	rec := &MockCommandRecorder{WriteFile: "dep.proto", Stdout: "exported"}
	var stdout bytes.Buffer
	c := New(WithBinary("/opt/buf"), WithExecCommand(rec.ContextCommandFunc(t)), WithStdout(&stdout))

	if err := c.Export(context.Background(), "buf.build/acme/x", out); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	if len(rec.Invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(rec.Invocations))
	}
	inv := rec.Invocations[0]
	if inv.Name != "/opt/buf" {
		t.Errorf("binary = %q, want /opt/buf", inv.Name)
	}
	if want := ExportArgs("buf.build/acme/x", out); !slices.Equal(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
	if _, err := os.Stat(filepath.Join(out, "dep.proto")); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
	if stdout.String() != "exported" {
		t.Errorf("stdout = %q, want forwarded output", stdout.String())
	}
}

func TestExport_NonZeroExit(t *testing.T) {
	t.Parallel()

	rec := &MockCommandRecorder{ExitCode: 1, Stderr: "Failure: module not found\n"}
	c := New(WithExecCommand(rec.ContextCommandFunc(t)))

	err := c.Export(context.Background(), "buf.build/acme/missing", t.TempDir())
	if err == nil {
		t.Fatal("Export() expected error")
	}
	if !errors.Is(err, issue.ErrExternalTool) {
		t.Errorf("error %v should be an external tool error", err)
	}
	if !strings.Contains(err.Error(), "Failure: module not found") {
		t.Errorf("error %q should carry stderr", err)
	}
	if got := issue.ForError(err); got == nil || got.Id() != issue.ExportFailedId {
		t.Errorf("ForError() = %v, want ExportFailed", got)
	}
}

func TestExport_Unspawnable(t *testing.T) {
	t.Parallel()

	c := New(WithBinary(filepath.Join(t.TempDir(), "no-such-buf")))
	err := c.Export(context.Background(), "x", t.TempDir())
	if err == nil {
		t.Fatal("Export() expected error")
	}
	if !errors.Is(err, issue.ErrExternalTool) {
		t.Errorf("error %v should be an external tool error", err)
	}
	var execErr *exec.ExitError
	if errors.As(err, &execErr) {
		t.Errorf("unspawnable binary should not produce an ExitError")
	}
}

func TestLsFiles(t *testing.T) {
	t.Parallel()

	rec := &MockCommandRecorder{Stdout: "a.proto\nb.proto\n", Stderr: "noise"}
	c := New(WithExecCommand(rec.ContextCommandFunc(t)))

	out, err := c.LsFiles(context.Background(), "proto")
	if err != nil {
		t.Fatalf("LsFiles() error: %v", err)
	}
	if string(out) != "a.proto\nb.proto\n" {
		t.Errorf("LsFiles() = %q", out)
	}
	if want := LsFilesArgs("proto"); !slices.Equal(rec.Invocations[0].Args, want) {
		t.Errorf("args = %v, want %v", rec.Invocations[0].Args, want)
	}
}

func TestLsFiles_Failure(t *testing.T) {
	t.Parallel()

	rec := &MockCommandRecorder{ExitCode: 2, Stderr: "not a module"}
	c := New(WithExecCommand(rec.ContextCommandFunc(t)))

	_, err := c.LsFiles(context.Background(), ".")
	if !errors.Is(err, issue.ErrExternalTool) {
		t.Fatalf("LsFiles() error = %v, want external tool error", err)
	}
	if !strings.Contains(err.Error(), "not a module") {
		t.Errorf("error %q should carry stderr", err)
	}
	if got := issue.ForError(err); got == nil || got.Id() != issue.ListFilesFailedId {
		t.Errorf("ForError() = %v, want ListFilesFailed", got)
	}
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	if err := New(WithBinary(os.Args[0])).Available(); err != nil {
		t.Errorf("Available() for test binary = %v", err)
	}
	err := New(WithBinary(filepath.Join(t.TempDir(), "missing"))).Available()
	if got := issue.ForError(err); got == nil || got.Id() != issue.BufNotFoundId {
		t.Errorf("ForError(Available()) = %v, want BufNotFound", got)
	}
}

func TestWithBinaryEmptyKeepsDefault(t *testing.T) {
	t.Parallel()

	if got := New(WithBinary("")).BinaryPath(); got != DefaultBinary {
		t.Errorf("BinaryPath() = %q, want %q", got, DefaultBinary)
	}
}
