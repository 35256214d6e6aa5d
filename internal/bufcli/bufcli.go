// SPDX-License-Identifier: MPL-2.0

// Package bufcli runs the external buf CLI for the two operations bufstage
// consumes: `buf export <ref> -o <dir>` and `buf ls-files <path>`.
package bufcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/invowk/bufstage/internal/issue"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultBinary is the buf executable looked up on PATH when none is configured.
const DefaultBinary = "buf"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a CLI.
	Option func(*CLI)

	// CLI wraps a buf binary. Every call blocks until the subprocess exits.
	CLI struct {
		binaryPath  string
		execCommand ExecCommandFunc
		stdout      io.Writer
		logger      *log.Logger
	}
)

// WithBinary sets the buf executable (a name on PATH or an absolute path).
func WithBinary(path string) Option {
	return func(c *CLI) {
		if path != "" {
			c.binaryPath = path
		}
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(c *CLI) {
		c.execCommand = fn
	}
}

// WithStdout forwards the stdout of `buf export` to w.
func WithStdout(w io.Writer) Option {
	return func(c *CLI) {
		c.stdout = w
	}
}

// WithLogger sets the logger used for per-command debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *CLI) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a CLI for the default binary, adjusted by opts.
func New(opts ...Option) *CLI {
	c := &CLI{
		binaryPath:  DefaultBinary,
		execCommand: exec.CommandContext,
		stdout:      io.Discard,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BinaryPath returns the configured buf executable.
func (c *CLI) BinaryPath() string {
	return c.binaryPath
}

// Available reports whether the buf binary can be resolved.
func (c *CLI) Available() error {
	if _, err := exec.LookPath(c.binaryPath); err != nil {
		return issue.NewErrorContext().
			WithKind(issue.KindExternalTool).
			WithIssue(issue.BufNotFoundId).
			WithOperation("locate buf").
			WithResource(c.binaryPath).
			Wrap(err).
			BuildError()
	}
	return nil
}

// ExportArgs constructs arguments for an export command.
//
// Generated command: buf export <ref> -o <outDir>
func ExportArgs(ref, outDir string) []string {
	return []string{"export", ref, "-o", outDir}
}

// LsFilesArgs constructs arguments for a listing command.
//
// Generated command: buf ls-files <path>
func LsFilesArgs(path string) []string {
	return []string{"ls-files", path}
}

// CommandLine renders binary plus args as a shell-quoted command line.
func (c *CLI) CommandLine(args ...string) string {
	return QuoteCommand(c.binaryPath, args...)
}

// QuoteCommand renders name plus args as a shell-quoted command line.
func QuoteCommand(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{name}, args...) {
		q, err := syntax.Quote(s, syntax.LangBash)
		if err != nil {
			// Only strings with NUL bytes are unquotable; show them raw.
			q = s
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

// Export copies the sources of ref into outDir. Merge and overwrite behavior
// between successive exports into the same directory is entirely buf's.
func (c *CLI) Export(ctx context.Context, ref, outDir string) error {
	args := ExportArgs(ref, outDir)
	c.logger.Debug("running", "cmd", c.CommandLine(args...))

	var stderr bytes.Buffer
	cmd := c.execCommand(ctx, c.binaryPath, args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return c.commandError("execute buf export", args, err, stderr.String(), issue.ExportFailedId)
	}
	return nil
}

// LsFiles returns the raw stdout of `buf ls-files path`.
func (c *CLI) LsFiles(ctx context.Context, path string) ([]byte, error) {
	args := LsFilesArgs(path)
	c.logger.Debug("running", "cmd", c.CommandLine(args...))

	var stdout, stderr bytes.Buffer
	cmd := c.execCommand(ctx, c.binaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, c.commandError("execute buf ls-files", args, err, stderr.String(), issue.ListFilesFailedId)
	}
	return stdout.Bytes(), nil
}

// commandError classifies a failed run. Spawn failures keep the exec error as
// cause so callers can detect exec.ErrNotFound; non-zero exits carry stderr.
func (c *CLI) commandError(operation string, args []string, err error, stderr string, id issue.Id) error {
	ctx := issue.NewErrorContext().
		WithKind(issue.KindExternalTool).
		WithOperation(operation).
		WithResource(c.CommandLine(args...)).
		Wrap(err)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ctx = ctx.
			WithIssue(id).
			WithDetail(stderr).
			WithSuggestion(fmt.Sprintf("Run '%s' by hand to see its full output", c.CommandLine(args...)))
	} else if errors.Is(err, exec.ErrNotFound) {
		ctx = ctx.WithIssue(issue.BufNotFoundId)
	}
	return ctx.BuildError()
}
