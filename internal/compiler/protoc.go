// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/invowk/bufstage/internal/bufcli"
	"github.com/invowk/bufstage/internal/issue"

	"github.com/charmbracelet/log"
)

// DefaultProtocBinary is the protoc executable looked up on PATH when none is configured.
const DefaultProtocBinary = "protoc"

type (
	// Plugin selects one protoc code generator.
	Plugin struct {
		// Name is the plugin name as used in --<name>_out (e.g. "go", "go-grpc").
		Name string
		// Out is the output directory.
		Out string
		// Opt is passed as --<name>_opt when non-empty.
		Opt string
	}

	// ProtocOptions is the optional compiler configuration.
	ProtocOptions struct {
		Binary           string
		Plugins          []Plugin
		DescriptorSetOut string
		IncludeImports   bool
	}

	// ProtocOption configures a Protoc.
	ProtocOption func(*Protoc)

	// Protoc runs the protoc binary once per Compile call.
	Protoc struct {
		opts        ProtocOptions
		execCommand bufcli.ExecCommandFunc
		stdout      io.Writer
		logger      *log.Logger
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn bufcli.ExecCommandFunc) ProtocOption {
	return func(p *Protoc) {
		p.execCommand = fn
	}
}

// WithStdout forwards protoc's stdout to w.
func WithStdout(w io.Writer) ProtocOption {
	return func(p *Protoc) {
		p.stdout = w
	}
}

// WithLogger sets the logger used for the command line debug output.
func WithLogger(l *log.Logger) ProtocOption {
	return func(p *Protoc) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProtoc creates a protoc-backed Compiler.
func NewProtoc(opts ProtocOptions, popts ...ProtocOption) *Protoc {
	if opts.Binary == "" {
		opts.Binary = DefaultProtocBinary
	}
	p := &Protoc{
		opts:        opts,
		execCommand: exec.CommandContext,
		stdout:      io.Discard,
		logger:      log.New(io.Discard),
	}
	for _, opt := range popts {
		opt(p)
	}
	return p
}

// Binary returns the protoc executable.
func (p *Protoc) Binary() string {
	return p.opts.Binary
}

// Args constructs the protoc argument list.
//
// Generated command: protoc -I<inc>... [--<name>_out=<dir> [--<name>_opt=<opt>]]...
// [--descriptor_set_out=<file> [--include_imports]] <files...>
func (p *Protoc) Args(files, includePaths []string) []string {
	args := make([]string, 0, len(includePaths)+2*len(p.opts.Plugins)+len(files)+2)
	for _, inc := range includePaths {
		args = append(args, "-I"+inc)
	}
	for _, pl := range p.opts.Plugins {
		args = append(args, "--"+pl.Name+"_out="+pl.Out)
		if pl.Opt != "" {
			args = append(args, "--"+pl.Name+"_opt="+pl.Opt)
		}
	}
	if p.opts.DescriptorSetOut != "" {
		args = append(args, "--descriptor_set_out="+p.opts.DescriptorSetOut)
		if p.opts.IncludeImports {
			args = append(args, "--include_imports")
		}
	}
	return append(args, files...)
}

// CommandLine renders the shell-quoted protoc invocation.
func (p *Protoc) CommandLine(files, includePaths []string) string {
	return bufcli.QuoteCommand(p.opts.Binary, p.Args(files, includePaths)...)
}

// Compile runs protoc. Plugin output directories are created first.
func (p *Protoc) Compile(ctx context.Context, files, includePaths []string) error {
	if len(files) == 0 {
		return issue.NewErrorContext().
			WithKind(issue.KindGenerator).
			WithOperation("run protoc").
			WithDetail("no input files").
			WithSuggestion("Check that 'buf ls-files' lists the module's .proto files").
			BuildError()
	}

	if err := p.prepareOutputs(); err != nil {
		return err
	}

	args := p.Args(files, includePaths)
	p.logger.Debug("running", "cmd", bufcli.QuoteCommand(p.opts.Binary, args...))

	var stderr bytes.Buffer
	cmd := p.execCommand(ctx, p.opts.Binary, args...)
	cmd.Stdout = p.stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		ectx := issue.NewErrorContext().
			WithKind(issue.KindGenerator).
			WithOperation("run protoc").
			WithDetail(stderr.String()).
			Wrap(err)
		if errors.Is(err, exec.ErrNotFound) {
			ectx = ectx.WithIssue(issue.CompilerNotFoundId)
		}
		return ectx.BuildError()
	}
	return nil
}

func (p *Protoc) prepareOutputs() error {
	dirs := make([]string, 0, len(p.opts.Plugins)+1)
	for _, pl := range p.opts.Plugins {
		// Plugins may encode parameters as "<params>:<dir>".
		out := pl.Out
		if i := strings.LastIndex(out, ":"); i > 1 {
			out = out[i+1:]
		}
		dirs = append(dirs, out)
	}
	if p.opts.DescriptorSetOut != "" {
		dirs = append(dirs, filepath.Dir(p.opts.DescriptorSetOut))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return issue.NewErrorContext().
				WithKind(issue.KindIO).
				WithOperation("create output directory").
				WithResource(dir).
				Wrap(err).
				BuildError()
		}
	}
	return nil
}
