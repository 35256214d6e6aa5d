// SPDX-License-Identifier: MPL-2.0

// Package export stages the declared dependencies of a module or workspace
// into a shared output directory.
//
// Exports run one at a time, in declaration order, and stop at the first
// failure. Nothing already written is rolled back, and nothing is
// deduplicated: when two dependencies write the same file, buf decides the
// outcome.
package export

import (
	"context"
	"io"
	"path/filepath"

	"github.com/invowk/bufstage/pkg/bufyaml"

	"github.com/charmbracelet/log"
)

type (
	// Runner performs a single export. *bufcli.CLI implements it.
	Runner interface {
		Export(ctx context.Context, ref, outDir string) error
	}

	// RunnerFunc adapts a function to Runner.
	RunnerFunc func(ctx context.Context, ref, outDir string) error

	// Option configures an Exporter.
	Option func(*Exporter)

	// Exporter drives a Runner over manifest dependencies.
	Exporter struct {
		runner Runner
		logger *log.Logger
	}
)

// Export calls f.
func (f RunnerFunc) Export(ctx context.Context, ref, outDir string) error {
	return f(ctx, ref, outDir)
}

// WithLogger sets the logger used for per-dependency debug output.
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Exporter around runner.
func New(runner Runner, opts ...Option) *Exporter {
	e := &Exporter{
		runner: runner,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportAll exports every dependency of module into outDir. A module with no
// dependencies performs no exports and succeeds.
func (e *Exporter) ExportAll(ctx context.Context, module *bufyaml.Module, outDir string) error {
	for i, dep := range module.Deps {
		e.logger.Debug("exporting dependency", "ref", dep, "index", i+1, "total", len(module.Deps))
		if err := e.runner.Export(ctx, string(dep), outDir); err != nil {
			return err
		}
	}
	return nil
}

// ExportWorkspace loads each member's buf.yaml (relative to baseDir) and
// exports its dependencies into the shared outDir, member by member. The first
// failing member aborts the remaining ones. On success it returns the member
// directories joined to baseDir, in declaration order.
func (e *Exporter) ExportWorkspace(ctx context.Context, baseDir string, ws *bufyaml.Workspace, outDir string) ([]string, error) {
	memberPaths := make([]string, 0, len(ws.Directories))
	for _, dir := range ws.Directories {
		memberPath := filepath.Join(baseDir, string(dir))
		memberPaths = append(memberPaths, memberPath)

		e.logger.Debug("loading workspace member", "dir", memberPath)
		module, err := bufyaml.Load(bufyaml.ModulePath(memberPath))
		if err != nil {
			return nil, err
		}
		if err := e.ExportAll(ctx, module, outDir); err != nil {
			return nil, err
		}
	}
	return memberPaths, nil
}
