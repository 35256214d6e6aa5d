// SPDX-License-Identifier: MPL-2.0

// Package pipeline sequences one bufstage run: load manifests, export
// dependencies into a fresh staging directory, list the module's files,
// assemble include paths and hand everything to the compiler.
//
// A run is strictly sequential and fail-fast. The staging directory is created
// before anything else and its removal is attempted on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/invowk/bufstage/internal/bufcli"
	"github.com/invowk/bufstage/internal/compiler"
	"github.com/invowk/bufstage/internal/discovery"
	"github.com/invowk/bufstage/internal/export"
	"github.com/invowk/bufstage/internal/includepath"
	"github.com/invowk/bufstage/internal/issue"
	"github.com/invowk/bufstage/internal/staging"
	"github.com/invowk/bufstage/pkg/bufyaml"

	"github.com/charmbracelet/log"
)

const (
	// ModeModule builds a single module from buf.yaml.
	ModeModule Mode = iota
	// ModeWorkspace builds a workspace from buf.work.yaml.
	ModeWorkspace
)

type (
	// Mode selects which manifest drives a run.
	Mode int

	// Option configures a Pipeline.
	Option func(*Pipeline)

	// Result describes a successful run.
	Result struct {
		// StagingDir is where dependencies were exported. It has been released
		// by the time the result is returned.
		StagingDir   string
		Files        []string
		IncludePaths []string
	}

	// Pipeline runs builds. It holds no per-run state, so one Pipeline may
	// serve concurrent runs; each gets its own staging directory.
	Pipeline struct {
		compiler    compiler.Compiler
		runner      export.Runner
		lister      discovery.Lister
		stagingRoot string
		logger      *log.Logger
	}
)

// String returns "module" or "workspace".
func (m Mode) String() string {
	if m == ModeWorkspace {
		return "workspace"
	}
	return "module"
}

// WithRunner replaces the export operation (default: buf on PATH).
func WithRunner(r export.Runner) Option {
	return func(p *Pipeline) {
		p.runner = r
	}
}

// WithLister replaces the listing operation (default: buf on PATH).
func WithLister(l discovery.Lister) Option {
	return func(p *Pipeline) {
		p.lister = l
	}
}

// WithBuf uses cli for both export and listing.
func WithBuf(cli *bufcli.CLI) Option {
	return func(p *Pipeline) {
		p.runner = cli
		p.lister = cli
	}
}

// WithStagingRoot sets the parent of staging directories (default os.TempDir()).
func WithStagingRoot(root string) Option {
	return func(p *Pipeline) {
		p.stagingRoot = root
	}
}

// WithLogger sets the logger for stage progress.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline that finishes every run with c.
func New(c compiler.Compiler, opts ...Option) *Pipeline {
	p := &Pipeline{
		compiler: c,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil || p.lister == nil {
		cli := bufcli.New(bufcli.WithLogger(p.logger))
		if p.runner == nil {
			p.runner = cli
		}
		if p.lister == nil {
			p.lister = cli
		}
	}
	return p
}

// DetectMode returns ModeWorkspace when baseDir holds a buf.work.yaml.
func DetectMode(baseDir string) Mode {
	if info, err := os.Stat(bufyaml.WorkspacePath(baseDir)); err == nil && !info.IsDir() {
		return ModeWorkspace
	}
	return ModeModule
}

// Run dispatches to RunSingleModule or RunWorkspace.
func (p *Pipeline) Run(ctx context.Context, baseDir string, mode Mode) (*Result, error) {
	switch mode {
	case ModeModule:
		return p.RunSingleModule(ctx, baseDir)
	case ModeWorkspace:
		return p.RunWorkspace(ctx, baseDir)
	default:
		return nil, fmt.Errorf("unknown build mode %d", mode)
	}
}

// RunSingleModule builds the module rooted at baseDir. Include paths are
// [baseDir, stagingDir]: module sources shadow staged dependencies.
func (p *Pipeline) RunSingleModule(ctx context.Context, baseDir string) (*Result, error) {
	dir, err := staging.New(p.stagingRoot, staging.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	defer dir.Release()

	p.logger.Debug("loading module manifest", "dir", baseDir)
	module, err := bufyaml.Load(bufyaml.ModulePath(baseDir))
	if err != nil {
		return nil, err
	}

	if err := export.New(p.runner, export.WithLogger(p.logger)).ExportAll(ctx, module, dir.Path()); err != nil {
		return nil, err
	}

	return p.finish(ctx, baseDir, dir.Path(), includepath.ForSingleModule(baseDir, dir.Path()))
}

// RunWorkspace builds the workspace rooted at baseDir. Every member exports
// into one shared staging directory; files are listed once for the whole
// workspace. Include paths are [stagingDir, members...]: staged dependencies
// shadow member sources.
func (p *Pipeline) RunWorkspace(ctx context.Context, baseDir string) (*Result, error) {
	dir, err := staging.New(p.stagingRoot, staging.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	defer dir.Release()

	p.logger.Debug("loading workspace manifest", "dir", baseDir)
	ws, err := bufyaml.LoadWorkspace(bufyaml.WorkspacePath(baseDir))
	if err != nil {
		return nil, err
	}

	members, err := export.New(p.runner, export.WithLogger(p.logger)).ExportWorkspace(ctx, baseDir, ws, dir.Path())
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, baseDir, dir.Path(), includepath.ForWorkspace(dir.Path(), members))
}

// finish lists files under baseDir and runs the compiler exactly once.
func (p *Pipeline) finish(ctx context.Context, baseDir, stagingDir string, includes []string) (*Result, error) {
	files, err := discovery.New(p.lister).ListFiles(ctx, baseDir)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("discovered files", "count", len(files))
	p.logger.Debug("include paths", "paths", includes)

	if err := p.compiler.Compile(ctx, files, includes); err != nil {
		if issue.KindOf(err) == issue.KindUnknown {
			err = issue.WrapWithContext(issue.KindGenerator, err, "run compiler", "")
		}
		return nil, err
	}

	p.logger.Info("build complete", "files", len(files), "includes", len(includes))
	return &Result{
		StagingDir:   stagingDir,
		Files:        files,
		IncludePaths: includes,
	}, nil
}
