// SPDX-License-Identifier: MPL-2.0

// Package bufstage lets build scripts compile a buf module or workspace with
// protoc-style tooling that knows nothing about buf.
//
// Dependencies declared in buf.yaml are exported with the buf CLI into a
// throwaway staging directory, the module's files are listed with
// 'buf ls-files', and the caller's Compiler receives both the file list and
// the include paths:
//
//	err := bufstage.CompileFromBuf(ctx, bufstage.NewProtoc(bufstage.ProtocOptions{
//		Plugins: []bufstage.Plugin{{Name: "go", Out: "gen"}},
//	}), bufstage.WithBufDir("proto"))
package bufstage

import (
	"context"

	"github.com/invowk/bufstage/internal/bufcli"
	"github.com/invowk/bufstage/internal/compiler"
	"github.com/invowk/bufstage/internal/pipeline"

	"github.com/charmbracelet/log"
)

type (
	// Compiler receives the discovered files and include paths of a build.
	Compiler = compiler.Compiler

	// CompilerFunc adapts a function to Compiler.
	CompilerFunc = compiler.Func

	// ProtocOptions configures the protoc-backed Compiler.
	ProtocOptions = compiler.ProtocOptions

	// Plugin selects one protoc code generator.
	Plugin = compiler.Plugin

	// Option configures a build.
	Option func(*options)

	options struct {
		dir         string
		bufBinary   string
		stagingRoot string
		logger      *log.Logger
	}
)

// WithBufDir sets the directory holding buf.yaml or buf.work.yaml (default ".").
func WithBufDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithBufBinary sets the buf executable (default "buf" on PATH).
func WithBufBinary(path string) Option {
	return func(o *options) {
		o.bufBinary = path
	}
}

// WithStagingRoot sets the parent of the staging directory (default os.TempDir()).
func WithStagingRoot(root string) Option {
	return func(o *options) {
		o.stagingRoot = root
	}
}

// WithLogger routes progress and debug output to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewProtoc returns a Compiler that runs protoc with opts.
func NewProtoc(opts ProtocOptions) Compiler {
	return compiler.NewProtoc(opts)
}

// CompileFromBuf builds the single module described by buf.yaml.
// Include paths handed to c are [module dir, staging dir].
func CompileFromBuf(ctx context.Context, c Compiler, opts ...Option) error {
	o := newOptions(opts)
	_, err := newPipeline(c, o).RunSingleModule(ctx, o.dir)
	return err
}

// CompileFromBufWorkspace builds the workspace described by buf.work.yaml.
// Include paths handed to c are [staging dir, member dirs...].
func CompileFromBufWorkspace(ctx context.Context, c Compiler, opts ...Option) error {
	o := newOptions(opts)
	_, err := newPipeline(c, o).RunWorkspace(ctx, o.dir)
	return err
}

func newOptions(opts []Option) *options {
	o := &options{dir: "."}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newPipeline(c Compiler, o *options) *pipeline.Pipeline {
	cli := bufcli.New(bufcli.WithBinary(o.bufBinary), bufcli.WithLogger(o.logger))
	return pipeline.New(c,
		pipeline.WithBuf(cli),
		pipeline.WithStagingRoot(o.stagingRoot),
		pipeline.WithLogger(o.logger),
	)
}
