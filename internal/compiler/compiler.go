// SPDX-License-Identifier: MPL-2.0

// Package compiler is the downstream step that turns discovered schema files
// and include paths into generated code.
package compiler

import "context"

type (
	// Compiler compiles files, resolving imports against includePaths in order.
	Compiler interface {
		Compile(ctx context.Context, files, includePaths []string) error
	}

	// Func adapts a function to Compiler.
	Func func(ctx context.Context, files, includePaths []string) error
)

// Compile calls f.
func (f Func) Compile(ctx context.Context, files, includePaths []string) error {
	return f(ctx, files, includePaths)
}
