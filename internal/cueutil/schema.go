// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxSize caps the documents Decode accepts (1MB).
const DefaultMaxSize = 1 << 20

type (
	// Schema is one definition of a compiled CUE schema. It is safe for
	// concurrent use.
	Schema struct {
		mu   sync.Mutex
		ctx  *cue.Context
		def  cue.Value
		name string
	}

	// DecodeOption configures Decode.
	DecodeOption func(*decodeOptions)

	decodeOptions struct {
		filename   string
		maxSize    int
		incomplete bool
	}
)

// WithFilename names the document in error messages (default "<input>").
func WithFilename(name string) DecodeOption {
	return func(o *decodeOptions) {
		o.filename = name
	}
}

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int) DecodeOption {
	return func(o *decodeOptions) {
		o.maxSize = n
	}
}

// AllowIncomplete accepts documents that leave schema fields unset. Files
// whose sections are all optional need it.
func AllowIncomplete() DecodeOption {
	return func(o *decodeOptions) {
		o.incomplete = true
	}
}

// Compile compiles src and selects the definition named by definition
// (e.g. "#Config").
func Compile(src []byte, definition string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := root.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition %s: %w", definition, err)
	}
	return &Schema{ctx: ctx, def: def, name: definition}, nil
}

// Name returns the definition the schema validates against.
func (s *Schema) Name() string {
	return s.name
}

// Decode unifies data with s, validates the result and decodes it into a T.
func Decode[T any](s *Schema, data []byte, opts ...DecodeOption) (*T, error) {
	o := decodeOptions{filename: "<input>", maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}

	if len(data) > o.maxSize {
		return nil, fmt.Errorf("%s: %w: %d bytes exceeds %d", o.filename, ErrTooLarge, len(data), o.maxSize)
	}

	// cue.Context is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return nil, newError(o.filename, err)
	}

	unified := s.def.Unify(doc)
	if err := unified.Validate(cue.Concrete(!o.incomplete)); err != nil {
		return nil, newError(o.filename, err)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, newError(o.filename, err)
	}
	return &out, nil
}
