// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strconv"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrTooLarge is returned when a document exceeds the size limit.
var ErrTooLarge = errors.New("document too large")

type (
	// FieldError is one validation failure.
	FieldError struct {
		// Path is the JSON path of the field, e.g. "protoc.plugins[0].name".
		// Empty for document-level failures such as syntax errors.
		Path    string
		Message string
	}

	// Error lists every failure CUE reported for one document.
	Error struct {
		File   string
		Fields []FieldError
		cause  error
	}
)

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// Error renders a single failure on one line and several as an indented list.
func (e *Error) Error() string {
	if len(e.Fields) == 1 {
		return e.File + ": " + e.Fields[0].String()
	}
	var sb strings.Builder
	sb.WriteString(e.File)
	sb.WriteString(": validation failed:")
	for _, f := range e.Fields {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Paths returns the field paths in report order.
func (e *Error) Paths() []string {
	paths := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		paths[i] = f.Path
	}
	return paths
}

func newError(file string, err error) *Error {
	out := &Error{File: file, cause: err}
	for _, ce := range cueerrors.Errors(err) {
		path := jsonPath(ce.Path())
		msg := ce.Error()
		if path != "" {
			// CUE sometimes repeats the path at the start of the message.
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		out.Fields = append(out.Fields, FieldError{Path: path, Message: msg})
	}
	if len(out.Fields) == 0 {
		out.Fields = []FieldError{{Message: err.Error()}}
	}
	return out
}

// jsonPath joins CUE path selectors, rendering list indices in brackets:
// ["protoc", "plugins", "0", "name"] becomes "protoc.plugins[0].name".
func jsonPath(selectors []string) string {
	var sb strings.Builder
	for i, sel := range selectors {
		if _, err := strconv.Atoi(sel); err == nil && i > 0 {
			sb.WriteString("[" + sel + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(sel)
	}
	return sb.String()
}
