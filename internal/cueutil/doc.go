// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against a compiled schema
// definition and decodes them into Go values.
//
//	//go:embed config_schema.cue
//	var src []byte
//
//	schema, err := cueutil.Compile(src, "#Config")
//	...
//	cfg, err := cueutil.Decode[map[string]any](schema, data,
//	    cueutil.WithFilename("config.cue"),
//	    cueutil.AllowIncomplete(),
//	)
//
// Validation failures are returned as *Error, listing each offending field
// by its JSON path.
package cueutil
