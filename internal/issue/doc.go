// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Every failure surfaced by bufstage is an ActionableError tagged with a Kind
// (I/O, parse, external tool, generator). The CLI pairs errors with
// Markdown-formatted guidance from the Issue catalog.
package issue
