// SPDX-License-Identifier: MPL-2.0

// Package config handles bufstage configuration using Viper with CUE as the file format.
//
// Configuration is loaded from the file named by --config, else from
// <config dir>/bufstage/config.cue (XDG on Linux, ~/Library/Application Support
// on macOS, %APPDATA% on Windows), else from ./bufstage.cue, else built-in
// defaults apply. BUFSTAGE_* environment variables override file values
// (BUFSTAGE_BUF_BINARY overrides buf.binary, and so on).
//
// Files are validated against an embedded CUE schema (config_schema.cue).
package config
