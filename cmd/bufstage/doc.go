// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the bufstage CLI.
//
// The root command loads configuration once per invocation and hands an App
// to each subcommand: build, ls-files, deps, config and version.
package cmd
