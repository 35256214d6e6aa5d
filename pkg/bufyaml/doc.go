// SPDX-License-Identifier: MPL-2.0

// Package bufyaml loads buf module (buf.yaml) and workspace (buf.work.yaml)
// manifests.
//
// Only the fields bufstage consumes are decoded: a module's `deps` and a
// workspace's `directories`, plus the informational `version`. All other keys
// are ignored. Absent lists are normalized to empty slices at load time, so
// callers never need nil checks. Dependency references are opaque and passed
// through verbatim.
package bufyaml
