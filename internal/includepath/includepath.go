// SPDX-License-Identifier: MPL-2.0

// Package includepath composes the ordered search directories handed to the
// schema compiler. Order decides import precedence and is never deduplicated.
//
// A single module searches its own sources before the staged dependencies; a
// workspace searches the staged dependencies before its members. The two
// orders differ on purpose and downstream import resolution relies on them.
package includepath

// ForSingleModule returns [moduleDir, stagingDir].
func ForSingleModule(moduleDir, stagingDir string) []string {
	return []string{moduleDir, stagingDir}
}

// ForWorkspace returns [stagingDir, memberDirs...]. The result never shares
// backing storage with memberDirs.
func ForWorkspace(stagingDir string, memberDirs []string) []string {
	paths := make([]string, 0, len(memberDirs)+1)
	paths = append(paths, stagingDir)
	return append(paths, memberDirs...)
}
