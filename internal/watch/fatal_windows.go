// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// ERROR_TOO_MANY_OPEN_FILES, ERROR_INVALID_HANDLE (watched directory gone)
// and ERROR_NOT_ENOUGH_MEMORY leave ReadDirectoryChangesW unusable.
var fatalErrnos = []syscall.Errno{4, 6, 8}
