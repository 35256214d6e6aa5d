// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// Out of inotify watches, or out of file descriptors.
var fatalErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
