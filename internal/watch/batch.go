// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// batch collects changed paths and flushes them once no new path has
// arrived for delay. Flushes never overlap: one that comes due while the
// previous is still running is pushed back by another delay.
type batch struct {
	mu      sync.Mutex
	delay   time.Duration
	paths   map[string]struct{}
	timer   *time.Timer
	busy    bool
	stopped bool
	flush   func(paths []string)
}

func newBatch(delay time.Duration, flush func(paths []string)) *batch {
	return &batch{
		delay: delay,
		paths: make(map[string]struct{}),
		flush: flush,
	}
}

func (b *batch) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.paths[path] = struct{}{}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.fire)
		return
	}
	b.timer.Reset(b.delay)
}

func (b *batch) fire() {
	b.mu.Lock()
	if b.stopped || len(b.paths) == 0 {
		b.mu.Unlock()
		return
	}
	if b.busy {
		b.timer.Reset(b.delay)
		b.mu.Unlock()
		return
	}
	b.busy = true
	paths := slices.Sorted(maps.Keys(b.paths))
	clear(b.paths)
	b.mu.Unlock()

	b.flush(paths)

	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

// stop cancels a pending flush. A flush already running is not interrupted.
func (b *batch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}
