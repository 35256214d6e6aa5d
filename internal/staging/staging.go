// SPDX-License-Identifier: MPL-2.0

// Package staging manages the per-run directory that collects exported
// dependency sources.
//
// Each run gets its own directory named by a random UUID under a temp root,
// so concurrent runs never share one. Release removes it without recursion:
// it disappears only if whatever ran in between left it empty. Removal errors
// are cleanup-only and never reported to the caller.
package staging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/invowk/bufstage/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type (
	// Option configures a Dir.
	Option func(*Dir)

	// Dir is one run's staging directory.
	Dir struct {
		path    string
		logger  *log.Logger
		release sync.Once
	}
)

// WithLogger sets the logger that receives swallowed removal errors.
func WithLogger(l *log.Logger) Option {
	return func(d *Dir) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a fresh directory under root. An empty root means os.TempDir().
func New(root string, opts ...Option) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}
	d := &Dir{
		path:   filepath.Join(root, uuid.NewString()),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := os.Mkdir(d.path, 0o755); err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindIO).
			WithIssue(issue.StagingDirFailedId).
			WithOperation("create staging directory").
			WithResource(d.path).
			Wrap(err).
			BuildError()
	}
	d.logger.Debug("created staging directory", "path", d.path)
	return d, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Release attempts a non-recursive removal once; later calls do nothing.
func (d *Dir) Release() {
	d.release.Do(func() {
		if err := os.Remove(d.path); err != nil {
			d.logger.Debug("staging directory left in place", "path", d.path, "err", err)
			return
		}
		d.logger.Debug("removed staging directory", "path", d.path)
	})
}
