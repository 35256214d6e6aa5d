// SPDX-License-Identifier: MPL-2.0

// Package watch triggers rebuilds when schema files change.
//
// A Watcher registers every directory under a base directory with fsnotify,
// filters events through doublestar globs, and hands the changed paths to a
// callback once the tree has been quiet for the debounce interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// clearScreen homes the cursor and erases the terminal.
const clearScreen = "\033[2J\033[H"

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")

	errChannelClosed = errors.New("watch: fsnotify channel closed")

	// DefaultPatterns select the files a buf build reads.
	DefaultPatterns = []string{"**/*.proto", "**/buf.yaml", "**/buf.work.yaml"}

	defaultIgnores = []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/.idea/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Patterns select the files whose changes trigger OnChange. Empty
		// means every file that is not ignored.
		Patterns []string

		// Ignore is merged with DefaultIgnores.
		Ignore []string

		// Debounce is the quiet period before OnChange runs (default 500ms).
		Debounce time.Duration

		// ClearScreen erases Stdout before each OnChange.
		ClearScreen bool

		// BaseDir is the tree to watch (default: working directory).
		BaseDir string

		// OnChange receives the changed paths, slash-separated, relative to
		// BaseDir and sorted. A returned error is logged.
		OnChange func(ctx context.Context, changed []string) error

		Stdout io.Writer
		Logger *log.Logger
	}

	// Watcher watches one directory tree. Run may be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		baseDir  string
		ignores  []string
		debounce time.Duration
		stdout   io.Writer
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers the directory tree under BaseDir.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns("watch", cfg.Patterns); err != nil {
		return nil, err
	}
	if err := validatePatterns("ignore", cfg.Ignore); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		baseDir = "."
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", baseDir, err)
	}

	w := &Watcher{
		cfg:      cfg,
		baseDir:  absBase,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: cmpOr(cfg.Debounce, defaultDebounce),
		stdout:   cfg.Stdout,
		logger:   cfg.Logger,
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := w.addTree(absBase); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

// BaseDir returns the absolute directory being watched.
func (w *Watcher) BaseDir() string {
	return w.baseDir
}

// Run dispatches changes until ctx is cancelled, then returns nil. It returns
// an error when fsnotify can no longer deliver events.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	pending := newBatch(w.debounce, func(changed []string) {
		w.dispatch(ctx, changed)
	})
	defer func() {
		pending.stop()
		w.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errChannelClosed
			}
			if rel, ok := w.relevant(evt); ok {
				pending.add(rel)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errChannelClosed
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, changed []string) {
	if ctx.Err() != nil || w.cfg.OnChange == nil {
		return
	}
	if w.cfg.ClearScreen {
		fmt.Fprint(w.stdout, clearScreen)
	}
	if err := w.cfg.OnChange(ctx, changed); err != nil {
		w.logger.Error("rebuild failed", "err", err)
	}
}

// relevant maps an event to its slash-separated relative path and reports
// whether it should trigger a rebuild. Created directories are registered on
// the way, before pattern filtering.
func (w *Watcher) relevant(evt fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.baseDir, evt.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) {
		return "", false
	}

	if evt.Has(fsnotify.Create) {
		if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
			if addErr := w.addTree(evt.Name); addErr != nil {
				w.logger.Warn("watch new directory", "path", rel, "err", addErr)
			}
		}
	}

	if len(w.cfg.Patterns) > 0 && !matchAny(w.cfg.Patterns, rel) {
		return "", false
	}
	return rel, true
}

// addTree registers root and every directory below it that is not ignored.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return relErr
		}
		if rel = filepath.ToSlash(rel); w.ignored(rel) || w.ignored(rel+"/") {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add %s: %w", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) close() {
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("close fsnotify", "err", err)
	}
}

func matchAny(patterns []string, rel string) bool {
	return slices.ContainsFunc(patterns, func(pat string) bool {
		ok, err := doublestar.Match(pat, rel)
		return err == nil && ok
	})
}

func validatePatterns(kind string, patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", kind, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func cmpOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
