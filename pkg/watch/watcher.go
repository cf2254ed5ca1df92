// Package watch reports package files as they arrive in a directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/util/pathutil"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Handler is called once per settled package file. Calls are sequential.
type Handler func(ctx context.Context, path string)

// Watcher watches directories for files matching a set of patterns.
type Watcher struct {
	watcher  *fsnotify.Watcher
	matcher  *patternmatcher.PatternMatcher
	dirs     []string
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// New watches dirs. Patterns are matched against file names, e.g. "*.deb".
// A file is reported once no write to it was seen for the debounce interval.
func New(dirs []string, patterns []string, debounce time.Duration) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.InvalidInput("no directories to watch")
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid watch pattern")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}

	logger := logging.NewLogger("watch")
	abs := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		a, err := pathutil.Expand(dir)
		if err == nil {
			err = fw.Add(a)
		}
		if err != nil {
			fw.Close()
			return nil, errors.InvalidInput("cannot watch "+dir).WithDetail("path", dir)
		}
		logger.WithField("dir", a).Debug("Watching directory")
		abs = append(abs, a)
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:  fw,
		matcher:  matcher,
		dirs:     abs,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 16),
		done:     make(chan struct{}),
	}, nil
}

// Matches reports whether a file name matches the watch patterns.
func (w *Watcher) Matches(path string) bool {
	ok, err := w.matcher.MatchesOrParentMatches(filepath.Base(path))
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Debug("Pattern match failed")
		return false
	}
	return ok
}

// Existing lists the matching regular files already in the watched
// directories, sorted.
func (w *Watcher) Existing() ([]string, error) {
	var files []string
	for _, dir := range w.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to list "+dir)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && w.Matches(entry.Name()) {
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run delivers settled files to handler until ctx is done, then closes the
// watcher.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	defer w.stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if w.Matches(event.Name) {
					w.schedule(event.Name)
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.cancel(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("Watcher error: %v", err)
		case path := <-w.ready:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			w.logger.WithField("path", path).Info("Package file arrived")
			handler(ctx, path)
		case <-ctx.Done():
			return nil
		}
	}
}

// schedule (re)starts the quiet-period timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	close(w.done)
	w.watcher.Close()
}
