// Package watch re-runs ingestion when contract files in a folder change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"contractrag/internal/logging"
)

// DefaultDebounce collapses bursts of editor writes into one rebuild.
const DefaultDebounce = 750 * time.Millisecond

// ChangeFunc receives the full, sorted list of watched files after a change.
type ChangeFunc func(ctx context.Context, files []string) error

// Watcher observes a single directory, non-recursively.
type Watcher struct {
	dir      string
	debounce time.Duration
	exts     []string
	onChange ChangeFunc
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions restricts the watched file types, e.g. ".pdf".
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.exts = w.exts[:0]
		for _, e := range exts {
			w.exts = append(w.exts, strings.ToLower(e))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrDiscard(l) }
}

// New creates a watcher for dir.
func New(dir string, onChange ChangeFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		exts:     []string{".pdf", ".txt"},
		onChange: onChange,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Files lists the watched files currently in the directory.
func (w *Watcher) Files() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !w.wanted(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(w.dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching folder", "dir", w.dir, "debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("file changed", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			w.trigger(ctx)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context) {
	files, err := w.Files()
	if err != nil {
		w.logger.Error("list folder failed", "error", err)
		return
	}
	if err := w.onChange(ctx, files); err != nil {
		w.logger.Error("rebuild failed", "files", len(files), "error", err)
	}
}

// relevant reports whether ev should schedule a rebuild. Chmod-only events,
// hidden files and new directories are ignored.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if !w.wanted(filepath.Base(ev.Name)) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return false
		}
	}
	return true
}

func (w *Watcher) wanted(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return slices.Contains(w.exts, strings.ToLower(filepath.Ext(name)))
}
